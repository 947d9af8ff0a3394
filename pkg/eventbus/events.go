package eventbus

import "time"

// QuoteComputedData is emitted after a quote completes every stage.
type QuoteComputedData struct {
	SessionID        string    `json:"session_id"`
	PickupQuery      string    `json:"pickup_query,omitempty"`
	DropoffQuery     string    `json:"dropoff_query,omitempty"`
	PickupLatitude   float64   `json:"pickup_latitude"`
	PickupLongitude  float64   `json:"pickup_longitude"`
	DropoffLatitude  float64   `json:"dropoff_latitude"`
	DropoffLongitude float64   `json:"dropoff_longitude"`
	DistanceKm       float64   `json:"distance_km"`
	DurationMin      float64   `json:"duration_min"`
	Fare             float64   `json:"fare"`
	Currency         string    `json:"currency"`
	PassengerCount   int       `json:"passenger_count"`
	PickupTime       string    `json:"pickup_time"`
	ComputedAt       time.Time `json:"computed_at"`
}

// QuoteFailedData is emitted when a stage rejects the request.
type QuoteFailedData struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	FailedAt  time.Time `json:"failed_at"`
}

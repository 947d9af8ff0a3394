package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/trip-quote/internal/routing"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/validation"
)

// Location is either a free-text place query or an explicit coordinate.
// In JSON it is a string or a {"latitude", "longitude"} object.
type Location struct {
	Query      string
	Coordinate *geo.Coordinate
}

// PlaceLocation builds a location that must be geocoded
func PlaceLocation(query string) Location {
	return Location{Query: query}
}

// CoordinateLocation builds a location that skips geocoding
func CoordinateLocation(c geo.Coordinate) Location {
	return Location{Coordinate: &c}
}

// IsCoordinate reports whether the location needs no geocoding
func (l Location) IsCoordinate() bool {
	return l.Coordinate != nil
}

func (l Location) String() string {
	if l.Coordinate != nil {
		return l.Coordinate.String()
	}
	return l.Query
}

func (l Location) MarshalJSON() ([]byte, error) {
	if l.Coordinate != nil {
		return json.Marshal(l.Coordinate)
	}
	return json.Marshal(l.Query)
}

func (l *Location) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = Location{}
		return nil
	}

	if data[0] == '"' {
		var query string
		if err := json.Unmarshal(data, &query); err != nil {
			return err
		}
		*l = Location{Query: query}
		return nil
	}

	var obj struct {
		Query     string   `json:"query"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("location must be a place name or {latitude, longitude}: %w", err)
	}

	switch {
	case obj.Latitude != nil && obj.Longitude != nil:
		*l = Location{Coordinate: &geo.Coordinate{Latitude: *obj.Latitude, Longitude: *obj.Longitude}}
	case obj.Latitude == nil && obj.Longitude == nil:
		*l = Location{Query: obj.Query}
	default:
		return errors.New("location needs both latitude and longitude")
	}
	return nil
}

// TripRequest is one user submission
type TripRequest struct {
	Pickup         Location `json:"pickup" validate:"-"`
	Dropoff        Location `json:"dropoff" validate:"-"`
	PickupTime     string   `json:"pickup_time" validate:"required,pickup_time"`
	PassengerCount int      `json:"passenger_count" validate:"gte=1,lte=8"`
}

// Validate checks the request shape. Place queries are not checked here;
// an empty query is rejected by the geocoder.
func (r TripRequest) Validate() (time.Time, error) {
	verr := &validation.ValidationError{}
	if err := validation.ValidateStruct(r); err != nil {
		if !errors.As(err, &verr) {
			return time.Time{}, err
		}
	}

	for field, loc := range map[string]Location{"pickup": r.Pickup, "dropoff": r.Dropoff} {
		if loc.Coordinate == nil {
			continue
		}
		if err := validation.ValidateCoordinates(loc.Coordinate.Latitude, loc.Coordinate.Longitude); err != nil {
			verr.AddError(field, err.Error())
		}
	}

	if verr.HasErrors() {
		return time.Time{}, verr
	}

	pickupTime, err := validation.ParsePickupTime(r.PickupTime)
	if err != nil {
		return time.Time{}, err
	}
	return pickupTime, nil
}

// Result is a completed quote
type Result struct {
	Pickup         Location        `json:"pickup"`
	Dropoff        Location        `json:"dropoff"`
	PickupCoord    geo.Coordinate  `json:"pickup_coord"`
	DropoffCoord   geo.Coordinate  `json:"dropoff_coord"`
	Route          *routing.Result `json:"route"`
	DistanceKm     float64         `json:"distance_km"`
	DurationMin    float64         `json:"duration_min"`
	Fare           float64         `json:"fare"`
	Currency       string          `json:"currency"`
	PassengerCount int             `json:"passenger_count"`
	PickupTime     string          `json:"pickup_time"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// Stage names a pipeline step
type Stage string

const (
	StageValidation     Stage = "validation"
	StageGeocoding      Stage = "geocoding"
	StageRouting        Stage = "routing"
	StageFareEstimation Stage = "fare_estimation"
)

// Reason classifies a failure independently of the stage
type Reason string

const (
	ReasonInvalidRequest     Reason = "invalid_request"
	ReasonNotFound           Reason = "not_found"
	ReasonNoPathFound        Reason = "no_path_found"
	ReasonServiceUnavailable Reason = "service_unavailable"
	ReasonInvalidResponse    Reason = "invalid_response"
)

// Failure is the only error a quote can end in
type Failure struct {
	Stage   Stage             `json:"stage"`
	Reason  Reason            `json:"reason"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", strings.ReplaceAll(string(f.Stage), "_", " "), f.Reason, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

type tripForm struct {
	PickupTime string `validate:"required,pickup_time"`
	Passengers int    `validate:"gte=1,lte=8"`
	Pickup     *point
	Geocoder   string `validate:"omitempty,geocoding_provider"`
	Router     string `validate:"omitempty,routing_provider"`
}

// ---------------------------------------------------------------------------
// ValidateStruct
// ---------------------------------------------------------------------------

func TestValidateStruct_Valid(t *testing.T) {
	form := tripForm{
		PickupTime: "2014-07-06 17:18:00",
		Passengers: 1,
		Pickup:     &point{Latitude: 40.7484, Longitude: -73.9857},
		Geocoder:   "OpenCage",
		Router:     "graphhopper",
	}
	assert.NoError(t, ValidateStruct(&form))
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		form  tripForm
		field string
	}{
		{
			name:  "bad timestamp",
			form:  tripForm{PickupTime: "07/06/2014 5pm", Passengers: 1},
			field: "pickuptime",
		},
		{
			name:  "missing timestamp",
			form:  tripForm{Passengers: 1},
			field: "pickuptime",
		},
		{
			name:  "zero passengers",
			form:  tripForm{PickupTime: "2014-07-06 17:18:00", Passengers: 0},
			field: "passengers",
		},
		{
			name:  "nine passengers",
			form:  tripForm{PickupTime: "2014-07-06 17:18:00", Passengers: 9},
			field: "passengers",
		},
		{
			name: "nested latitude out of range",
			form: tripForm{
				PickupTime: "2014-07-06 17:18:00",
				Passengers: 2,
				Pickup:     &point{Latitude: 123, Longitude: 0},
			},
			field: "pickup.latitude",
		},
		{
			name: "nan longitude",
			form: tripForm{
				PickupTime: "2014-07-06 17:18:00",
				Passengers: 2,
				Pickup:     &point{Latitude: 1, Longitude: math.NaN()},
			},
			field: "pickup.longitude",
		},
		{
			name:  "unknown geocoder",
			form:  tripForm{PickupTime: "2014-07-06 17:18:00", Passengers: 1, Geocoder: "mapquest"},
			field: "geocoder",
		},
		{
			name:  "router used as geocoder",
			form:  tripForm{PickupTime: "2014-07-06 17:18:00", Passengers: 1, Geocoder: "osrm"},
			field: "geocoder",
		},
		{
			name:  "geocoder used as router",
			form:  tripForm{PickupTime: "2014-07-06 17:18:00", Passengers: 1, Router: "opencage"},
			field: "router",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.form)
			require.Error(t, err)
			vErr, ok := err.(*ValidationError)
			require.True(t, ok)
			_, exists := vErr.GetFieldError(tt.field)
			assert.True(t, exists, "expected error for %s, got %v", tt.field, vErr.Errors)
		})
	}
}

// ---------------------------------------------------------------------------
// ParsePickupTime
// ---------------------------------------------------------------------------

func TestParsePickupTime(t *testing.T) {
	ts, err := ParsePickupTime("2014-07-06 17:18:00")
	require.NoError(t, err)
	assert.Equal(t, 2014, ts.Year())
	assert.Equal(t, 17, ts.Hour())

	_, err = ParsePickupTime(" 2014-07-06 17:18:00 ")
	assert.NoError(t, err)

	_, err = ParsePickupTime("2014-07-06T17:18:00Z")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Scalar helpers
// ---------------------------------------------------------------------------

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name      string
		lat, lng  float64
		expectErr bool
	}{
		{"valid", 40.7831, -73.9712, false},
		{"edge", -90, 180, false},
		{"lat too high", 91, 0, true},
		{"lng too low", 0, -181, true},
		{"nan", math.NaN(), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lng)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassengerCount(t *testing.T) {
	for n := 1; n <= 8; n++ {
		assert.NoError(t, ValidatePassengerCount(n))
	}
	assert.Error(t, ValidatePassengerCount(0))
	assert.Error(t, ValidatePassengerCount(9))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(12.5))
	assert.Error(t, ValidateAmount(-0.01))
	assert.Error(t, ValidateAmount(math.Inf(1)))
	assert.Error(t, ValidateAmount(math.NaN()))
}

// ---------------------------------------------------------------------------
// ValidationError methods
// ---------------------------------------------------------------------------

func TestValidationError_Error_MultipleFields(t *testing.T) {
	ve := &ValidationError{
		Errors: map[string]string{
			"passengers":  "passengers must be at most 8",
			"pickup_time": "pickup time must be formatted as YYYY-MM-DD HH:MM:SS",
		},
	}

	assert.Equal(t,
		"passengers: passengers must be at most 8; pickup_time: pickup time must be formatted as YYYY-MM-DD HH:MM:SS",
		ve.Error())
}

func TestValidationError_AddError_NilMap(t *testing.T) {
	ve := &ValidationError{Errors: nil}
	assert.False(t, ve.HasErrors())

	ve.AddError("field", "message")

	assert.True(t, ve.HasErrors())
	msg, exists := ve.GetFieldError("field")
	assert.True(t, exists)
	assert.Equal(t, "message", msg)
}

package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PickupTimeLayout is the accepted pickup timestamp format ("YYYY-MM-DD HH:MM:SS").
const PickupTimeLayout = "2006-01-02 15:04:05"

var (
	// Validate is the global validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators
	_ = Validate.RegisterValidation("latitude", validateLatitude)
	_ = Validate.RegisterValidation("longitude", validateLongitude)
	_ = Validate.RegisterValidation("pickup_time", validatePickupTime)
	_ = Validate.RegisterValidation("geocoding_provider", validateGeocodingProvider)
	_ = Validate.RegisterValidation("routing_provider", validateRoutingProvider)
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// validateLatitude checks if latitude is within valid range (-90 to 90)
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is within valid range (-180 to 180)
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return longitude >= -180.0 && longitude <= 180.0
}

// validatePickupTime checks the field parses with PickupTimeLayout
func validatePickupTime(fl validator.FieldLevel) bool {
	_, err := ParsePickupTime(fl.Field().String())
	return err == nil
}

var (
	geocodingProviders = []string{"opencage", "google"}
	routingProviders   = []string{"graphhopper", "osrm", "google"}
)

// validateGeocodingProvider checks the name is a geocoder we can build
func validateGeocodingProvider(fl validator.FieldLevel) bool {
	return contains(geocodingProviders, fl.Field().String())
}

// validateRoutingProvider checks the name is a router we can build
func validateRoutingProvider(fl validator.FieldLevel) bool {
	return contains(routingProviders, fl.Field().String())
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if strings.ToLower(strings.TrimSpace(s)) == item {
			return true
		}
	}
	return false
}

// ParsePickupTime parses a pickup timestamp in PickupTimeLayout.
func ParsePickupTime(s string) (time.Time, error) {
	t, err := time.Parse(PickupTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("pickup time must match %q: %w", PickupTimeLayout, err)
	}
	return t, nil
}

// ValidateCoordinates validates latitude and longitude
func ValidateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || latitude < -90.0 || latitude > 90.0 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", latitude)
	}
	if math.IsNaN(longitude) || longitude < -180.0 || longitude > 180.0 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", longitude)
	}
	return nil
}

// ValidatePassengerCount validates the passenger count (1-8)
func ValidatePassengerCount(count int) error {
	if count < 1 || count > 8 {
		return fmt.Errorf("passenger count must be between 1 and 8, got: %d", count)
	}
	return nil
}

// ValidateAmount validates monetary amount
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount must be finite: %f", amount)
	}
	if amount < 0 {
		return fmt.Errorf("amount cannot be negative: %f", amount)
	}
	return nil
}

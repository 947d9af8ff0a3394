package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// Coordinate is a latitude/longitude pair in decimal degrees.
// It is always stored in (latitude, longitude) order regardless of how an
// upstream service encoded it.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// NewCoordinate builds a validated coordinate
func NewCoordinate(latitude, longitude float64) (Coordinate, error) {
	c := Coordinate{Latitude: latitude, Longitude: longitude}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// FromLonLat builds a coordinate from a GeoJSON-style [lon, lat] pair.
func FromLonLat(pair []float64) (Coordinate, error) {
	if len(pair) < 2 {
		return Coordinate{}, fmt.Errorf("expected [lon, lat] pair, got %d values", len(pair))
	}
	return NewCoordinate(pair[1], pair[0])
}

// Validate checks both components are finite and in range
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90.0 || c.Latitude > 90.0 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180.0 || c.Longitude > 180.0 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", c.Longitude)
	}
	return nil
}

// LonLat returns the pair in GeoJSON order.
func (c Coordinate) LonLat() []float64 {
	return []float64{c.Longitude, c.Latitude}
}

// LatLng returns the pair in (lat, lng) order, as most map widgets expect.
func (c Coordinate) LatLng() []float64 {
	return []float64{c.Latitude, c.Longitude}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Latitude, c.Longitude)
}

// Haversine calculates the great-circle distance in kilometres between two
// coordinates. The result is rounded to two decimal places.
func Haversine(a, b Coordinate) float64 {
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*math.Pi/180.0)*math.Cos(b.Latitude*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(earthRadiusKm*c*100) / 100
}

// Bounds returns the south-west and north-east corners enclosing path.
func Bounds(path []Coordinate) (sw, ne Coordinate, ok bool) {
	if len(path) == 0 {
		return Coordinate{}, Coordinate{}, false
	}
	sw, ne = path[0], path[0]
	for _, p := range path[1:] {
		sw.Latitude = math.Min(sw.Latitude, p.Latitude)
		sw.Longitude = math.Min(sw.Longitude, p.Longitude)
		ne.Latitude = math.Max(ne.Latitude, p.Latitude)
		ne.Longitude = math.Max(ne.Longitude, p.Longitude)
	}
	return sw, ne, true
}

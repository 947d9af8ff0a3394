package quote

import (
	"github.com/richxcame/trip-quote/pkg/geo"
)

// DefaultMapCenter frames the map before any quote exists (Manhattan)
var DefaultMapCenter = geo.Coordinate{Latitude: 40.7831, Longitude: -73.9712}

// half-width in degrees of the default view around DefaultMapCenter
const defaultViewSpan = 0.05

// FeatureCollection is a GeoJSON feature collection
type FeatureCollection struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox,omitempty"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Geometry is a GeoJSON Point or LineString
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// NewFeatureCollection renders a quote as a route line plus pickup and dropoff
// markers. A nil quote yields an empty collection framed on DefaultMapCenter.
func NewFeatureCollection(r *Result) FeatureCollection {
	if r == nil || r.Route == nil {
		return FeatureCollection{
			Type: "FeatureCollection",
			BBox: []float64{
				DefaultMapCenter.Longitude - defaultViewSpan,
				DefaultMapCenter.Latitude - defaultViewSpan,
				DefaultMapCenter.Longitude + defaultViewSpan,
				DefaultMapCenter.Latitude + defaultViewSpan,
			},
			Features: []Feature{},
		}
	}

	line := make([][]float64, 0, len(r.Route.Path))
	for _, c := range r.Route.Path {
		line = append(line, c.LonLat())
	}

	fc := FeatureCollection{
		Type: "FeatureCollection",
		Features: []Feature{
			{
				Type:     "Feature",
				Geometry: Geometry{Type: "LineString", Coordinates: line},
				Properties: map[string]interface{}{
					"kind":         "route",
					"distance_km":  r.DistanceKm,
					"duration_min": r.DurationMin,
					"fare":         r.Fare,
					"currency":     r.Currency,
				},
			},
			marker("pickup", r.PickupCoord, r.Pickup),
			marker("dropoff", r.DropoffCoord, r.Dropoff),
		},
	}

	if sw, ne, ok := geo.Bounds(r.Route.Path); ok {
		fc.BBox = []float64{sw.Longitude, sw.Latitude, ne.Longitude, ne.Latitude}
	}
	return fc
}

func marker(kind string, c geo.Coordinate, loc Location) Feature {
	props := map[string]interface{}{"kind": kind}
	if loc.Query != "" {
		props["label"] = loc.Query
	}
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Point", Coordinates: c.LonLat()},
		Properties: props,
	}
}

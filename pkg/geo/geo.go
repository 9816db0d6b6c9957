package geo

import "math"

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCenter is Taipei 101, the fallback when no location is known.
var DefaultCenter = Point{Lat: 25.033968, Lng: 121.564468}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Pow(math.Sin(dLng/2), 2)

	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Lookup resolves a county/district pair to its representative coordinate.
// Unknown pairs fall back to DefaultCenter.
func Lookup(county, district string) (Point, bool) {
	districts, ok := Areas[county]
	if !ok {
		return DefaultCenter, false
	}
	p, ok := districts[district]
	if !ok {
		return DefaultCenter, false
	}
	return p, true
}

// Counties returns the known county names (unordered).
func Counties() []string {
	out := make([]string, 0, len(Areas))
	for c := range Areas {
		out = append(out, c)
	}
	return out
}

package geo

import "math"

const earthRadiusKm = 6371

// DefaultChangeThreshold is the axis-aligned degree delta below which a
// location update is treated as GPS noise (~tens of meters at mid-latitudes).
const DefaultChangeThreshold = 0.00025

// Coordinate is an immutable WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Distance is HaversineKm over Coordinate values.
func Distance(a, b Coordinate) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Significant reports whether next differs enough from prev to be worth
// acting on. A nil prev (first fix) is always significant. The test is an
// axis-aligned box, not a true distance: it only gates whether downstream
// work reruns, so cheap beats exact.
func Significant(prev *Coordinate, next Coordinate, threshold float64) bool {
	if prev == nil {
		return true
	}
	latDiff := math.Abs(next.Lat - prev.Lat)
	lngDiff := math.Abs(next.Lng - prev.Lng)
	return latDiff > threshold || lngDiff > threshold
}

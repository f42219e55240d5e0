package pharmacy

import "github.com/berkinory/Nobetcim/internal/shared/geo"

// Pharmacy is one duty-pharmacy record. The payload is opaque to the
// proximity logic; only the coordinate matters there. JSON field names match
// the stored rosters ("long", not "lng").
type Pharmacy struct {
	City     string  `json:"city"`
	District string  `json:"district"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Address  string  `json:"address"`
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
}

func (p Pharmacy) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lng: p.Long}
}

// Ranked is a pharmacy plus its distance from a query origin, produced fresh
// on every proximity query.
type Ranked struct {
	Pharmacy
	DistanceKm float64 `json:"distance_km"`
}

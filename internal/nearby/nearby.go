// Package nearby selects the k closest points of interest from a small
// candidate set with a bounded running selection instead of a full sort.
package nearby

import (
	"sort"

	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

// DefaultRadiusKm is the coverage radius callers use to decide whether the
// nearest result is close enough to be useful.
const DefaultRadiusKm = 15

// Point is any record that knows its coordinate. Payload passes through the
// selector untouched.
type Point interface {
	Coordinate() geo.Coordinate
}

// Ranked pairs a candidate with its recomputed distance from the origin.
type Ranked struct {
	Point      Point
	DistanceKm float64
}

type entry struct {
	Ranked
	idx int
}

// SelectNearest returns the k candidates closest to origin, sorted ascending
// by great-circle distance. The working set never exceeds k entries: while
// underfull every candidate is inserted, and once full a candidate only
// replaces the current worst when it is strictly closer. Equal distances
// keep the earlier candidate (stable by input order). Empty candidates or
// k <= 0 yield an empty result.
func SelectNearest(origin geo.Coordinate, candidates []Point, k int) []Ranked {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	working := make([]entry, 0, min(k, len(candidates)))

	for i, c := range candidates {
		d := geo.Distance(origin, c.Coordinate())

		if len(working) < k {
			working = append(working, entry{Ranked{Point: c, DistanceKm: d}, i})
			if len(working) == k {
				sortDescending(working)
			}
			continue
		}

		// working[0] is the current worst
		if d < working[0].DistanceKm {
			working[0] = entry{Ranked{Point: c, DistanceKm: d}, i}
			sortDescending(working)
		}
	}

	sort.Slice(working, func(a, b int) bool {
		if working[a].DistanceKm != working[b].DistanceKm {
			return working[a].DistanceKm < working[b].DistanceKm
		}
		return working[a].idx < working[b].idx
	})

	out := make([]Ranked, len(working))
	for i, e := range working {
		out[i] = e.Ranked
	}
	return out
}

func sortDescending(working []entry) {
	sort.Slice(working, func(a, b int) bool {
		if working[a].DistanceKm != working[b].DistanceKm {
			return working[a].DistanceKm > working[b].DistanceKm
		}
		return working[a].idx > working[b].idx
	})
}

// InRange reports whether the nearest result falls within maxRadiusKm.
// False signals "no usable coverage near this origin"; what to do about it
// is caller policy, not a selector error.
func InRange(results []Ranked, maxRadiusKm float64) bool {
	if len(results) == 0 {
		return false
	}
	return results[0].DistanceKm <= maxRadiusKm
}

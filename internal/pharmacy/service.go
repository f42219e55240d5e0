package pharmacy

import (
	"context"
	"errors"
	"time"

	"github.com/berkinory/Nobetcim/internal/nearby"
	"github.com/berkinory/Nobetcim/internal/schedule"
	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

// ErrBadDate marks a requested key that is not a valid DD/MM/YYYY date.
var ErrBadDate = errors.New("invalid date key")

type Service struct {
	store Store
	now   func() time.Time

	utcOffsetHours int
	cutoffHour     int
	cutoffMinute   int
}

func NewService(store Store) *Service {
	return &Service{
		store:          store,
		now:            time.Now,
		utcOffsetHours: schedule.DefaultUTCOffsetHours,
		cutoffHour:     schedule.DefaultCutoffHour,
		cutoffMinute:   schedule.DefaultCutoffMinute,
	}
}

// WithCutoff overrides the duty handover schedule, for deployments where the
// rotation boundary is configurable.
func (s *Service) WithCutoff(utcOffsetHours, cutoffHour, cutoffMinute int) *Service {
	s.utcOffsetHours = utcOffsetHours
	s.cutoffHour = cutoffHour
	s.cutoffMinute = cutoffMinute
	return s
}

// ActiveKey resolves the schedule key currently on duty.
func (s *Service) ActiveKey() string {
	return schedule.ActiveKey(s.now(), s.utcOffsetHours, s.cutoffHour, s.cutoffMinute)
}

// Roster returns the pharmacies for the requested key, resolving the active
// key when none is given. The resolved key is always returned so callers can
// name it in error messages. Errors: ErrBadDate, ErrNotFound, or a wrapped
// store failure.
func (s *Service) Roster(ctx context.Context, requestedKey string) ([]Pharmacy, string, error) {
	key := requestedKey
	if key == "" {
		key = s.ActiveKey()
	} else if !schedule.ValidKey(key) {
		return nil, key, ErrBadDate
	}

	roster, err := s.store.Roster(ctx, key)
	if err != nil {
		return nil, key, err
	}
	return roster, key, nil
}

// Nearest returns the k pharmacies on the requested roster closest to origin.
func (s *Service) Nearest(ctx context.Context, requestedKey string, origin geo.Coordinate, k int) ([]Ranked, string, error) {
	roster, key, err := s.Roster(ctx, requestedKey)
	if err != nil {
		return nil, key, err
	}

	candidates := make([]nearby.Point, len(roster))
	for i, p := range roster {
		candidates[i] = p
	}

	selected := nearby.SelectNearest(origin, candidates, k)
	ranked := make([]Ranked, len(selected))
	for i, r := range selected {
		ranked[i] = Ranked{Pharmacy: r.Point.(Pharmacy), DistanceKm: r.DistanceKm}
	}
	return ranked, key, nil
}

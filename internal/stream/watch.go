// Package stream serves live nearby-pharmacy updates over a websocket: the
// client pushes raw device fixes, the location engine decides which of them
// matter, and each accepted fix produces one push with the closest
// pharmacies on the active roster. Strictly point-to-point: one session, one
// consumer, no fan-out.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/berkinory/Nobetcim/internal/location"
	"github.com/berkinory/Nobetcim/internal/nearby"
	"github.com/berkinory/Nobetcim/internal/pharmacy"
	"github.com/berkinory/Nobetcim/internal/shared/geo"

	"github.com/google/uuid"
)

// DefaultFallback is the documented opt-in coordinate (Ankara) used when a
// client asks for fallback behavior and never produces a first fix.
var DefaultFallback = geo.Coordinate{Lat: 39.9334, Lng: 32.8597}

const (
	defaultK         = 5
	firstFixTimeout  = 10 * time.Second
	updateBufferSize = 8
)

// RosterProvider is the slice of the pharmacy service the watcher needs.
type RosterProvider interface {
	Nearest(ctx context.Context, requestedKey string, origin geo.Coordinate, k int) ([]pharmacy.Ranked, string, error)
}

// Update is one server-to-client message.
type Update struct {
	Type       string            `json:"type"` // "nearby" or "error"
	Location   *geo.Coordinate   `json:"location,omitempty"`
	Pharmacies []pharmacy.Ranked `json:"pharmacies,omitempty"`
	InRange    bool              `json:"in_range,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Watcher builds watch sessions against the roster provider.
type Watcher struct {
	rosters     RosterProvider
	k            int
	radiusKm     float64
	minInterval  time.Duration
	threshold    float64
	firstFixWait time.Duration
}

func NewWatcher(rosters RosterProvider) *Watcher {
	return &Watcher{
		rosters:      rosters,
		k:            defaultK,
		radiusKm:     nearby.DefaultRadiusKm,
		minInterval:  location.DefaultMinInterval,
		threshold:    geo.DefaultChangeThreshold,
		firstFixWait: firstFixTimeout,
	}
}

// WithPacing overrides the throttle interval and change threshold.
func (w *Watcher) WithPacing(minInterval time.Duration, threshold float64) *Watcher {
	w.minInterval = minInterval
	w.threshold = threshold
	return w
}

// Session is one live watch. Push feeds raw fixes in; Updates delivers
// accepted-location pushes out. Stop is idempotent and tears down the
// throttler, the subscription, and the updates channel.
type Session struct {
	ID string

	src     *location.PushSource
	track   *location.Session
	updates chan Update

	mu     sync.Mutex
	closed bool
}

// Start opens a new watch session. useFallback substitutes the default
// coordinate when no first fix arrives in time; without it the timeout is
// reported as an error update so the client can retry.
func (w *Watcher) Start(useFallback bool) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		src:     location.NewPushSource(),
		updates: make(chan Update, updateBufferSize),
	}

	th := location.NewThrottler(w.minInterval, w.threshold, func(coord geo.Coordinate) {
		w.push(s, coord)
	})

	track, err := location.Track(s.src, th, func(err error) {
		s.emit(Update{Type: "error", Error: err.Error()})
	})
	if err != nil {
		return nil, err
	}
	s.track = track

	go w.awaitFirstFix(s, useFallback)
	return s, nil
}

// awaitFirstFix implements the one-shot acquisition policy: a single bounded
// wait that either succeeds silently (the watch path already handles the
// sample), substitutes the fallback when asked to, or surfaces the error.
func (w *Watcher) awaitFirstFix(s *Session, useFallback bool) {
	ctx, cancel := context.WithTimeout(context.Background(), w.firstFixWait)
	defer cancel()

	_, err := s.src.Current(ctx, true)
	if err == nil {
		return
	}
	if useFallback {
		s.src.Emit(location.Sample{Coord: DefaultFallback})
		return
	}
	s.emit(Update{Type: "error", Error: location.ErrTimeout.Error()})
}

func (w *Watcher) push(s *Session, coord geo.Coordinate) {
	ranked, _, err := w.rosters.Nearest(context.Background(), "", coord, w.k)
	if err != nil {
		s.emit(Update{Type: "error", Error: "roster unavailable"})
		return
	}

	loc := coord
	s.emit(Update{
		Type:       "nearby",
		Location:   &loc,
		Pharmacies: ranked,
		InRange:    nearby.InRange(rankedPoints(ranked), w.radiusKm),
	})
}

func rankedPoints(ranked []pharmacy.Ranked) []nearby.Ranked {
	out := make([]nearby.Ranked, len(ranked))
	for i, r := range ranked {
		out[i] = nearby.Ranked{Point: r.Pharmacy, DistanceKm: r.DistanceKm}
	}
	return out
}

// Push feeds one raw client fix into the session.
func (s *Session) Push(coord geo.Coordinate) {
	s.src.Emit(location.Sample{Coord: coord, At: time.Now()})
}

func (s *Session) Updates() <-chan Update {
	return s.updates
}

// emit drops updates when the consumer cannot keep up; the next accepted
// location supersedes anything it missed.
func (s *Session) emit(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- u:
	default:
	}
}

func (s *Session) Stop() {
	s.track.Stop()
	s.src.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}

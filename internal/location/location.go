// Package location ingests raw device-location samples and decides which of
// them downstream consumers get to see: a Source produces samples, a
// Throttler coalesces and paces them, and only significant changes survive.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnavailable      = errors.New("location unavailable")
)

// Sample is one raw coordinate fix. It has no identity: samples are folded
// into throttling state and discarded.
type Sample struct {
	Coord geo.Coordinate
	At    time.Time
}

// Source abstracts a platform location feed.
type Source interface {
	// Current resolves a single fix within ctx's deadline, or fails with an
	// error from the package taxonomy. It never hangs past the deadline and
	// never substitutes a fallback coordinate; that policy belongs to the
	// caller. highAccuracy is a platform hint and may be ignored.
	Current(ctx context.Context, highAccuracy bool) (geo.Coordinate, error)

	// Watch registers a long-lived subscription delivering every raw sample
	// as the platform produces them, unfiltered. It returns immediately.
	// The caller must Stop the subscription or it leaks.
	Watch(onSample func(Sample), onErr func(error)) (*Subscription, error)
}

// Subscription is a handle on a live watch. Stop is idempotent and always
// terminates delivery, even after the source has already failed.
type Subscription struct {
	once sync.Once
	stop func()
}

func (s *Subscription) Stop() {
	s.once.Do(s.stop)
}

// Session couples a source subscription with its throttler so one Stop tears
// down both. One session per throttler; throttle state is never shared.
type Session struct {
	once sync.Once
	sub  *Subscription
	th   *Throttler
}

// Track subscribes th to src's raw feed. Stopping the returned session is the
// caller's required cleanup; it is safe to call redundantly.
func Track(src Source, th *Throttler, onErr func(error)) (*Session, error) {
	sub, err := src.Watch(th.OnSample, onErr)
	if err != nil {
		return nil, err
	}
	return &Session{sub: sub, th: th}, nil
}

func (s *Session) Stop() {
	s.once.Do(func() {
		s.sub.Stop()
		s.th.Stop()
	})
}

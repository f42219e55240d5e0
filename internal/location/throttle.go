package location

import (
	"sync"
	"time"

	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

// DefaultMinInterval is the minimum wall-clock gap between two accepted
// location deliveries.
const DefaultMinInterval = 10 * time.Second

// Throttler paces one tracking session's location deliveries: at most one
// per minimum interval, bursts collapsed to the newest sample, and every
// delivery gated through geo.Significant. State is owned exclusively by the
// throttler and serialized by its mutex, so samples may arrive from any
// goroutine.
type Throttler struct {
	mu sync.Mutex

	minInterval time.Duration
	threshold   float64
	deliver     func(geo.Coordinate)
	now         func() time.Time

	lastDeliveredAt time.Time
	lastDelivered   *geo.Coordinate
	pending         *Sample
	timer           *time.Timer
	stopped         bool
}

// NewThrottler builds a throttler delivering accepted coordinates to deliver.
// Zero minInterval and threshold select the defaults.
func NewThrottler(minInterval time.Duration, threshold float64, deliver func(geo.Coordinate)) *Throttler {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if threshold <= 0 {
		threshold = geo.DefaultChangeThreshold
	}
	return &Throttler{
		minInterval: minInterval,
		threshold:   threshold,
		deliver:     deliver,
		now:         time.Now,
	}
}

// OnSample records s as the pending sample and either delivers it now (when
// the minimum interval has elapsed) or arms a timer for the remaining wait.
// After Stop it is a no-op.
func (t *Throttler) OnSample(s Sample) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	t.pending = &s

	if t.now().Sub(t.lastDeliveredAt) >= t.minInterval {
		coord, ok := t.takePendingLocked()
		t.mu.Unlock()
		if ok {
			t.deliver(coord)
		}
		return
	}

	if t.timer == nil {
		remaining := t.minInterval - t.now().Sub(t.lastDeliveredAt)
		t.timer = time.AfterFunc(remaining, t.fire)
	}
	t.mu.Unlock()
}

// fire is the deferred-delivery path. Pending may have been superseded by
// newer samples since the timer was armed; only the most recent one is ever
// delivered. A nil pending means the immediate path already won this epoch.
func (t *Throttler) fire() {
	t.mu.Lock()
	t.timer = nil
	if t.stopped || t.pending == nil {
		t.mu.Unlock()
		return
	}
	coord, ok := t.takePendingLocked()
	t.mu.Unlock()
	if ok {
		t.deliver(coord)
	}
}

// takePendingLocked consumes the pending sample through the significance
// gate. It cancels any live timer so the timer and immediate paths stay
// mutually exclusive by construction.
func (t *Throttler) takePendingLocked() (geo.Coordinate, bool) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	s := *t.pending
	t.pending = nil

	if !geo.Significant(t.lastDelivered, s.Coord, t.threshold) {
		return geo.Coordinate{}, false
	}

	accepted := s.Coord
	t.lastDelivered = &accepted
	t.lastDeliveredAt = t.now()
	return accepted, true
}

// Stop cancels any armed timer and resets all state. Subsequent OnSample
// calls are no-ops; a restarted tracking session gets a fresh Throttler.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
	t.lastDelivered = nil
	t.lastDeliveredAt = time.Time{}
	t.stopped = true
}

package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

// PushSource is a Source fed by an external push-style producer, such as a
// websocket client streaming its device fixes. Emit and Fail are the
// producer side; Current and Watch are the consumer side.
type PushSource struct {
	mu       sync.Mutex
	onSample func(Sample)
	onErr    func(error)
	watching bool
	closed   bool
	waiters  []chan Sample
}

func NewPushSource() *PushSource {
	return &PushSource{}
}

// Emit delivers one raw sample to the active watcher and to any Current
// callers waiting for a fix. Samples emitted with nobody listening are dropped.
func (p *PushSource) Emit(s Sample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	onSample := p.onSample
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w <- s
	}
	if onSample != nil {
		onSample(s)
	}
}

// Fail reports a producer-side error to the active watcher.
func (p *PushSource) Fail(err error) {
	p.mu.Lock()
	onErr := p.onErr
	p.mu.Unlock()
	if onErr != nil {
		onErr(err)
	}
}

// Close marks the feed dead. Waiting and future Current calls fail with
// ErrUnavailable; further Emits are dropped.
func (p *PushSource) Close() {
	p.mu.Lock()
	p.closed = true
	p.onSample = nil
	p.onErr = nil
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

func (p *PushSource) Current(ctx context.Context, _ bool) (geo.Coordinate, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return geo.Coordinate{}, ErrUnavailable
	}
	w := make(chan Sample, 1)
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case s, ok := <-w:
		if !ok {
			return geo.Coordinate{}, ErrUnavailable
		}
		return s.Coord, nil
	case <-ctx.Done():
		p.dropWaiter(w)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return geo.Coordinate{}, ErrTimeout
		}
		return geo.Coordinate{}, ctx.Err()
	}
}

func (p *PushSource) Watch(onSample func(Sample), onErr func(error)) (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrUnavailable
	}
	if p.watching {
		return nil, errors.New("watch already active")
	}

	p.watching = true
	p.onSample = onSample
	p.onErr = onErr

	return &Subscription{stop: func() {
		p.mu.Lock()
		p.watching = false
		p.onSample = nil
		p.onErr = nil
		p.mu.Unlock()
	}}, nil
}

func (p *PushSource) dropWaiter(w chan Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.waiters {
		if cur == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

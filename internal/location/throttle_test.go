package location

import (
	"sync"
	"testing"
	"time"

	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

type recorder struct {
	mu     sync.Mutex
	coords []geo.Coordinate
}

func (r *recorder) deliver(c geo.Coordinate) {
	r.mu.Lock()
	r.coords = append(r.coords, c)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []geo.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]geo.Coordinate, len(r.coords))
	copy(out, r.coords)
	return out
}

func sampleAt(lat, lng float64) Sample {
	return Sample{Coord: geo.Coordinate{Lat: lat, Lng: lng}, At: time.Now()}
}

func TestThrottlerFirstSampleDeliversImmediately(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(50*time.Millisecond, 0, rec.deliver)
	defer th.Stop()

	th.OnSample(sampleAt(39.9, 32.8))

	got := rec.snapshot()
	if len(got) != 1 || got[0].Lat != 39.9 {
		t.Fatalf("expected immediate first delivery, got %v", got)
	}
}

func TestThrottlerBurstCollapsesToNewest(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(60*time.Millisecond, 0, rec.deliver)
	defer th.Stop()

	th.OnSample(sampleAt(10, 10))
	// burst inside the interval: only the last survives
	th.OnSample(sampleAt(11, 11))
	th.OnSample(sampleAt(12, 12))
	th.OnSample(sampleAt(13, 13))

	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("expected burst to defer, got %v", got)
	}

	time.Sleep(120 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected exactly one deferred delivery, got %v", got)
	}
	if got[1].Lat != 13 || got[1].Lng != 13 {
		t.Fatalf("expected newest sample delivered, got %v", got[1])
	}
}

func TestThrottlerInsignificantChangeSuppressed(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(10*time.Millisecond, geo.DefaultChangeThreshold, rec.deliver)
	defer th.Stop()

	th.OnSample(sampleAt(39.9334, 32.8597))
	time.Sleep(20 * time.Millisecond)
	th.OnSample(sampleAt(39.9334+0.0001, 32.8597))

	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("noise sample must not be delivered, got %v", got)
	}
}

func TestThrottlerDeliversAgainAfterInterval(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(30*time.Millisecond, 0, rec.deliver)
	defer th.Stop()

	th.OnSample(sampleAt(10, 10))
	time.Sleep(50 * time.Millisecond)
	th.OnSample(sampleAt(20, 20))

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected second immediate delivery after interval, got %v", got)
	}
	if got[0].Lat != 10 || got[1].Lat != 20 {
		t.Fatalf("deliveries out of order: %v", got)
	}
}

func TestThrottlerStopCancelsPendingTimer(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(40*time.Millisecond, 0, rec.deliver)

	th.OnSample(sampleAt(10, 10))
	th.OnSample(sampleAt(20, 20)) // armed
	th.Stop()

	time.Sleep(80 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("stop must cancel the deferred delivery, got %v", got)
	}
}

func TestThrottlerOnSampleAfterStopIsNoop(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(10*time.Millisecond, 0, rec.deliver)
	th.Stop()
	th.Stop() // redundant stop is safe

	th.OnSample(sampleAt(10, 10))
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no deliveries after stop, got %v", got)
	}
}

func TestThrottlerConcurrentSamples(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(20*time.Millisecond, 0, rec.deliver)
	defer th.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			th.OnSample(sampleAt(float64(n), float64(n)))
		}(i)
	}
	wg.Wait()
	time.Sleep(60 * time.Millisecond)

	got := rec.snapshot()
	if len(got) == 0 || len(got) > 2 {
		t.Fatalf("expected at most one delivery per interval, got %d", len(got))
	}
}

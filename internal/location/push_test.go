package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berkinory/Nobetcim/internal/shared/geo"
)

func TestPushSourceCurrent(t *testing.T) {
	src := NewPushSource()
	defer src.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		src.Emit(Sample{Coord: geo.Coordinate{Lat: 39.9, Lng: 32.8}})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	coord, err := src.Current(ctx, true)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if coord.Lat != 39.9 {
		t.Fatalf("unexpected coordinate: %v", coord)
	}
}

func TestPushSourceCurrentTimeout(t *testing.T) {
	src := NewPushSource()
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Current(ctx, false)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestPushSourceCurrentAfterClose(t *testing.T) {
	src := NewPushSource()
	src.Close()

	_, err := src.Current(context.Background(), false)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPushSourceWatchDeliversRawSamples(t *testing.T) {
	src := NewPushSource()
	defer src.Close()

	var mu sync.Mutex
	var got []Sample
	sub, err := src.Watch(func(s Sample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer sub.Stop()

	// no filtering at this layer: identical samples all pass through
	src.Emit(Sample{Coord: geo.Coordinate{Lat: 1, Lng: 1}})
	src.Emit(Sample{Coord: geo.Coordinate{Lat: 1, Lng: 1}})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 raw samples, got %d", len(got))
	}
	if got[0].At.IsZero() {
		t.Fatalf("expected acquisition timestamp to be stamped")
	}
}

func TestPushSourceSecondWatchRejected(t *testing.T) {
	src := NewPushSource()
	defer src.Close()

	sub, err := src.Watch(func(Sample) {}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if _, err := src.Watch(func(Sample) {}, nil); err == nil {
		t.Fatalf("expected second watch to be rejected")
	}

	sub.Stop()
	sub.Stop() // idempotent

	// stopped subscription frees the slot
	sub2, err := src.Watch(func(Sample) {}, nil)
	if err != nil {
		t.Fatalf("watch after stop: %v", err)
	}
	sub2.Stop()
}

func TestPushSourceFailReachesWatcher(t *testing.T) {
	src := NewPushSource()
	defer src.Close()

	errCh := make(chan error, 1)
	sub, err := src.Watch(func(Sample) {}, func(e error) { errCh <- e })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer sub.Stop()

	src.Fail(ErrPermissionDenied)

	select {
	case e := <-errCh:
		if !errors.Is(e, ErrPermissionDenied) {
			t.Fatalf("unexpected error: %v", e)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for error callback")
	}
}

func TestPushSourceStopAfterCloseIsSafe(t *testing.T) {
	src := NewPushSource()
	sub, err := src.Watch(func(Sample) {}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	src.Close()
	sub.Stop()

	src.Emit(Sample{Coord: geo.Coordinate{Lat: 1, Lng: 1}})
}

func TestTrackStopsBoth(t *testing.T) {
	src := NewPushSource()
	defer src.Close()

	var mu sync.Mutex
	var got []geo.Coordinate
	th := NewThrottler(10*time.Millisecond, 0, func(c geo.Coordinate) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	session, err := Track(src, th, nil)
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	src.Emit(Sample{Coord: geo.Coordinate{Lat: 5, Lng: 5}})

	session.Stop()
	session.Stop() // redundant stop is safe

	src.Emit(Sample{Coord: geo.Coordinate{Lat: 6, Lng: 6}})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Lat != 5 {
		t.Fatalf("expected only the pre-stop delivery, got %v", got)
	}
}

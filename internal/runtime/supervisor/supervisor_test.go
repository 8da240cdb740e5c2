package supervisor

import (
	"context"
	"errors"
	"testing"
)

func TestGoRecordsFirstErrorAndCancels(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("boom", func(ctx context.Context) error { return errors.New("boom") })
	if err := s.Wait(context.Background()); err == nil {
		t.Fatal("expected the goroutine error to surface from Wait")
	}
	select {
	case <-s.Context().Done():
	default:
		t.Fatal("expected cancel-on-error to cancel the supervisor context")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("panics", func(ctx context.Context) error { panic("kaboom") })
	if err := s.Wait(context.Background()); err == nil {
		t.Fatal("expected the panic to be recorded as an error")
	}
}

func TestCountersTrackGoroutines(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		s.Go0("worker", func(ctx context.Context) { <-release })
	}
	// Go bumps the counters before spawning, so this is race-free.
	if c := s.Counters(); c.Started != 3 || c.Active != 3 {
		t.Fatalf("expected 3 started and 3 active, got %+v", c)
	}

	close(release)
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if c := s.Counters(); c.Started != 3 || c.Active != 0 {
		t.Fatalf("expected drained counters, got %+v", c)
	}
}

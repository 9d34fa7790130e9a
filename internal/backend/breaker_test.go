package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	boom := errors.New("connection refused")

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return boom
	}

	for i := 0; i < 2; i++ {
		if err := b.Do(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	if err := b.Do(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected open circuit to skip the call, calls=%d", calls)
	}
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), func(ctx context.Context) error {
			return &APIError{Status: http.StatusBadRequest, Message: "Missing required fields"}
		})
	}

	if b.State() != string(stateClosed) {
		t.Fatalf("expected closed breaker, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }

	_ = b.Do(context.Background(), func(ctx context.Context) error {
		return &APIError{Status: http.StatusBadGateway}
	})
	if b.State() != string(stateOpen) {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(11 * time.Second)

	if err := b.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected trial call to run, got %v", err)
	}
	if b.State() != string(stateClosed) {
		t.Fatalf("expected closed after successful trial, got %s", b.State())
	}
}

func TestBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		err := b.Do(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("call %d: expected deadline error, got %v", i, err)
		}
	}

	if b.State() != string(stateClosed) {
		t.Fatalf("expected closed breaker after caller timeouts, got %s", b.State())
	}
	if err := b.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected healthy call to pass, got %v", err)
	}
}

func TestBreaker_CancelledTrialFreesHalfOpenSlot(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }

	_ = b.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	now = now.Add(11 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })

	if b.State() != string(stateHalfOpen) {
		t.Fatalf("expected half-open after cancelled trial, got %s", b.State())
	}
	if err := b.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected the next trial to run, got %v", err)
	}
	if b.State() != string(stateClosed) {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

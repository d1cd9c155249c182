package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: noSleep}

	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	var calls int
	wantErr := errors.New("still failing")
	policy := RetryPolicy{MaxAttempts: 3, Sleep: noSleep}

	err := policy.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected final error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryPolicy_ZeroValueSingleAttempt(t *testing.T) {
	var calls int
	wantErr := errors.New("boom")

	err := RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryPolicy_NoRetryOnClientStatus(t *testing.T) {
	var calls int
	policy := RetryPolicy{MaxAttempts: 5, Sleep: noSleep}

	err := policy.Do(context.Background(), func() error {
		calls++
		return &StatusError{Code: 400}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("client errors must not retry, calls = %d", calls)
	}
}

func TestRetryPolicy_RetriesServerStatus(t *testing.T) {
	var calls int
	policy := RetryPolicy{MaxAttempts: 3, Sleep: noSleep}

	err := policy.Do(context.Background(), func() error {
		calls++
		return &StatusError{Code: 503}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryPolicy_NoRetryAfterCircuitOpens(t *testing.T) {
	var calls int
	policy := RetryPolicy{MaxAttempts: 5, Sleep: noSleep}

	err := policy.Do(context.Background(), func() error {
		calls++
		return ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryPolicy_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := RetryPolicy{MaxAttempts: 3, Sleep: noSleep}.Do(ctx, func() error {
		calls++
		return errors.New("never seen")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return clock },
	})
	boom := errors.New("boom")
	fail := func() error { return boom }

	if err := breaker.Execute(fail); !errors.Is(err, boom) {
		t.Fatalf("attempt 1: %v", err)
	}
	if err := breaker.Execute(fail); !errors.Is(err, boom) {
		t.Fatalf("attempt 2: %v", err)
	}

	var calls int
	err := breaker.Execute(func() error { calls++; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("open breaker must not invoke fn")
	}
}

func TestCircuitBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return clock },
	})

	if err := breaker.Execute(func() error { return errors.New("boom") }); err == nil {
		t.Fatalf("expected failure")
	}
	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	clock = clock.Add(2 * time.Second)
	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	// Closed again: calls flow.
	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit: %v", err)
	}
}

func TestCircuitBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return clock },
	})

	if err := breaker.Execute(func() error { return errors.New("boom") }); err == nil {
		t.Fatalf("expected failure")
	}

	clock = clock.Add(2 * time.Second)
	if err := breaker.Execute(func() error { return errors.New("still down") }); err == nil {
		t.Fatalf("expected probe failure")
	}
	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

func TestCircuitBreaker_NilExecutesDirectly(t *testing.T) {
	var breaker *CircuitBreaker
	var calls int
	if err := breaker.Execute(func() error { calls++; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRateLimiter_BurstThenWaits(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var waited []time.Duration

	limiter := NewRateLimiter(100*time.Millisecond, 2, func(d time.Duration) {
		waited = append(waited, d)
	})
	limiter.now = func() time.Time { return clock }
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("burst wait %d: %v", i, err)
		}
	}
	if len(waited) != 0 {
		t.Fatalf("burst should not wait, got %v", waited)
	}

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if len(waited) == 0 {
		t.Fatalf("expected a recorded wait once the bucket drained")
	}
}

func TestRateLimiter_DisabledWhenUnconfigured(t *testing.T) {
	limiter := NewRateLimiter(0, 0, nil)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRateLimiter_HonorsContextCancellation(t *testing.T) {
	limiter := NewRateLimiter(time.Hour, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package transport

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// RetryPolicy controls retry behavior for outbound calls. The zero value
// performs a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(context.Context, time.Duration) error
	ShouldRetry func(error) bool
}

// Do executes fn with retries according to the policy.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = defaultShouldRetry
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if attempt == attempts || !shouldRetry(err) {
			return err
		}

		delay := p.BaseDelay
		if delay > 0 {
			delay = delay << (attempt - 1)
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		if delay > 0 {
			if err := sleep(ctx, jitter(delay)); err != nil {
				return err
			}
		}
	}
	return nil
}

func defaultShouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		// Client errors are not retryable; the request will not get better.
		return statusErr.Code >= 500
	}
	return true
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Now          func() time.Time
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker stops calls to a collaborator after repeated failures.
type CircuitBreaker struct {
	mu         sync.Mutex
	maxFails   int
	resetAfter time.Duration
	now        func() time.Time

	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker constructs a circuit breaker with sane defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	maxFails := cfg.MaxFailures
	if maxFails < 1 {
		maxFails = 1
	}
	resetAfter := cfg.ResetTimeout
	if resetAfter <= 0 {
		resetAfter = 2 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		maxFails:   maxFails,
		resetAfter: resetAfter,
		now:        now,
	}
}

// Execute runs fn while enforcing breaker state. While open it fails fast
// with ErrCircuitOpen; after the reset timeout a single probe is allowed.
func (c *CircuitBreaker) Execute(fn func() error) error {
	if c == nil {
		return fn()
	}

	now := c.now()

	c.mu.Lock()
	switch c.state {
	case breakerOpen:
		if now.Sub(c.openedAt) < c.resetAfter {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
		c.state = breakerHalfOpen
	case breakerHalfOpen:
		if c.probing {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	if c.state == breakerHalfOpen {
		c.probing = true
	}
	c.mu.Unlock()

	err := fn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == breakerHalfOpen {
		c.probing = false
	}

	if err == nil {
		c.state = breakerClosed
		c.failures = 0
		return nil
	}

	if c.state == breakerHalfOpen {
		c.state = breakerOpen
		c.openedAt = now
		c.failures = 0
		return err
	}

	c.failures++
	if c.failures >= c.maxFails {
		c.state = breakerOpen
		c.openedAt = now
	}
	return err
}

// RateLimiter is a token-bucket limiter refilling one token every rate.
type RateLimiter struct {
	mu     sync.Mutex
	rate   time.Duration
	burst  int
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	onWait func(time.Duration)

	tokens int
	last   time.Time
}

// NewRateLimiter constructs a limiter. onWait, if non-nil, observes each
// wait before sleeping.
func NewRateLimiter(rate time.Duration, burst int, onWait func(time.Duration)) *RateLimiter {
	limiter := &RateLimiter{
		rate:   rate,
		burst:  burst,
		now:    time.Now,
		sleep:  sleepWithContext,
		onWait: onWait,
	}
	limiter.tokens = burst
	limiter.last = limiter.now()
	return limiter
}

// Wait blocks until a token is available or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.Lock()
		now := r.now()
		r.refill(now)
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		wait := r.rate - now.Sub(r.last)
		r.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if r.onWait != nil {
			r.onWait(wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.last)
	if elapsed < r.rate {
		return
	}
	add := int(elapsed / r.rate)
	if add <= 0 {
		return
	}
	r.tokens += add
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.last = r.last.Add(time.Duration(add) * r.rate)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

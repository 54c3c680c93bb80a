package retry

import (
	"context"
	"math"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultMaxAttempts is the total number of attempts, first one included
	DefaultMaxAttempts = 3
	// MaxAttemptsLimit bounds MaxAttempts
	MaxAttemptsLimit = 10
	// DefaultBaseDelay is the delay before the second attempt
	DefaultBaseDelay = 200 * time.Millisecond
	// DefaultMultiplier grows the delay between successive attempts
	DefaultMultiplier = 2.0
	// DefaultMaxDelay caps any single delay
	DefaultMaxDelay = 30 * time.Second
	// DefaultJitter is the fraction of the delay added at random
	DefaultJitter = 0.2
)

// Backoff is an exponential backoff Policy. The zero value is usable and
// behaves like DefaultBackoff without jitter or Retry-After support.
type Backoff struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	Multiplier        float64
	MaxDelay          time.Duration
	Jitter            float64
	Statuses          StatusPredicate
	RespectRetryAfter bool

	// Classifier replaces the default classification of Unclassified outcomes.
	Classifier func(ctx context.Context, o Outcome) Kind
}

var _ Policy = (*Backoff)(nil)

// DefaultBackoff returns the policy used when a client is built without one.
func DefaultBackoff() *Backoff {
	return &Backoff{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		Multiplier:        DefaultMultiplier,
		MaxDelay:          DefaultMaxDelay,
		Jitter:            DefaultJitter,
		Statuses:          ServerErrorStatuses,
		RespectRetryAfter: true,
	}
}

// NoRetry returns a policy that makes exactly one attempt.
func NoRetry() *Backoff {
	return &Backoff{MaxAttempts: 1}
}

// normalized returns a copy with defaults applied and values clamped.
func (b *Backoff) normalized() Backoff {
	n := *b
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = DefaultMaxAttempts
	}
	if n.MaxAttempts > MaxAttemptsLimit {
		n.MaxAttempts = MaxAttemptsLimit
	}
	if n.BaseDelay <= 0 {
		n.BaseDelay = DefaultBaseDelay
	}
	if n.Multiplier < 1 {
		n.Multiplier = DefaultMultiplier
	}
	if n.MaxDelay <= 0 {
		n.MaxDelay = DefaultMaxDelay
	}
	if n.MaxDelay < n.BaseDelay {
		n.MaxDelay = n.BaseDelay
	}
	n.Jitter = min(max(n.Jitter, 0), 1)
	if n.Statuses == nil {
		n.Statuses = ServerErrorStatuses
	}
	return n
}

// Attempts returns the effective attempt budget.
func (b *Backoff) Attempts() int {
	n := b.normalized()
	return n.MaxAttempts
}

// Execute runs fn until it yields a non-retryable outcome, the attempt
// budget is spent, or ctx is done.
func (b *Backoff) Execute(ctx context.Context, fn AttemptFunc) Outcome {
	cfg := b.normalized()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Err: err, Kind: Cancelled, Attempt: attempt - 1}
		}

		o := fn(ctx, attempt)
		o.Attempt = attempt
		if ctx.Err() != nil {
			o.Kind = Cancelled
		}
		if o.Kind == Unclassified {
			o.Kind = cfg.classify(ctx, o)
		}

		if o.Kind != Retryable || attempt >= cfg.MaxAttempts {
			return o
		}

		delay := cfg.Delay(attempt, o)
		o.Release()

		if err := sleep(ctx, delay); err != nil {
			return Outcome{Err: err, Kind: Cancelled, Attempt: attempt}
		}
	}
}

func (b *Backoff) classify(ctx context.Context, o Outcome) Kind {
	if b.Classifier != nil {
		return b.Classifier(ctx, o)
	}
	return Classify(ctx, o, b.Statuses)
}

// Delay returns the wait after attempt (1-based) produced o. Jitter is
// drawn by retryablehttp.LinearJitterBackoff from [delay, delay*(1+Jitter)]
// and the result never exceeds MaxDelay, Retry-After included.
func (b *Backoff) Delay(attempt int, o Outcome) time.Duration {
	cfg := b.normalized()
	if attempt < 1 {
		attempt = 1
	}

	d := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if d > float64(cfg.MaxDelay) || math.IsInf(d, 1) {
		d = float64(cfg.MaxDelay)
	}
	delay := time.Duration(d)
	spread := time.Duration(float64(delay) * cfg.Jitter)
	delay = retryablehttp.LinearJitterBackoff(delay, delay+spread, 0, nil)
	delay = min(delay, cfg.MaxDelay)

	if cfg.RespectRetryAfter {
		if ra := RetryAfter(o.Response); ra > 0 {
			delay = max(delay, min(ra, cfg.MaxDelay))
		}
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

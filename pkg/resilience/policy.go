package resilience

import (
	"math"
	"math/rand"
	"time"

	"github.com/harun/reagent/pkg/model"
)

// BackoffKind selects how the wait interval grows between attempts.
type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy controls per-candidate retry behavior. Policies are immutable;
// derive variants with the With* methods.
type RetryPolicy struct {
	MaxAttempts  int
	Backoff      BackoffKind
	BaseInterval time.Duration
	MaxInterval  time.Duration
	JitterFactor float64
	RetryOn      []model.ErrorCategory
}

// DefaultPolicy returns the stock retry policy: three attempts, exponential
// backoff from one second capped at thirty, no jitter.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		Backoff:      BackoffExponential,
		BaseInterval: time.Second,
		MaxInterval:  30 * time.Second,
		RetryOn: []model.ErrorCategory{
			model.CategoryTransport,
			model.CategoryRateLimit,
			model.CategoryServer,
		},
	}
}

// WithMaxAttempts returns a copy with a different attempt budget.
func (p RetryPolicy) WithMaxAttempts(n int) RetryPolicy {
	p.MaxAttempts = n
	return p
}

// WithBackoff returns a copy with a different backoff family and base.
func (p RetryPolicy) WithBackoff(kind BackoffKind, base time.Duration) RetryPolicy {
	p.Backoff = kind
	p.BaseInterval = base
	return p
}

// WithJitter returns a copy with the given jitter factor.
func (p RetryPolicy) WithJitter(factor float64) RetryPolicy {
	p.JitterFactor = factor
	return p
}

// Retryable reports whether the error's category is listed in RetryOn.
func (p RetryPolicy) Retryable(err error) bool {
	cat := model.Categorize(err)
	for _, allowed := range p.RetryOn {
		if cat == allowed {
			return true
		}
	}
	return false
}

// Interval computes the backoff wait after the given failed attempt (1-based).
// Exponential growth is base * 2^(attempt-1), capped at MaxInterval, with
// optional jitter added on top.
func (p RetryPolicy) Interval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var interval time.Duration
	switch p.Backoff {
	case BackoffConstant:
		interval = p.BaseInterval
	case BackoffLinear:
		interval = p.BaseInterval * time.Duration(attempt)
	default:
		// Doubling stops at the cap and saturates before it can wrap
		// negative, so the interval stays positive for any attempt count.
		interval = p.BaseInterval
		for i := 1; i < attempt; i++ {
			if interval <= 0 || (p.MaxInterval > 0 && interval >= p.MaxInterval) {
				break
			}
			if interval > math.MaxInt64/2 {
				interval = math.MaxInt64
				break
			}
			interval *= 2
		}
	}

	if p.MaxInterval > 0 && interval > p.MaxInterval {
		interval = p.MaxInterval
	}

	if p.JitterFactor > 0 {
		jitter := time.Duration(rand.Float64() * p.JitterFactor * float64(interval))
		interval += jitter
	}

	return interval
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/events"
	"github.com/harun/reagent/pkg/model"
)

// ErrAllModelsFailed is returned when every candidate in the chain has been
// skipped or exhausted.
var ErrAllModelsFailed = errors.New("all models failed")

// Fallback pairs a fallback model with its own retry policy. A nil policy
// inherits the wrapper's default so primary and fallbacks behave identically.
type Fallback struct {
	Model  model.Model
	Policy *RetryPolicy
}

// Config configures a resilient model wrapper.
type Config struct {
	Model     model.Model
	Policy    *RetryPolicy
	Fallbacks []Fallback

	// PreferHealthy skips candidates whose cached health snapshot is
	// unhealthy. Models without a health check are never skipped.
	PreferHealthy bool
	HealthTTL     time.Duration

	Events *events.Emitter
	Logger zerolog.Logger
}

type candidate struct {
	model  model.Model
	policy RetryPolicy
}

// Chain is a model decorated with retry, fallback and health-based routing.
// It satisfies model.Model, so callers never see the difference.
type Chain struct {
	candidates    []candidate
	passthrough   bool
	preferHealthy bool
	health        *healthCache
	events        *events.Emitter
	logger        zerolog.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// Wrap builds a resilient chain around a primary model.
func Wrap(cfg Config) *Chain {
	defaultPolicy := DefaultPolicy()
	if cfg.Policy != nil {
		defaultPolicy = *cfg.Policy
	}

	candidates := []candidate{{model: cfg.Model, policy: defaultPolicy}}
	for _, fb := range cfg.Fallbacks {
		policy := defaultPolicy
		if fb.Policy != nil {
			policy = *fb.Policy
		}
		candidates = append(candidates, candidate{model: fb.Model, policy: policy})
	}

	// With nothing configured the wrapper is a zero-overhead passthrough.
	passthrough := cfg.Policy == nil && len(cfg.Fallbacks) == 0 && !cfg.PreferHealthy

	return &Chain{
		candidates:    candidates,
		passthrough:   passthrough,
		preferHealthy: cfg.PreferHealthy,
		health:        newHealthCache(cfg.HealthTTL),
		events:        cfg.Events,
		logger:        cfg.Logger.With().Str("component", "resilience").Logger(),
		sleep:         sleepCtx,
	}
}

// WithFallback returns a copy of the chain extended with one more fallback.
// The receiver is left untouched.
func (c *Chain) WithFallback(m model.Model, policy *RetryPolicy) *Chain {
	clone := *c
	fallbackPolicy := c.candidates[0].policy
	if policy != nil {
		fallbackPolicy = *policy
	}
	clone.candidates = append(append([]candidate(nil), c.candidates...), candidate{model: m, policy: fallbackPolicy})
	clone.passthrough = false
	return &clone
}

// Name returns the primary model's name.
func (c *Chain) Name() string {
	return c.candidates[0].model.Name()
}

// Generate walks the chain until one candidate produces a response.
func (c *Chain) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if c.passthrough {
		return c.candidates[0].model.Generate(ctx, req)
	}

	var lastErr error

	for i, cand := range c.candidates {
		hasNext := i < len(c.candidates)-1

		// A health skip always announces itself, even for the last candidate;
		// exhaustion below reports failover only when a successor exists.
		if c.preferHealthy && !c.health.Healthy(ctx, cand.model) {
			c.logger.Warn().Str("model", cand.model.Name()).Msg("Skipping unhealthy model")
			c.events.Emit(events.Failover, events.FailoverEvent{
				From:   cand.model.Name(),
				Reason: "unhealthy",
			})
			continue
		}

		resp, err := c.generateWithRetry(ctx, cand, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		c.logger.Warn().Str("model", cand.model.Name()).Err(err).Msg("Model exhausted")
		if hasNext {
			c.events.Emit(events.Failover, events.FailoverEvent{
				From:   cand.model.Name(),
				Reason: "exhausted",
			})
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no usable model in chain")
	}
	return nil, fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

// generateWithRetry attempts one candidate up to its policy's budget.
// Non-retryable failures end the candidate's turn immediately.
func (c *Chain) generateWithRetry(ctx context.Context, cand candidate, req model.Request) (*model.Response, error) {
	maxAttempts := cand.policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := cand.model.Generate(ctx, req)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().Str("model", cand.model.Name()).Int("attempts", attempt).Msg("Model recovered")
				c.events.Emit(events.Recovery, events.RecoveryEvent{
					Model:    cand.model.Name(),
					Attempts: attempt,
				})
			}
			return resp, nil
		}

		lastErr = err

		if !cand.policy.Retryable(err) {
			return nil, err
		}

		if attempt == maxAttempts {
			break
		}

		interval := cand.policy.Interval(attempt)
		c.logger.Info().
			Str("model", cand.model.Name()).
			Int("attempt", attempt).
			Dur("interval", interval).
			Err(err).
			Msg("Retrying after error")
		c.events.Emit(events.Retry, events.RetryEvent{
			Model:    cand.model.Name(),
			Attempt:  attempt,
			Interval: interval,
			Err:      err,
		})

		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

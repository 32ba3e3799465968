// Package resilience decorates a model with retry, fallback and health-based
// routing while keeping the Generate contract identical to the wrapped model.
//
// Invariants:
// - Candidates are tried strictly in chain order; nothing runs speculatively.
// - A fallback is attempted only after its predecessor's retries are exhausted.
// - Only retryable error categories consume attempts.
// - The wrapper raises only on full chain exhaustion, wrapping the last cause.
//
// Usage:
//
//	policy := resilience.DefaultPolicy()
//	wrapped := resilience.Wrap(resilience.Config{
//		Model:  primary,
//		Policy: &policy,
//	})
//	resp, err := wrapped.Generate(ctx, req)
//	_ = resp
//	_ = err
package resilience

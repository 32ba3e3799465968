package model

import (
	"errors"
	"strings"
)

// ErrorCategory classifies a generation failure for retry decisions.
type ErrorCategory string

const (
	// CategoryTransport covers connection resets, timeouts and DNS failures.
	CategoryTransport ErrorCategory = "transport"
	// CategoryRateLimit covers 429-style throttling.
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryServer covers 5xx provider-side failures.
	CategoryServer ErrorCategory = "server"
	// CategoryInvalidRequest covers malformed requests; never retryable.
	CategoryInvalidRequest ErrorCategory = "invalid_request"
	// CategoryUnknown covers everything else; treated as non-retryable.
	CategoryUnknown ErrorCategory = "unknown"
)

// Categorizer is optionally implemented by errors that know their own category.
type Categorizer interface {
	Category() ErrorCategory
}

// GenerationError wraps a provider failure with an explicit category.
type GenerationError struct {
	Cat ErrorCategory
	Err error
}

func (e *GenerationError) Error() string {
	return string(e.Cat) + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Category implements Categorizer.
func (e *GenerationError) Category() ErrorCategory { return e.Cat }

// Categorize determines the error category, preferring an explicit
// Categorizer implementation over message inspection.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var c Categorizer
	if errors.As(err, &c) {
		return c.Category()
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "econnreset"),
		strings.Contains(msg, "etimedout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "deadline exceeded"):
		return CategoryTransport
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "overloaded"):
		return CategoryRateLimit
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"):
		return CategoryServer
	case strings.Contains(msg, "400"),
		strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "context length"):
		return CategoryInvalidRequest
	}

	return CategoryUnknown
}

// IsRetryable reports whether an error belongs to a category that is safe to
// retry by default.
func IsRetryable(err error) bool {
	switch Categorize(err) {
	case CategoryTransport, CategoryRateLimit, CategoryServer:
		return true
	}
	return false
}

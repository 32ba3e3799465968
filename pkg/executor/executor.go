// Package executor defines the opaque code-execution contract consumed by the
// code-executing agent strategy, plus a host-process implementation. Code is
// untrusted; results are never inspected or retried by callers.
package executor

import (
	"context"
	"time"
)

// Result is the outcome of one code execution.
type Result struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Logs          string `json:"logs,omitempty"`
	Error         string `json:"error,omitempty"`
	IsFinalAnswer bool   `json:"is_final_answer"`
}

// Executor runs a code snippet in some isolated environment.
type Executor interface {
	Execute(ctx context.Context, code, language string, timeout time.Duration) (Result, error)
}

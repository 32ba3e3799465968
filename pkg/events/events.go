// Package events provides the in-process event registry used across the
// engine. Handlers run synchronously, in registration order, on the emitting
// goroutine; they must not block significantly.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

// Type identifies an event kind.
type Type string

const (
	StepStart       Type = "step_start"
	StepComplete    Type = "step_complete"
	MaxStepsReached Type = "max_steps_reached"
	TaskComplete    Type = "task_complete"
	Failover        Type = "failover"
	Retry           Type = "retry"
	Recovery        Type = "recovery"
	Error           Type = "error"
)

// StepStartEvent fires when an action step begins.
type StepStartEvent struct {
	StepNumber int
}

// StepCompleteEvent fires after an action step is appended to memory.
type StepCompleteEvent struct {
	Step *memory.ActionStep
}

// MaxStepsEvent fires when the step budget is exhausted without a final answer.
type MaxStepsEvent struct {
	MaxSteps int
	Usage    model.TokenUsage
}

// TaskCompleteEvent fires when a run terminates with a final answer.
type TaskCompleteEvent struct {
	Task     string
	Output   interface{}
	Steps    []memory.Step
	Usage    model.TokenUsage
	Duration time.Duration
}

// RetryEvent fires before each retry wait in the resilience layer.
type RetryEvent struct {
	Model    string
	Attempt  int
	Interval time.Duration
	Err      error
}

// RecoveryEvent fires when a model succeeds after at least one failed attempt.
type RecoveryEvent struct {
	Model    string
	Attempts int
}

// FailoverEvent fires when the resilience layer moves past a chain candidate.
type FailoverEvent struct {
	From   string
	Reason string
}

// ErrorEvent fires when a run terminates with an unexpected failure.
type ErrorEvent struct {
	Err error
}

// Handler processes one event payload.
type Handler func(payload interface{})

// Emitter dispatches events to registered handlers.
type Emitter struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewEmitter creates an event emitter.
func NewEmitter(logger zerolog.Logger) *Emitter {
	return &Emitter{
		logger:   logger.With().Str("component", "events").Logger(),
		handlers: make(map[Type][]Handler),
	}
}

// On registers a handler for an event type.
func (e *Emitter) On(eventType Type, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[eventType] = append(e.handlers[eventType], handler)
}

// Off removes all handlers for an event type.
func (e *Emitter) Off(eventType Type) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.handlers, eventType)
}

// Emit dispatches an event to all handlers in registration order. A nil
// Emitter is a no-op so callers can leave events unconfigured.
func (e *Emitter) Emit(eventType Type, payload interface{}) {
	if e == nil {
		return
	}

	e.mu.RLock()
	handlers := append([]Handler(nil), e.handlers[eventType]...)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	e.logger.Debug().Str("event", string(eventType)).Int("handlers", len(handlers)).Msg("Dispatching event")

	for _, handler := range handlers {
		handler(payload)
	}
}

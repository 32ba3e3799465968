package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/model"
)

const (
	defaultWorkers     = 4
	defaultCallTimeout = 30 * time.Second
	maxObservationLen  = 10 * 1024
)

// Config configures a Dispatcher.
type Config struct {
	Registry     *Registry
	Workers      int
	CallTimeout  time.Duration
	TerminalTool string
	Logger       zerolog.Logger
}

// Dispatcher executes the tool calls requested in one step. The worker pool
// is sized at construction, reused across steps and private to one agent
// instance.
type Dispatcher struct {
	registry     *Registry
	callTimeout  time.Duration
	terminalTool string
	logger       zerolog.Logger

	jobs      chan func()
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a dispatcher and starts its worker pool.
func New(cfg Config) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	terminal := cfg.TerminalTool
	if terminal == "" {
		terminal = FinalAnswerToolName
	}

	d := &Dispatcher{
		registry:     cfg.Registry,
		callTimeout:  callTimeout,
		terminalTool: terminal,
		logger:       cfg.Logger.With().Str("component", "dispatch").Logger(),
		jobs:         make(chan func()),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		job()
	}
}

// Close stops the worker pool. Dispatch must not be called afterwards.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

// Dispatch executes a batch of tool calls and returns outputs 1:1 with the
// calls, in request order regardless of completion order. A single call skips
// the pool queue; larger batches overlap on the worker pool. Either way the
// per-call timeout holds at the wait boundary, even for a handler that
// ignores its context.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []model.ToolCall) []model.ToolOutput {
	if len(calls) == 0 {
		return nil
	}

	// One buffered channel per slot; a late finisher writes without blocking
	// and its result is simply discarded at the wait boundary.
	results := make([]chan model.ToolOutput, len(calls))
	for i, call := range calls {
		i, call := i, call
		results[i] = make(chan model.ToolOutput, 1)
		run := func() {
			results[i] <- d.invoke(ctx, call)
		}
		if len(calls) == 1 {
			go run()
		} else {
			d.jobs <- run
		}
	}

	outputs := make([]model.ToolOutput, len(calls))
	for i, call := range calls {
		select {
		case outputs[i] = <-results[i]:
		case <-time.After(d.callTimeout):
			d.logger.Error().Str("tool", call.Name).Dur("timeout", d.callTimeout).Msg("Tool call timed out")
			outputs[i] = model.ToolOutput{
				ID:          call.ID,
				Name:        call.Name,
				Observation: fmt.Sprintf("Error: tool '%s' timed out after %v", call.Name, d.callTimeout),
			}
		}
	}

	return outputs
}

// invoke runs one tool call. Every failure mode becomes an observation; the
// dispatcher never raises.
func (d *Dispatcher) invoke(ctx context.Context, call model.ToolCall) (out model.ToolOutput) {
	out = model.ToolOutput{ID: call.ID, Name: call.Name}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("tool", call.Name).Interface("panic", r).Msg("Tool handler panicked")
			out.Value = nil
			out.Observation = fmt.Sprintf("Error: tool '%s' panicked: %v", call.Name, r)
			out.IsFinalAnswer = false
		}
	}()

	tool := d.registry.Get(call.Name)
	if tool == nil {
		d.logger.Warn().Str("tool", call.Name).Msg("Unknown tool requested")
		out.Observation = fmt.Sprintf("Error: unknown tool '%s'. Available tools: %v", call.Name, d.registry.List())
		return out
	}

	if err := d.registry.ValidateArguments(call.Name, call.Arguments); err != nil {
		d.logger.Warn().Str("tool", call.Name).Err(err).Msg("Argument validation failed")
		out.Observation = fmt.Sprintf("Error: invalid arguments for tool '%s': %v", call.Name, err)
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	value, err := tool.Handler(callCtx, call.Arguments)
	duration := time.Since(start)

	if err != nil {
		d.logger.Warn().Str("tool", call.Name).Dur("duration", duration).Err(err).Msg("Tool call failed")
		out.Observation = fmt.Sprintf("Error: tool '%s' failed: %v", call.Name, err)
		return out
	}

	d.logger.Debug().Str("tool", call.Name).Dur("duration", duration).Msg("Tool call completed")

	out.Value = value
	out.Observation = formatObservation(value)
	out.IsFinalAnswer = call.Name == d.terminalTool
	return out
}

// formatObservation renders a tool's return value as observation text,
// truncating oversized output.
func formatObservation(value interface{}) string {
	if value == nil {
		return "(no output)"
	}

	text := fmt.Sprintf("%v", value)
	if len(text) > maxObservationLen {
		text = text[:maxObservationLen] + "\n... [output truncated]"
	}
	return text
}

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/events"
	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

const defaultMaxSteps = 20

// Agent runs tasks with a ReAct loop. One Agent may run many tasks, but each
// run owns its Memory exclusively and steps within a run never overlap.
type Agent struct {
	model            model.Model
	strategy         Strategy
	maxSteps         int
	planningInterval int
	events           *events.Emitter
	logger           zerolog.Logger
}

// New creates an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if cfg.MaxSteps < 0 {
		return nil, fmt.Errorf("max steps cannot be negative")
	}
	if cfg.PlanningInterval < 0 {
		return nil, fmt.Errorf("planning interval cannot be negative")
	}

	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}

	return &Agent{
		model:            cfg.Model,
		strategy:         cfg.Strategy,
		maxSteps:         maxSteps,
		planningInterval: cfg.PlanningInterval,
		events:           cfg.Events,
		logger:           cfg.Logger.With().Str("component", "agent").Logger(),
	}, nil
}

// Run drives a task to termination and returns the full result. Ordinary
// model and tool failures never surface here; they appear only as error text
// inside individual steps of the returned result.
func (a *Agent) Run(ctx context.Context, task Task) RunResult {
	return a.run(ctx, task, nil)
}

// RunStream drives a task like Run but emits each step as it completes. The
// channel closes once the run terminates; no aggregate result is assembled.
// Cancelling the context tears the run down even when the consumer has
// stopped receiving, so an abandoned stream never strands the run goroutine.
func (a *Agent) RunStream(ctx context.Context, task Task) <-chan memory.Step {
	ch := make(chan memory.Step)
	go func() {
		defer close(ch)
		a.run(ctx, task, func(step memory.Step) bool {
			select {
			case ch <- step:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return ch
}

// run drives the loop. onStep, when set, reports whether its consumer is
// still listening; a false return aborts the run.
func (a *Agent) run(ctx context.Context, task Task, onStep func(memory.Step) bool) RunResult {
	start := time.Now()
	runID := uuid.New().String()
	taskText := task.text()
	mem := memory.New(memory.TaskStep{Task: taskText, Images: task.Images})

	logger := a.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("max_steps", a.maxSteps).Msg("Run started")

	var usage model.TokenUsage

	for number := 1; number <= a.maxSteps; number++ {
		if err := ctx.Err(); err != nil {
			return a.terminateError(mem, usage, start, fmt.Errorf("run aborted: %w", err))
		}

		a.events.Emit(events.StepStart, events.StepStartEvent{StepNumber: number})

		step, fatal := a.executeStep(ctx, mem, number)

		mem.AppendAction(step)
		usage.Add(step.Usage)
		a.events.Emit(events.StepComplete, events.StepCompleteEvent{Step: step})
		if onStep != nil && !onStep(step) {
			return a.terminateError(mem, usage, start, fmt.Errorf("run aborted: %w", ctx.Err()))
		}

		if fatal != nil {
			return a.terminateError(mem, usage, start, fatal)
		}

		if step.IsFinalAnswer {
			duration := time.Since(start)
			logger.Info().Int("steps", number).Dur("duration", duration).Msg("Task complete")
			result := RunResult{
				Output:   step.Output,
				Outcome:  OutcomeSuccess,
				Steps:    mem.Steps(),
				Usage:    usage,
				Duration: duration,
			}
			a.events.Emit(events.TaskComplete, events.TaskCompleteEvent{
				Task:     taskText,
				Output:   step.Output,
				Steps:    result.Steps,
				Usage:    usage,
				Duration: duration,
			})
			return result
		}

		if a.planningInterval > 0 && number%a.planningInterval == 0 {
			plan := a.planningStep(ctx, mem)
			mem.AppendPlanning(plan)
			usage.Add(plan.Usage)
			if onStep != nil && !onStep(plan) {
				return a.terminateError(mem, usage, start, fmt.Errorf("run aborted: %w", ctx.Err()))
			}
		}
	}

	logger.Warn().Int("max_steps", a.maxSteps).Msg("Step budget exhausted")
	a.events.Emit(events.MaxStepsReached, events.MaxStepsEvent{MaxSteps: a.maxSteps, Usage: usage})

	// The full history and totals still come back for post-mortem inspection.
	return RunResult{
		Outcome:  OutcomeMaxSteps,
		Steps:    mem.Steps(),
		Usage:    usage,
		Duration: time.Since(start),
	}
}

// executeStep runs one action step through the strategy. The step's timing is
// closed exactly once on every exit path, including panics. A strategy error
// becomes the step's error field; a panic is a control-loop failure and comes
// back as fatal.
func (a *Agent) executeStep(ctx context.Context, mem *memory.Memory, number int) (step *memory.ActionStep, fatal error) {
	step = memory.NewActionStep(number)
	defer step.Close()
	defer func() {
		if r := recover(); r != nil {
			fatal = fmt.Errorf("step %d: unexpected panic: %v", number, r)
			step.Error = fatal.Error()
		}
	}()

	if err := a.strategy.Execute(ctx, mem, step); err != nil {
		a.logger.Warn().Int("step", number).Err(err).Msg("Step execution failed")
		step.Error = err.Error()
	}

	return step, nil
}

func (a *Agent) terminateError(mem *memory.Memory, usage model.TokenUsage, start time.Time, err error) RunResult {
	a.logger.Error().Err(err).Msg("Run terminated with error")
	a.events.Emit(events.Error, events.ErrorEvent{Err: err})
	return RunResult{
		Outcome:  OutcomeError,
		Error:    err.Error(),
		Steps:    mem.Steps(),
		Usage:    usage,
		Duration: time.Since(start),
	}
}

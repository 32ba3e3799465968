package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/reagent/pkg/events"
	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

// strategyFunc adapts a function to the Strategy interface.
type strategyFunc func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error

func (f strategyFunc) Execute(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
	return f(ctx, mem, step)
}

// fakeModel returns scripted responses in order, repeating the last one.
type fakeModel struct {
	responses []*model.Response
	errs      []error
	calls     int
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	idx := m.calls
	m.calls++
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func planOnly(content string, in, out int) *model.Response {
	return &model.Response{
		Content: content,
		Usage:   model.TokenUsage{InputTokens: in, OutputTokens: out},
	}
}

// neverFinal is a strategy that makes progress but never finishes.
func neverFinal(usagePerStep model.TokenUsage) Strategy {
	return strategyFunc(func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
		step.Usage = usagePerStep
		step.Observation = fmt.Sprintf("still working on step %d", step.Number)
		return nil
	})
}

// finalOnStep finishes on the given step number.
func finalOnStep(n int, answer interface{}) Strategy {
	return strategyFunc(func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
		step.Usage = model.TokenUsage{InputTokens: 10, OutputTokens: 5}
		if step.Number == n {
			step.IsFinalAnswer = true
			step.Output = answer
			return nil
		}
		step.Observation = "not yet"
		return nil
	})
}

func newTestAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	if cfg.Model == nil {
		cfg.Model = &fakeModel{responses: []*model.Response{planOnly("plan", 1, 1)}}
	}
	cfg.Logger = testLogger()
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	t.Run("should require a model", func(t *testing.T) {
		_, err := New(Config{Strategy: neverFinal(model.TokenUsage{})})
		assert.Error(t, err)
	})

	t.Run("should require a strategy", func(t *testing.T) {
		_, err := New(Config{Model: &fakeModel{responses: []*model.Response{planOnly("p", 1, 1)}}})
		assert.Error(t, err)
	})

	t.Run("should reject negative bounds", func(t *testing.T) {
		m := &fakeModel{responses: []*model.Response{planOnly("p", 1, 1)}}
		_, err := New(Config{Model: m, Strategy: neverFinal(model.TokenUsage{}), MaxSteps: -1})
		assert.Error(t, err)

		_, err = New(Config{Model: m, Strategy: neverFinal(model.TokenUsage{}), PlanningInterval: -1})
		assert.Error(t, err)
	})
}

func TestStepNumbering(t *testing.T) {
	t.Run("should number action steps 1..N in order", func(t *testing.T) {
		a := newTestAgent(t, Config{Strategy: neverFinal(model.TokenUsage{InputTokens: 1, OutputTokens: 1}), MaxSteps: 4})

		result := a.Run(context.Background(), Task{Instruction: "t"})

		var numbers []int
		for _, step := range result.Steps {
			if action, ok := step.(*memory.ActionStep); ok {
				numbers = append(numbers, action.Number)
			}
		}
		assert.Equal(t, []int{1, 2, 3, 4}, numbers)
	})

	t.Run("should not let planning insertions shift action numbers", func(t *testing.T) {
		a := newTestAgent(t, Config{
			Strategy:         neverFinal(model.TokenUsage{InputTokens: 1, OutputTokens: 1}),
			MaxSteps:         6,
			PlanningInterval: 2,
		})

		result := a.Run(context.Background(), Task{Instruction: "t"})

		var numbers []int
		planningCount := 0
		for _, step := range result.Steps {
			switch s := step.(type) {
			case *memory.ActionStep:
				numbers = append(numbers, s.Number)
			case *memory.PlanningStep:
				planningCount++
			}
		}
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, numbers)
		assert.Equal(t, 3, planningCount)
	})
}

func TestMaxStepsTermination(t *testing.T) {
	t.Run("should stop at the budget with full history and nil output", func(t *testing.T) {
		a := newTestAgent(t, Config{Strategy: neverFinal(model.TokenUsage{InputTokens: 2, OutputTokens: 1}), MaxSteps: 5})

		result := a.Run(context.Background(), Task{Instruction: "t"})

		assert.Equal(t, OutcomeMaxSteps, result.Outcome)
		assert.Nil(t, result.Output)

		actions := 0
		for _, step := range result.Steps {
			if step.Kind() == memory.KindAction {
				actions++
			}
		}
		assert.Equal(t, 5, actions)
		assert.Equal(t, 10, result.Usage.InputTokens)
	})
}

func TestFinalAnswerShortCircuit(t *testing.T) {
	t.Run("should terminate on the final answer with exactly two steps", func(t *testing.T) {
		a := newTestAgent(t, Config{Strategy: finalOnStep(2, "the answer"), MaxSteps: 10})

		result := a.Run(context.Background(), Task{Instruction: "t"})

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, "the answer", result.Output)

		actions := 0
		for _, step := range result.Steps {
			if step.Kind() == memory.KindAction {
				actions++
			}
		}
		assert.Equal(t, 2, actions)
	})
}

func TestStepErrorFirewall(t *testing.T) {
	t.Run("should capture a step failure and keep going", func(t *testing.T) {
		strategy := strategyFunc(func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
			if step.Number == 1 {
				return errors.New("tool exploded")
			}
			step.IsFinalAnswer = true
			step.Output = "recovered"
			return nil
		})

		a := newTestAgent(t, Config{Strategy: strategy, MaxSteps: 5})
		result := a.Run(context.Background(), Task{Instruction: "t"})

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, "recovered", result.Output)

		first := result.Steps[1].(*memory.ActionStep)
		assert.Equal(t, "tool exploded", first.Error)
		assert.False(t, first.EndedAt.IsZero())
	})

	t.Run("should terminate the run on a strategy panic", func(t *testing.T) {
		strategy := strategyFunc(func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
			panic("control loop bug")
		})

		a := newTestAgent(t, Config{Strategy: strategy, MaxSteps: 5})
		result := a.Run(context.Background(), Task{Instruction: "t"})

		assert.Equal(t, OutcomeError, result.Outcome)
		assert.Contains(t, result.Error, "control loop bug")

		// The broken step is still appended, closed, for post-mortems.
		require.Len(t, result.Steps, 2)
		step := result.Steps[1].(*memory.ActionStep)
		assert.False(t, step.EndedAt.IsZero())
	})

	t.Run("should terminate on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		a := newTestAgent(t, Config{Strategy: neverFinal(model.TokenUsage{}), MaxSteps: 5})
		result := a.Run(ctx, Task{Instruction: "t"})

		assert.Equal(t, OutcomeError, result.Outcome)
		assert.Contains(t, result.Error, "aborted")
	})
}

func TestTokenAccumulation(t *testing.T) {
	t.Run("should equal the sum over action and planning steps", func(t *testing.T) {
		// Distinct non-zero usage per action step.
		strategy := strategyFunc(func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
			step.Usage = model.TokenUsage{InputTokens: 100 * step.Number, OutputTokens: 10 * step.Number}
			step.Observation = "next"
			return nil
		})

		planner := &fakeModel{responses: []*model.Response{
			planOnly("plan a", 7, 3),
			planOnly("plan b", 11, 5),
		}}

		a := newTestAgent(t, Config{
			Model:            planner,
			Strategy:         strategy,
			MaxSteps:         4,
			PlanningInterval: 2,
		})

		result := a.Run(context.Background(), Task{Instruction: "t"})
		require.Equal(t, OutcomeMaxSteps, result.Outcome)

		var expected model.TokenUsage
		for _, step := range result.Steps {
			switch s := step.(type) {
			case *memory.ActionStep:
				expected.Add(s.Usage)
			case *memory.PlanningStep:
				expected.Add(s.Usage)
			}
		}

		assert.Equal(t, expected, result.Usage)
		// 100+200+300+400 action input plus 7+11 planning input.
		assert.Equal(t, 1018, result.Usage.InputTokens)
		assert.Equal(t, 108, result.Usage.OutputTokens)
	})
}

func TestPlanning(t *testing.T) {
	t.Run("should record the plan text and messages", func(t *testing.T) {
		planner := &fakeModel{responses: []*model.Response{planOnly("try the other door", 5, 2)}}

		a := newTestAgent(t, Config{
			Model:            planner,
			Strategy:         neverFinal(model.TokenUsage{InputTokens: 1, OutputTokens: 1}),
			MaxSteps:         2,
			PlanningInterval: 1,
		})

		result := a.Run(context.Background(), Task{Instruction: "open the door"})

		var plans []*memory.PlanningStep
		for _, step := range result.Steps {
			if plan, ok := step.(*memory.PlanningStep); ok {
				plans = append(plans, plan)
			}
		}
		require.Len(t, plans, 2)
		assert.Equal(t, "try the other door", plans[0].Plan)
		require.NotEmpty(t, plans[0].Request)
		assert.Contains(t, plans[0].Request[0].Content, "open the door")
	})

	t.Run("should capture planning failures without aborting the run", func(t *testing.T) {
		planner := &fakeModel{
			responses: []*model.Response{planOnly("unused", 1, 1)},
			errs:      []error{errors.New("planner down")},
		}

		a := newTestAgent(t, Config{
			Model:            planner,
			Strategy:         finalOnStep(2, "done"),
			MaxSteps:         3,
			PlanningInterval: 1,
		})

		result := a.Run(context.Background(), Task{Instruction: "t"})
		assert.Equal(t, OutcomeSuccess, result.Outcome)

		var plans []*memory.PlanningStep
		for _, step := range result.Steps {
			if plan, ok := step.(*memory.PlanningStep); ok {
				plans = append(plans, plan)
			}
		}
		require.Len(t, plans, 1)
		assert.Equal(t, "planner down", plans[0].Error)
	})

	t.Run("should skip planning entirely when the interval is zero", func(t *testing.T) {
		planner := &fakeModel{responses: []*model.Response{planOnly("p", 1, 1)}}

		a := newTestAgent(t, Config{Model: planner, Strategy: neverFinal(model.TokenUsage{}), MaxSteps: 4})
		result := a.Run(context.Background(), Task{Instruction: "t"})

		for _, step := range result.Steps {
			assert.NotEqual(t, memory.KindPlanning, step.Kind())
		}
		assert.Equal(t, 0, planner.calls)
	})
}

func TestEvents(t *testing.T) {
	t.Run("should emit step and completion events in order", func(t *testing.T) {
		em := events.NewEmitter(testLogger())

		var starts, completes int
		var taskDone *events.TaskCompleteEvent
		em.On(events.StepStart, func(payload interface{}) { starts++ })
		em.On(events.StepComplete, func(payload interface{}) { completes++ })
		em.On(events.TaskComplete, func(payload interface{}) {
			e := payload.(events.TaskCompleteEvent)
			taskDone = &e
		})

		a := newTestAgent(t, Config{Strategy: finalOnStep(3, "ok"), MaxSteps: 10, Events: em})
		result := a.Run(context.Background(), Task{Instruction: "t"})

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, 3, starts)
		assert.Equal(t, 3, completes)
		require.NotNil(t, taskDone)
		assert.Equal(t, "ok", taskDone.Output)
	})

	t.Run("should emit max_steps_reached", func(t *testing.T) {
		em := events.NewEmitter(testLogger())

		var maxed *events.MaxStepsEvent
		em.On(events.MaxStepsReached, func(payload interface{}) {
			e := payload.(events.MaxStepsEvent)
			maxed = &e
		})

		a := newTestAgent(t, Config{Strategy: neverFinal(model.TokenUsage{}), MaxSteps: 2, Events: em})
		a.Run(context.Background(), Task{Instruction: "t"})

		require.NotNil(t, maxed)
		assert.Equal(t, 2, maxed.MaxSteps)
	})
}

func TestRunStream(t *testing.T) {
	t.Run("should emit each step and close on the final answer", func(t *testing.T) {
		a := newTestAgent(t, Config{Strategy: finalOnStep(2, "streamed"), MaxSteps: 10})

		var steps []memory.Step
		for step := range a.RunStream(context.Background(), Task{Instruction: "t"}) {
			steps = append(steps, step)
		}

		require.Len(t, steps, 2)
		last := steps[1].(*memory.ActionStep)
		assert.True(t, last.IsFinalAnswer)
		assert.Equal(t, "streamed", last.Output)
	})

	t.Run("should release the run when a cancelled consumer walks away", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a := newTestAgent(t, Config{Strategy: neverFinal(model.TokenUsage{}), MaxSteps: 1000})
		ch := a.RunStream(ctx, Task{Instruction: "t"})

		// Take one step, then stop receiving so the next send is left pending.
		<-ch
		time.Sleep(20 * time.Millisecond)
		cancel()

		// The run goroutine must unblock and close the channel on its way out.
		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("stream never closed after cancellation")
			}
		}
	})

	t.Run("should interleave planning steps in the stream", func(t *testing.T) {
		planner := &fakeModel{responses: []*model.Response{planOnly("plan", 1, 1)}}
		a := newTestAgent(t, Config{
			Model:            planner,
			Strategy:         neverFinal(model.TokenUsage{}),
			MaxSteps:         2,
			PlanningInterval: 1,
		})

		var kinds []memory.StepKind
		for step := range a.RunStream(context.Background(), Task{Instruction: "t"}) {
			kinds = append(kinds, step.Kind())
		}

		assert.Equal(t, []memory.StepKind{
			memory.KindAction, memory.KindPlanning,
			memory.KindAction, memory.KindPlanning,
		}, kinds)
	})
}

func TestTaskText(t *testing.T) {
	t.Run("should append additional prompting to the task step", func(t *testing.T) {
		var seenTask string
		strategy := strategyFunc(func(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
			seenTask = mem.Task().Task
			step.IsFinalAnswer = true
			return nil
		})

		a := newTestAgent(t, Config{Strategy: strategy, MaxSteps: 1})
		a.Run(context.Background(), Task{Instruction: "count ducks", AdditionalPrompt: "be thorough"})

		assert.Equal(t, "count ducks\n\nbe thorough", seenTask)
	})
}

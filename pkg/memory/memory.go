package memory

import (
	"github.com/harun/reagent/pkg/model"
)

// Memory is the append-only step log for one run. It is mutated only by the
// single goroutine driving that run and must never be shared across runs.
type Memory struct {
	task  TaskStep
	steps []Step
}

// New creates a Memory seeded with the task step.
func New(task TaskStep) *Memory {
	m := &Memory{task: task}
	m.steps = append(m.steps, &task)
	return m
}

// Task returns the task step the run started from.
func (m *Memory) Task() TaskStep {
	return m.task
}

// AppendAction appends a finished action step.
func (m *Memory) AppendAction(step *ActionStep) {
	m.steps = append(m.steps, step)
}

// AppendPlanning appends a finished planning step.
func (m *Memory) AppendPlanning(step *PlanningStep) {
	m.steps = append(m.steps, step)
}

// Steps returns the ordered step log. The returned slice is a copy; the
// underlying steps are shared.
func (m *Memory) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

// ActionSteps returns only the action steps, in order.
func (m *Memory) ActionSteps() []*ActionStep {
	var actions []*ActionStep
	for _, step := range m.steps {
		if action, ok := step.(*ActionStep); ok {
			actions = append(actions, action)
		}
	}
	return actions
}

// Len returns the number of logged steps, task step included.
func (m *Memory) Len() int {
	return len(m.steps)
}

// Usage sums token usage across every action and planning step.
func (m *Memory) Usage() model.TokenUsage {
	var total model.TokenUsage
	for _, step := range m.steps {
		switch s := step.(type) {
		case *ActionStep:
			total.Add(s.Usage)
		case *PlanningStep:
			total.Add(s.Usage)
		}
	}
	return total
}

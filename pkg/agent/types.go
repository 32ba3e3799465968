package agent

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/events"
	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

// Task is one user instruction submitted to an agent.
type Task struct {
	Instruction      string   `json:"instruction"`
	Images           []string `json:"images,omitempty"`
	AdditionalPrompt string   `json:"additional_prompt,omitempty"`
}

// text combines the instruction with the additional prompting appended at
// submission. The combined text is what lands in the task step.
func (t Task) text() string {
	if t.AdditionalPrompt == "" {
		return t.Instruction
	}
	return t.Instruction + "\n\n" + t.AdditionalPrompt
}

// Outcome tags how a run terminated.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeMaxSteps Outcome = "max_steps_reached"
	OutcomeError    Outcome = "error"
)

// RunResult is the terminal state of one run. Created once at termination and
// never mutated afterwards.
type RunResult struct {
	Output   interface{}      `json:"output,omitempty"`
	Outcome  Outcome          `json:"outcome"`
	Error    string           `json:"error,omitempty"`
	Steps    []memory.Step    `json:"steps"`
	Usage    model.TokenUsage `json:"usage"`
	Duration time.Duration    `json:"duration"`
}

// Config configures an Agent.
type Config struct {
	// Model answers planning requests. Wrap it with resilience.Wrap to get
	// retry and fallback behavior; the agent cannot tell the difference.
	Model model.Model

	// Strategy executes one action step. Pick NewToolCallingStrategy or
	// NewCodeActStrategy at construction time.
	Strategy Strategy

	// MaxSteps bounds the number of action steps. Defaults to 20.
	MaxSteps int

	// PlanningInterval inserts a planning step after every Nth action step.
	// Zero disables planning.
	PlanningInterval int

	Events *events.Emitter
	Logger zerolog.Logger
}

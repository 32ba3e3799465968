package memory

import (
	"time"

	"github.com/harun/reagent/pkg/model"
)

// StepKind tags the concrete type of a Step.
type StepKind string

const (
	KindTask     StepKind = "task"
	KindAction   StepKind = "action"
	KindPlanning StepKind = "planning"
)

// Step is one entry in the run log.
type Step interface {
	Kind() StepKind
}

// TaskStep is the first entry in every run: the user instruction plus any
// additional prompting appended at submission.
type TaskStep struct {
	Task   string   `json:"task"`
	Images []string `json:"images,omitempty"`
}

// Kind implements Step.
func (s *TaskStep) Kind() StepKind { return KindTask }

// ActionStep records one reasoning/acting iteration.
type ActionStep struct {
	Number    int       `json:"number"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	ModelMessage model.Message     `json:"model_message"`
	Usage        model.TokenUsage  `json:"usage"`
	ToolCalls    []model.ToolCall  `json:"tool_calls,omitempty"`
	ToolOutputs  []model.ToolOutput `json:"tool_outputs,omitempty"`

	Observation   string      `json:"observation,omitempty"`
	Output        interface{} `json:"output,omitempty"`
	IsFinalAnswer bool        `json:"is_final_answer"`
	Error         string      `json:"error,omitempty"`
}

// NewActionStep creates an action step and starts its timing.
func NewActionStep(number int) *ActionStep {
	return &ActionStep{
		Number:    number,
		StartedAt: time.Now(),
	}
}

// Kind implements Step.
func (s *ActionStep) Kind() StepKind { return KindAction }

// Close stops the step's timing. Safe to call more than once; only the first
// call takes effect, so deferred closing on every exit path stays idempotent.
func (s *ActionStep) Close() {
	if s.EndedAt.IsZero() {
		s.EndedAt = time.Now()
	}
}

// Duration returns how long the step ran. Zero until Close is called.
func (s *ActionStep) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// PlanningStep records one periodic plan revision. It does not carry a step
// number: planning never consumes the action budget.
type PlanningStep struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Plan     string           `json:"plan"`
	Request  []model.Message  `json:"request,omitempty"`
	Response model.Message    `json:"response,omitempty"`
	Usage    model.TokenUsage `json:"usage"`
	Error    string           `json:"error,omitempty"`
}

// NewPlanningStep creates a planning step and starts its timing.
func NewPlanningStep() *PlanningStep {
	return &PlanningStep{StartedAt: time.Now()}
}

// Kind implements Step.
func (s *PlanningStep) Kind() StepKind { return KindPlanning }

// Close stops the step's timing. Idempotent like ActionStep.Close.
func (s *PlanningStep) Close() {
	if s.EndedAt.IsZero() {
		s.EndedAt = time.Now()
	}
}

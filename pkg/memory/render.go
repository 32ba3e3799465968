package memory

import (
	"fmt"

	"github.com/harun/reagent/pkg/model"
)

const observationExcerptLen = 150

// ToMessages renders the step log into the message sequence sent to a model.
func (m *Memory) ToMessages() []model.Message {
	messages := []model.Message{}

	for _, step := range m.steps {
		switch s := step.(type) {
		case *TaskStep:
			messages = append(messages, model.Message{
				Role:    model.RoleUser,
				Content: s.Task,
				Images:  s.Images,
			})

		case *ActionStep:
			messages = append(messages, renderAction(s)...)

		case *PlanningStep:
			if s.Plan == "" {
				continue
			}
			messages = append(messages, model.Message{
				Role:    model.RoleAssistant,
				Content: "Current plan:\n" + s.Plan,
			})
		}
	}

	return messages
}

func renderAction(s *ActionStep) []model.Message {
	messages := []model.Message{}

	assistant := s.ModelMessage
	assistant.Role = model.RoleAssistant
	if assistant.Content != "" || len(assistant.ToolCalls) > 0 {
		messages = append(messages, assistant)
	}

	// Tool outputs come back as tool-role messages keyed by call ID so the
	// model can match observation to request.
	for _, out := range s.ToolOutputs {
		messages = append(messages, model.Message{
			Role:       model.RoleTool,
			Content:    out.Observation,
			ToolCallID: out.ID,
		})
	}

	// Observations without tool calls (code runs, plain text turns) render as
	// user messages the model reacts to next turn.
	if len(s.ToolOutputs) == 0 && s.Observation != "" {
		messages = append(messages, model.Message{
			Role:    model.RoleUser,
			Content: "Observation:\n" + s.Observation,
		})
	}

	if s.Error != "" {
		messages = append(messages, model.Message{
			Role:    model.RoleUser,
			Content: fmt.Sprintf("Error in step %d: %s\nAdjust your approach and try again.", s.Number, s.Error),
		})
	}

	return messages
}

// SuccinctObservations returns a short excerpt of each action step's
// observation, used when prompting for a plan revision.
func (m *Memory) SuccinctObservations() []string {
	var excerpts []string
	for _, step := range m.ActionSteps() {
		text := step.Observation
		if text == "" && step.Error != "" {
			text = "error: " + step.Error
		}
		if text == "" {
			continue
		}
		if len(text) > observationExcerptLen {
			text = text[:observationExcerptLen] + "..."
		}
		excerpts = append(excerpts, fmt.Sprintf("Step %d: %s", step.Number, text))
	}
	return excerpts
}

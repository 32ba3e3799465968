package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/reagent/pkg/dispatch"
	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

// Strategy executes one action step, mutating the step as it goes: model
// output, tool calls and outputs, observation, terminal output. A returned
// error marks the step as failed without aborting the run.
type Strategy interface {
	Execute(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error
}

// ToolCallingConfig configures the tool-calling strategy.
type ToolCallingConfig struct {
	Model        model.Model
	Dispatcher   *dispatch.Dispatcher
	Registry     *dispatch.Registry
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// ToolCallingStrategy asks the model for structured tool calls and runs them
// through the dispatcher.
type ToolCallingStrategy struct {
	model        model.Model
	dispatcher   *dispatch.Dispatcher
	registry     *dispatch.Registry
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// NewToolCallingStrategy creates a tool-calling strategy.
func NewToolCallingStrategy(cfg ToolCallingConfig) *ToolCallingStrategy {
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultToolCallingPrompt
	}
	return &ToolCallingStrategy{
		model:        cfg.Model,
		dispatcher:   cfg.Dispatcher,
		registry:     cfg.Registry,
		systemPrompt: systemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}
}

const defaultToolCallingPrompt = `You are an agent that solves tasks step by step using tools.
Each turn, call the tools you need to make progress. When you have the answer,
call the final_answer tool with it. Never invent tool results.`

// Execute implements Strategy.
func (s *ToolCallingStrategy) Execute(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
	resp, err := s.model.Generate(ctx, model.Request{
		Messages:     mem.ToMessages(),
		SystemPrompt: s.systemPrompt,
		Tools:        s.registry.Specs(),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		return fmt.Errorf("model generation failed: %w", err)
	}

	step.ModelMessage = resp.Message()
	step.Usage = resp.Usage
	step.ToolCalls = resp.ToolCalls

	// No tool calls means the model thought out loud; its text becomes the
	// observation it reacts to next turn.
	if len(resp.ToolCalls) == 0 {
		step.Observation = resp.Content
		return nil
	}

	outputs := s.dispatcher.Dispatch(ctx, resp.ToolCalls)
	step.ToolOutputs = outputs

	var lines []string
	for _, out := range outputs {
		lines = append(lines, fmt.Sprintf("%s: %s", out.Name, out.Observation))
		if out.IsFinalAnswer {
			step.IsFinalAnswer = true
			step.Output = out.Value
		}
	}
	step.Observation = strings.Join(lines, "\n")

	return nil
}

package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/harun/reagent/pkg/executor"
	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

// CodeActConfig configures the code-executing strategy.
type CodeActConfig struct {
	Model        model.Model
	Executor     executor.Executor
	Language     string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	ExecTimeout  time.Duration
}

// CodeActStrategy asks the model for a code snippet each turn and runs it
// through an opaque executor.
type CodeActStrategy struct {
	model        model.Model
	executor     executor.Executor
	language     string
	systemPrompt string
	temperature  float64
	maxTokens    int
	execTimeout  time.Duration
}

// NewCodeActStrategy creates a code-executing strategy.
func NewCodeActStrategy(cfg CodeActConfig) *CodeActStrategy {
	language := cfg.Language
	if language == "" {
		language = "python"
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf(defaultCodeActPrompt, language, executor.FinalAnswerMarker)
	}
	execTimeout := cfg.ExecTimeout
	if execTimeout <= 0 {
		execTimeout = 60 * time.Second
	}
	return &CodeActStrategy{
		model:        cfg.Model,
		executor:     cfg.Executor,
		language:     language,
		systemPrompt: systemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		execTimeout:  execTimeout,
	}
}

const defaultCodeActPrompt = `You are an agent that solves tasks by writing %[1]s code.
Each turn, reply with exactly one fenced %[1]s code block. The code runs and
you see its output next turn. When you have the final answer, print a line
starting with %[2]s followed by the answer.`

var codeBlockPattern = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*)\\s*\\n(.*?)```")

// Execute implements Strategy.
func (s *CodeActStrategy) Execute(ctx context.Context, mem *memory.Memory, step *memory.ActionStep) error {
	resp, err := s.model.Generate(ctx, model.Request{
		Messages:     mem.ToMessages(),
		SystemPrompt: s.systemPrompt,
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		return fmt.Errorf("model generation failed: %w", err)
	}

	step.ModelMessage = resp.Message()
	step.Usage = resp.Usage

	code := extractCodeBlock(resp.Content)
	if code == "" {
		return fmt.Errorf("no code block found in model output")
	}

	result, err := s.executor.Execute(ctx, code, s.language, s.execTimeout)
	if err != nil {
		return fmt.Errorf("executor failed: %w", err)
	}

	observation := result.Output
	if result.Logs != "" {
		observation += "\nLogs:\n" + result.Logs
	}
	step.Observation = strings.TrimSpace(observation)

	if result.Error != "" {
		return fmt.Errorf("code execution failed: %s", result.Error)
	}

	if result.IsFinalAnswer {
		step.IsFinalAnswer = true
		step.Output = result.Output
	}

	return nil
}

// extractCodeBlock pulls the first fenced code block out of model output.
func extractCodeBlock(content string) string {
	match := codeBlockPattern.FindStringSubmatch(content)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

package model

import (
	"context"
	"time"
)

// Message roles used across the engine.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one conversation turn sent to or received from a model.
type Message struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	Images     []string               `json:"images,omitempty"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolOutput is the result produced for one ToolCall. Outputs are always 1:1
// with calls and keep the call's ID.
type ToolOutput struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Value         interface{} `json:"value,omitempty"`
	Observation   string      `json:"observation"`
	IsFinalAnswer bool        `json:"is_final_answer"`
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// TokenUsage tracks token consumption for one generation.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Request holds everything a model needs for one generation.
type Request struct {
	Messages      []Message  `json:"messages"`
	SystemPrompt  string     `json:"system_prompt,omitempty"`
	Tools         []ToolSpec `json:"tools,omitempty"`
	StopSequences []string   `json:"stop_sequences,omitempty"`
	Temperature   float64    `json:"temperature,omitempty"`
	MaxTokens     int        `json:"max_tokens,omitempty"`
}

// Response is the model's answer to one Request.
type Response struct {
	Content   string      `json:"content"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     TokenUsage  `json:"usage"`
	Raw       interface{} `json:"-"`
}

// Message converts the response into an assistant Message.
func (r *Response) Message() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
	}
}

// Model is the generation contract consumed by the engine. Generate must be
// safe to call repeatedly with identical inputs; the resilience layer relies
// on that for retry correctness.
type Model interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// HealthChecker is optionally implemented by models that can report their own
// availability. Callers cache the verdict; CacheFor hints how long.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
	CacheFor() time.Duration
}

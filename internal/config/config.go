// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the main engine configuration.
type Config struct {
	// Models
	Models ModelsConfig `json:"models" mapstructure:"models"`

	// Agent loop
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Tool dispatch
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Code execution
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Run persistence
	Transcript TranscriptConfig `json:"transcript" mapstructure:"transcript"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ModelsConfig selects the primary model and its fallbacks.
type ModelsConfig struct {
	Primary   string        `json:"primary" mapstructure:"primary"`
	Fallbacks []string      `json:"fallbacks" mapstructure:"fallbacks"`
	Retry     RetryConfig   `json:"retry" mapstructure:"retry"`
	HealthTTL time.Duration `json:"health_ttl" mapstructure:"health_ttl"`
}

// RetryConfig shapes the retry policy applied to every model in the chain.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts" mapstructure:"max_attempts"`
	Backoff      string        `json:"backoff" mapstructure:"backoff"` // constant, linear, exponential
	BaseInterval time.Duration `json:"base_interval" mapstructure:"base_interval"`
	MaxInterval  time.Duration `json:"max_interval" mapstructure:"max_interval"`
	JitterFactor float64       `json:"jitter_factor" mapstructure:"jitter_factor"`
}

// AgentConfig bounds the run loop.
type AgentConfig struct {
	MaxSteps         int     `json:"max_steps" mapstructure:"max_steps"`
	PlanningInterval int     `json:"planning_interval" mapstructure:"planning_interval"`
	Temperature      float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens        int     `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt     string  `json:"system_prompt" mapstructure:"system_prompt"`
}

// DispatchConfig sizes the tool worker pool.
type DispatchConfig struct {
	Workers        int           `json:"workers" mapstructure:"workers"`
	CallTimeout    time.Duration `json:"call_timeout" mapstructure:"call_timeout"`
	MaxObservation int           `json:"max_observation" mapstructure:"max_observation"`
}

// ExecutorConfig configures code execution for the code-acting strategy.
type ExecutorConfig struct {
	Language string        `json:"language" mapstructure:"language"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// TranscriptConfig configures run persistence.
type TranscriptConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Path      string        `json:"path" mapstructure:"path"`
	Retention time.Duration `json:"retention" mapstructure:"retention"`
}

// LoggingConfig configures the shared logger.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Primary: "anthropic/claude-sonnet-4",
			Retry: RetryConfig{
				MaxAttempts:  3,
				Backoff:      "exponential",
				BaseInterval: time.Second,
				MaxInterval:  30 * time.Second,
			},
			HealthTTL: 30 * time.Second,
		},
		Agent: AgentConfig{
			MaxSteps:    20,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Dispatch: DispatchConfig{
			Workers:        4,
			CallTimeout:    30 * time.Second,
			MaxObservation: 10 * 1024,
		},
		Executor: ExecutorConfig{
			Language: "python",
			Timeout:  60 * time.Second,
		},
		Transcript: TranscriptConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Models.Primary == "" {
		return fmt.Errorf("models.primary cannot be empty")
	}
	if c.Models.Retry.MaxAttempts < 1 {
		return fmt.Errorf("models.retry.max_attempts must be at least 1")
	}
	switch c.Models.Retry.Backoff {
	case "", "constant", "linear", "exponential":
	default:
		return fmt.Errorf("models.retry.backoff must be constant, linear, or exponential")
	}
	if c.Models.Retry.JitterFactor < 0 || c.Models.Retry.JitterFactor > 1 {
		return fmt.Errorf("models.retry.jitter_factor must be between 0 and 1")
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be at least 1")
	}
	if c.Agent.PlanningInterval < 0 {
		return fmt.Errorf("agent.planning_interval cannot be negative")
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("dispatch.workers must be at least 1")
	}
	if c.Dispatch.CallTimeout <= 0 {
		return fmt.Errorf("dispatch.call_timeout must be positive")
	}
	return nil
}

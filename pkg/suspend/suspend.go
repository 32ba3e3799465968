// Package suspend pauses a run to ask a human before a sensitive tool call
// proceeds. The gate runs inside the calling tool's slot, so a pending
// decision occupies one dispatcher worker until it resolves.
package suspend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/model"
)

// Request describes the tool call awaiting a decision.
type Request struct {
	Call    model.ToolCall    `json:"call"`
	AgentID string            `json:"agent_id,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// Decision is a human's answer to a suspended call.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Handler resolves suspension requests. Implementations typically surface the
// request on a CLI prompt or a chat channel and block until someone answers.
type Handler interface {
	Resolve(ctx context.Context, req Request) (Decision, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Decision, error)

// Resolve implements Handler.
func (f HandlerFunc) Resolve(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

const defaultDecisionTimeout = 60 * time.Second

// Config configures a Gate.
type Config struct {
	Handler Handler
	// DecisionTimeout bounds how long a run stays suspended. Defaults to 60s.
	DecisionTimeout time.Duration
	// GatedTools lists tool names that require a decision. Empty gates nothing.
	GatedTools []string
	Logger     zerolog.Logger
}

// Gate suspends tool calls that match its gated set until a handler decides.
type Gate struct {
	handler Handler
	timeout time.Duration
	gated   map[string]struct{}
	logger  zerolog.Logger
}

// NewGate creates a suspension gate.
func NewGate(cfg Config) *Gate {
	timeout := cfg.DecisionTimeout
	if timeout <= 0 {
		timeout = defaultDecisionTimeout
	}

	gated := make(map[string]struct{}, len(cfg.GatedTools))
	for _, name := range cfg.GatedTools {
		gated[name] = struct{}{}
	}

	return &Gate{
		handler: cfg.Handler,
		timeout: timeout,
		gated:   gated,
		logger:  cfg.Logger.With().Str("component", "suspend").Logger(),
	}
}

// Gated reports whether calls to the named tool require a decision.
func (g *Gate) Gated(name string) bool {
	_, ok := g.gated[name]
	return ok
}

// Check suspends the run until the handler decides, the timeout elapses, or
// the context is cancelled. Ungated calls pass immediately. A denial, timeout,
// or handler failure comes back as an error so the dispatcher records it as
// the call's observation.
func (g *Gate) Check(ctx context.Context, req Request) error {
	if !g.Gated(req.Call.Name) {
		return nil
	}
	if g.handler == nil {
		return fmt.Errorf("tool %q requires a decision but no handler is configured", req.Call.Name)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Info().Str("tool", req.Call.Name).Str("call_id", req.Call.ID).Msg("Run suspended awaiting decision")

	decisionChan := make(chan Decision, 1)
	errChan := make(chan error, 1)

	go func() {
		decision, err := g.handler.Resolve(timeoutCtx, req)
		if err != nil {
			errChan <- err
			return
		}
		decisionChan <- decision
	}()

	select {
	case decision := <-decisionChan:
		if !decision.Approved {
			g.logger.Warn().Str("tool", req.Call.Name).Str("reason", decision.Reason).Msg("Call denied")
			if decision.Reason != "" {
				return fmt.Errorf("call denied: %s", decision.Reason)
			}
			return fmt.Errorf("call denied")
		}
		g.logger.Info().Str("tool", req.Call.Name).Msg("Call approved")
		return nil

	case err := <-errChan:
		return fmt.Errorf("decision handler failed: %w", err)

	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("run cancelled while suspended: %w", ctx.Err())
		}
		return fmt.Errorf("no decision after %v", g.timeout)
	}
}

// WrapHandler wraps a tool handler so every invocation passes through the
// gate first.
func (g *Gate) WrapHandler(name string, handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)) func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		if err := g.Check(ctx, Request{Call: model.ToolCall{Name: name, Arguments: args}}); err != nil {
			return nil, err
		}
		return handler(ctx, args)
	}
}

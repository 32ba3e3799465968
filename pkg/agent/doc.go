// Package agent drives one task to completion with a ReAct loop: ask the
// model for the next action, execute it, feed the observation back, repeat
// until a final answer or the step budget runs out.
//
// Invariants:
// - Exactly one step executes at a time; steps never overlap.
// - Action-step numbers run 1..N in order; planning steps never consume one.
// - Step-execution failures land in the step's error field and never abort
//   the run; only unexpected control-loop failures terminate it as an error.
// - Every run ends in exactly one of success, max_steps_reached or error.
//
// Usage:
//
//	a, _ := agent.New(agent.Config{
//		Model:    wrapped,
//		Strategy: agent.NewToolCallingStrategy(agent.ToolCallingConfig{...}),
//		MaxSteps: 10,
//	})
//	result := a.Run(ctx, agent.Task{Instruction: "count the ducks"})
//	_ = result
package agent

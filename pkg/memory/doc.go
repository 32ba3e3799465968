// Package memory keeps the append-only, ordered step log for one run and
// renders it into model-input messages.
//
// Invariants:
// - Steps append in strict creation order; the log is never reordered.
// - Action-step numbers increase monotonically from 1 and are never reused.
// - Planning steps never consume or shift an action-step number.
// - A Memory instance is owned by exactly one run and must not be shared.
//
// Usage:
//
//	mem := memory.New(memory.TaskStep{Task: "find the answer"})
//	step := memory.NewActionStep(1)
//	step.Observation = "ok"
//	step.Close()
//	mem.AppendAction(step)
//	msgs := mem.ToMessages()
//	_ = msgs
package memory

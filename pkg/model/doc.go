// Package model defines the LLM contract consumed by the engine and the
// concrete provider adapters that satisfy it.
//
// Invariants:
// - Generate is side-effect free: calling it twice with the same request is safe.
// - A Response always carries token usage, even when content is empty.
// - Tool call arguments are decoded into plain maps before leaving the adapter.
//
// Usage:
//
//	m := model.NewAnthropicModel("sk-ant-...", "claude-sonnet-4-20250514")
//	resp, err := m.Generate(ctx, model.Request{
//		Messages: []model.Message{{Role: model.RoleUser, Content: "hello"}},
//	})
//	_ = resp
//	_ = err
package model

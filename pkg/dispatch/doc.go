// Package dispatch registers structured tools and executes the tool calls
// requested in one step, serially or on a bounded worker pool.
//
// Invariants:
// - Tool names are unique within a registry.
// - Arguments are schema-validated before a handler runs.
// - Outputs are 1:1 with calls and returned in request order.
// - A failing call never escapes the dispatcher or aborts its siblings.
//
// Usage:
//
//	reg := dispatch.NewRegistry()
//	_ = reg.Register(dispatch.FinalAnswerTool())
//	d := dispatch.New(dispatch.Config{Registry: reg})
//	defer d.Close()
//	outputs := d.Dispatch(ctx, calls)
//	_ = outputs
package dispatch

package events

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func TestEmitter(t *testing.T) {
	t.Run("should run handlers in registration order", func(t *testing.T) {
		em := NewEmitter(testLogger())

		var order []string
		em.On(Retry, func(payload interface{}) { order = append(order, "first") })
		em.On(Retry, func(payload interface{}) { order = append(order, "second") })
		em.On(Retry, func(payload interface{}) { order = append(order, "third") })

		em.Emit(Retry, RetryEvent{Model: "m", Attempt: 1})

		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("should keep event types isolated", func(t *testing.T) {
		em := NewEmitter(testLogger())

		retries, failovers := 0, 0
		em.On(Retry, func(payload interface{}) { retries++ })
		em.On(Failover, func(payload interface{}) { failovers++ })

		em.Emit(Retry, RetryEvent{})
		em.Emit(Retry, RetryEvent{})
		em.Emit(Failover, FailoverEvent{})

		assert.Equal(t, 2, retries)
		assert.Equal(t, 1, failovers)
	})

	t.Run("should deliver the payload unchanged", func(t *testing.T) {
		em := NewEmitter(testLogger())

		var got FailoverEvent
		em.On(Failover, func(payload interface{}) { got = payload.(FailoverEvent) })

		em.Emit(Failover, FailoverEvent{From: "anthropic/claude", Reason: "unhealthy"})

		assert.Equal(t, "anthropic/claude", got.From)
		assert.Equal(t, "unhealthy", got.Reason)
	})

	t.Run("should drop all handlers on Off", func(t *testing.T) {
		em := NewEmitter(testLogger())

		calls := 0
		em.On(Recovery, func(payload interface{}) { calls++ })
		em.Emit(Recovery, RecoveryEvent{})
		em.Off(Recovery)
		em.Emit(Recovery, RecoveryEvent{})

		assert.Equal(t, 1, calls)
	})

	t.Run("should tolerate a nil emitter", func(t *testing.T) {
		var em *Emitter

		assert.NotPanics(t, func() {
			em.Emit(Retry, RetryEvent{})
		})
	})

	t.Run("should tolerate events with no handlers", func(t *testing.T) {
		em := NewEmitter(testLogger())

		assert.NotPanics(t, func() {
			em.Emit(TaskComplete, TaskCompleteEvent{Output: "x"})
		})
	})
}

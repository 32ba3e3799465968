package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/reagent/pkg/model"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func sleepTool(name string, delay time.Duration) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "Sleep then answer",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return name + " done", nil
		},
	}
}

func newTestDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	d := New(cfg)
	t.Cleanup(d.Close)
	return d
}

func TestDispatchOrdering(t *testing.T) {
	t.Run("should return outputs in request order regardless of completion order", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(sleepTool("slowest", 120*time.Millisecond)))
		require.NoError(t, reg.Register(sleepTool("fastest", 5*time.Millisecond)))
		require.NoError(t, reg.Register(sleepTool("middle", 60*time.Millisecond)))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		calls := []model.ToolCall{
			{ID: "1", Name: "middle"},
			{ID: "2", Name: "fastest"},
			{ID: "3", Name: "slowest"},
		}

		outputs := d.Dispatch(context.Background(), calls)
		require.Len(t, outputs, 3)
		assert.Equal(t, "1", outputs[0].ID)
		assert.Equal(t, "middle done", outputs[0].Value)
		assert.Equal(t, "2", outputs[1].ID)
		assert.Equal(t, "fastest done", outputs[1].Value)
		assert.Equal(t, "3", outputs[2].ID)
		assert.Equal(t, "slowest done", outputs[2].Value)
	})

	t.Run("should queue when the batch exceeds the pool", func(t *testing.T) {
		reg := NewRegistry()
		for i := 0; i < 6; i++ {
			require.NoError(t, reg.Register(sleepTool(fmt.Sprintf("tool%d", i), 10*time.Millisecond)))
		}

		d := newTestDispatcher(t, Config{Registry: reg, Workers: 2, Logger: testLogger()})

		calls := make([]model.ToolCall, 6)
		for i := range calls {
			calls[i] = model.ToolCall{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("tool%d", i)}
		}

		outputs := d.Dispatch(context.Background(), calls)
		require.Len(t, outputs, 6)
		for i, out := range outputs {
			assert.Equal(t, fmt.Sprintf("c%d", i), out.ID)
			assert.Equal(t, fmt.Sprintf("tool%d done", i), out.Value)
		}
	})
}

func TestDispatchFailureIsolation(t *testing.T) {
	t.Run("should report an unknown tool without blocking siblings", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(echoTool()))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{
			{ID: "1", Name: "echo", Arguments: map[string]interface{}{"text": "hi"}},
			{ID: "2", Name: "does_not_exist"},
		})

		require.Len(t, outputs, 2)
		assert.Equal(t, "hi", outputs[0].Value)
		assert.Nil(t, outputs[1].Value)
		assert.False(t, outputs[1].IsFinalAnswer)
		assert.Contains(t, outputs[1].Observation, "unknown tool 'does_not_exist'")
	})

	t.Run("should capture handler errors as observations", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(ToolDefinition{
			Name:        "broken",
			Description: "Always fails",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return nil, errors.New("kaboom")
			},
		}))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{{ID: "1", Name: "broken"}})
		require.Len(t, outputs, 1)
		assert.Contains(t, outputs[0].Observation, "kaboom")
		assert.Nil(t, outputs[0].Value)
	})

	t.Run("should capture handler panics as observations", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(ToolDefinition{
			Name:        "panicky",
			Description: "Always panics",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				panic("oh no")
			},
		}))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{{ID: "1", Name: "panicky"}})
		require.Len(t, outputs, 1)
		assert.Contains(t, outputs[0].Observation, "panicked")
	})

	t.Run("should capture validation failures as observations", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(echoTool()))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{
			{ID: "1", Name: "echo", Arguments: map[string]interface{}{"wrong": true}},
		})
		require.Len(t, outputs, 1)
		assert.Contains(t, outputs[0].Observation, "invalid arguments")
	})

	t.Run("should time out one slot without failing the batch", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(sleepTool("hang", 500*time.Millisecond)))
		require.NoError(t, reg.Register(sleepTool("quick", time.Millisecond)))

		d := newTestDispatcher(t, Config{
			Registry:    reg,
			CallTimeout: 50 * time.Millisecond,
			Logger:      testLogger(),
		})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{
			{ID: "1", Name: "hang"},
			{ID: "2", Name: "quick"},
		})

		require.Len(t, outputs, 2)
		assert.Contains(t, outputs[0].Observation, "timed out")
		assert.Equal(t, "quick done", outputs[1].Value)
	})
}

func TestDispatchFinalAnswer(t *testing.T) {
	t.Run("should flag only the terminal tool as final", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(FinalAnswerTool()))
		require.NoError(t, reg.Register(echoTool()))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{
			{ID: "1", Name: "echo", Arguments: map[string]interface{}{"text": "working"}},
			{ID: "2", Name: FinalAnswerToolName, Arguments: map[string]interface{}{"answer": "42"}},
		})

		require.Len(t, outputs, 2)
		assert.False(t, outputs[0].IsFinalAnswer)
		assert.True(t, outputs[1].IsFinalAnswer)
		assert.Equal(t, "42", outputs[1].Value)
	})
}

func TestDispatchSingleCall(t *testing.T) {
	t.Run("should run a single call without the pool", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(echoTool()))

		d := newTestDispatcher(t, Config{Registry: reg, Logger: testLogger()})

		outputs := d.Dispatch(context.Background(), []model.ToolCall{
			{ID: "only", Name: "echo", Arguments: map[string]interface{}{"text": "solo"}},
		})

		require.Len(t, outputs, 1)
		assert.Equal(t, "solo", outputs[0].Value)
	})

	t.Run("should time out a single call whose handler ignores its context", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(ToolDefinition{
			Name:        "stubborn",
			Description: "Sleeps without watching its context",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				time.Sleep(500 * time.Millisecond)
				return "late", nil
			},
		}))

		d := newTestDispatcher(t, Config{
			Registry:    reg,
			CallTimeout: 50 * time.Millisecond,
			Logger:      testLogger(),
		})

		start := time.Now()
		outputs := d.Dispatch(context.Background(), []model.ToolCall{{ID: "1", Name: "stubborn"}})

		require.Len(t, outputs, 1)
		assert.Contains(t, outputs[0].Observation, "timed out")
		assert.Less(t, time.Since(start), 400*time.Millisecond)
	})

	t.Run("should return nil for an empty batch", func(t *testing.T) {
		d := newTestDispatcher(t, Config{Registry: NewRegistry(), Logger: testLogger()})
		assert.Nil(t, d.Dispatch(context.Background(), nil))
	})
}

func TestFormatObservation(t *testing.T) {
	t.Run("should truncate oversized output", func(t *testing.T) {
		big := make([]byte, maxObservationLen+100)
		for i := range big {
			big[i] = 'a'
		}

		text := formatObservation(string(big))
		assert.Contains(t, text, "[output truncated]")
		assert.Less(t, len(text), maxObservationLen+100)
	})

	t.Run("should describe nil values", func(t *testing.T) {
		assert.Equal(t, "(no output)", formatObservation(nil))
	})
}

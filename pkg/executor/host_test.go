package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostExecute(t *testing.T) {
	h := NewHostExecutor("")

	t.Run("should capture stdout", func(t *testing.T) {
		result, err := h.Execute(context.Background(), "echo hello", "sh", 5*time.Second)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, "hello\n", result.Output)
		assert.False(t, result.IsFinalAnswer)
	})

	t.Run("should capture stderr as logs", func(t *testing.T) {
		result, err := h.Execute(context.Background(), "echo oops >&2; echo ok", "sh", 5*time.Second)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Contains(t, result.Logs, "oops")
		assert.Contains(t, result.Output, "ok")
	})

	t.Run("should report a non-zero exit as an error result, not a Go error", func(t *testing.T) {
		result, err := h.Execute(context.Background(), "exit 3", "sh", 5*time.Second)
		require.NoError(t, err)

		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
	})

	t.Run("should detect the final answer marker", func(t *testing.T) {
		result, err := h.Execute(context.Background(), "echo 'FINAL_ANSWER: 42'", "sh", 5*time.Second)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.True(t, result.IsFinalAnswer)
		assert.Equal(t, "42", result.Output)
	})

	t.Run("should time out long-running code", func(t *testing.T) {
		result, err := h.Execute(context.Background(), "sleep 5", "sh", 100*time.Millisecond)
		require.NoError(t, err)

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "timed out")
	})

	t.Run("should reject unknown languages", func(t *testing.T) {
		_, err := h.Execute(context.Background(), "puts 1", "ruby", time.Second)
		assert.Error(t, err)
	})
}

func TestExtractFinalAnswer(t *testing.T) {
	t.Run("should only look at the last non-empty line", func(t *testing.T) {
		output, final := extractFinalAnswer("FINAL_ANSWER: nope\nreal output\n")
		assert.False(t, final)
		assert.Contains(t, output, "real output")
	})

	t.Run("should skip trailing blank lines", func(t *testing.T) {
		output, final := extractFinalAnswer("working...\nFINAL_ANSWER: done\n\n")
		assert.True(t, final)
		assert.Equal(t, "done", output)
	})
}

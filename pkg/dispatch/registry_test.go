package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() ToolDefinition {
	return ToolDefinition{
		Name:        "echo",
		Description: "Echo the input text",
		Parameters: []ToolParameter{
			{Name: "text", Type: "string", Description: "text to echo", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args["text"], nil
		},
	}
}

func TestRegister(t *testing.T) {
	t.Run("should register a valid tool", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.Register(echoTool()))
		assert.Equal(t, 1, reg.Count())
		assert.NotNil(t, reg.Get("echo"))
		assert.Contains(t, reg.List(), "echo")
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.Register(echoTool()))
		err := reg.Register(echoTool())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("should reject a tool without a handler", func(t *testing.T) {
		reg := NewRegistry()

		err := reg.Register(ToolDefinition{Name: "x", Description: "y"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "handler")
	})

	t.Run("should reject invalid parameter types", func(t *testing.T) {
		reg := NewRegistry()

		def := echoTool()
		def.Parameters[0].Type = "text"
		err := reg.Register(def)
		assert.Error(t, err)
	})

	t.Run("should unregister", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.Register(echoTool()))
		reg.Unregister("echo")
		assert.Nil(t, reg.Get("echo"))
	})
}

func TestValidateArguments(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool()))

	t.Run("should accept valid arguments", func(t *testing.T) {
		err := reg.ValidateArguments("echo", map[string]interface{}{"text": "hi"})
		assert.NoError(t, err)
	})

	t.Run("should reject a missing required argument", func(t *testing.T) {
		err := reg.ValidateArguments("echo", map[string]interface{}{})
		assert.Error(t, err)
	})

	t.Run("should reject a wrong argument type", func(t *testing.T) {
		err := reg.ValidateArguments("echo", map[string]interface{}{"text": 42})
		assert.Error(t, err)
	})

	t.Run("should reject unexpected arguments", func(t *testing.T) {
		err := reg.ValidateArguments("echo", map[string]interface{}{"text": "hi", "extra": true})
		assert.Error(t, err)
	})
}

func TestSpecs(t *testing.T) {
	t.Run("should render tool specs with required fields", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(echoTool()))

		specs := reg.Specs()
		require.Len(t, specs, 1)
		assert.Equal(t, "echo", specs[0].Name)

		properties, ok := specs[0].InputSchema["properties"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, properties, "text")
		assert.Equal(t, []string{"text"}, specs[0].InputSchema["required"])
	})
}

func TestFinalAnswerTool(t *testing.T) {
	t.Run("should echo the answer", func(t *testing.T) {
		def := FinalAnswerTool()
		value, err := def.Handler(context.Background(), map[string]interface{}{"answer": "42"})
		require.NoError(t, err)
		assert.Equal(t, "42", value)
	})
}

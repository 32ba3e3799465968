package agent

import (
	"context"
	"fmt"

	"github.com/harun/reagent/pkg/dispatch"
)

// AsTool exposes this agent as a delegation tool another agent can call. The
// delegated run executes synchronously inside the calling step's tool slot.
func (a *Agent) AsTool(name, description string) dispatch.ToolDefinition {
	return dispatch.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: []dispatch.ToolParameter{
			{
				Name:        "task",
				Type:        "string",
				Description: "Task for the delegated agent",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			taskText, _ := args["task"].(string)
			if taskText == "" {
				return nil, fmt.Errorf("task cannot be empty")
			}

			result := a.Run(ctx, Task{Instruction: taskText})
			switch result.Outcome {
			case OutcomeSuccess:
				return result.Output, nil
			case OutcomeMaxSteps:
				return nil, fmt.Errorf("delegated agent exhausted its step budget")
			default:
				return nil, fmt.Errorf("delegated agent failed: %s", result.Error)
			}
		},
	}
}

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

const planningSystemPrompt = `You are reviewing an agent's progress on a task.
Summarize what has been learned so far and propose the next actions. Be brief
and concrete.`

// planningStep asks the model to revise the plan from a short excerpt of each
// prior observation. Planning failures are recorded on the planning step and
// never abort the run.
func (a *Agent) planningStep(ctx context.Context, mem *memory.Memory) *memory.PlanningStep {
	plan := memory.NewPlanningStep()
	defer plan.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Task:\n%s\n\nProgress so far:\n", mem.Task().Task)
	for _, excerpt := range mem.SuccinctObservations() {
		sb.WriteString(excerpt)
		sb.WriteString("\n")
	}
	sb.WriteString("\nSummarize the progress and propose the next actions.")

	request := []model.Message{{Role: model.RoleUser, Content: sb.String()}}
	plan.Request = request

	resp, err := a.model.Generate(ctx, model.Request{
		Messages:     request,
		SystemPrompt: planningSystemPrompt,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Planning step failed")
		plan.Error = err.Error()
		return plan
	}

	plan.Plan = resp.Content
	plan.Response = resp.Message()
	plan.Usage = resp.Usage

	a.logger.Debug().Msg("Plan revised")

	return plan
}

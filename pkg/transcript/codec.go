package transcript

import (
	"encoding/json"
	"fmt"

	"github.com/harun/reagent/pkg/memory"
)

// stepRecord wraps one step with its kind so the concrete type survives the
// round trip through JSON.
type stepRecord struct {
	Kind memory.StepKind `json:"kind"`
	Step json.RawMessage `json:"step"`
}

func encodeSteps(steps []memory.Step) ([]byte, error) {
	records := make([]stepRecord, 0, len(steps))
	for _, step := range steps {
		raw, err := json.Marshal(step)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s step: %w", step.Kind(), err)
		}
		records = append(records, stepRecord{Kind: step.Kind(), Step: raw})
	}
	return json.Marshal(records)
}

func decodeSteps(data []byte) ([]memory.Step, error) {
	var records []stepRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	steps := make([]memory.Step, 0, len(records))
	for _, rec := range records {
		var step memory.Step
		switch rec.Kind {
		case memory.KindTask:
			step = &memory.TaskStep{}
		case memory.KindAction:
			step = &memory.ActionStep{}
		case memory.KindPlanning:
			step = &memory.PlanningStep{}
		default:
			return nil, fmt.Errorf("unknown step kind %q", rec.Kind)
		}
		if err := json.Unmarshal(rec.Step, step); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s step: %w", rec.Kind, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

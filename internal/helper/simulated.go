package helper

import "github.com/ppiankov/fanguard/internal/model"

// Simulated succeeds for every command and echoes the payload as read-back.
// Target writes also read back the requested target.
type Simulated struct{}

// Execute implements Executor.
func (Simulated) Execute(env model.CommandEnvelope) (model.WriteResult, error) {
	readback := map[string]any{"payload": env.Payload}
	if env.Command == model.SetChannelTarget {
		if target, ok := ToInt(env.Payload["target"]); ok {
			readback["requested"] = target
			readback["target"] = target
		}
	}
	return model.WriteResult{
		Command:  env.Command,
		Success:  true,
		Detail:   "simulated helper execution",
		Readback: readback,
	}, nil
}

// ToInt coerces payload numbers decoded from Go callers, YAML or JSON.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

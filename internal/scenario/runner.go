package scenario

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/fanguard/internal/capability"
	"github.com/ppiankov/fanguard/internal/conflict"
	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
	"github.com/ppiankov/fanguard/internal/policy"
)

// Parse decodes a scenario, applies capability defaults and validates it.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	capability.ApplyDefaults(&s.Capability)
	if s.Validation == "" {
		s.Validation = ValidateResult
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load resolves a built-in scenario by name, or reads a YAML file.
func Load(nameOrPath string) (*Scenario, error) {
	if data, ok := builtinScenarios[nameOrPath]; ok {
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("built-in scenario %q: %w", nameOrPath, err)
		}
		return s, nil
	}
	data, err := os.ReadFile(nameOrPath)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", nameOrPath, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", nameOrPath, err)
	}
	return s, nil
}

// Validate checks that a scenario only uses known commands, modes and operations.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	switch s.Validation {
	case "", ValidateResult, ValidateAlwaysFalse, ValidateReadback:
	default:
		return fmt.Errorf("unknown validation mode %q", s.Validation)
	}
	for cmd := range s.Results {
		if !model.Command(cmd).Allowed() {
			return fmt.Errorf("results: %q is not a helper command", cmd)
		}
	}
	if err := capability.Validate(s.Capability); err != nil {
		return fmt.Errorf("capability: %w", err)
	}
	for i, st := range s.Steps {
		switch st.Op {
		case OpStartup, OpValidate:
		case OpWrite:
			if st.Target == nil {
				return fmt.Errorf("steps[%d]: write requires a target", i)
			}
		case OpBalanced:
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, st.Op)
		}
	}
	return nil
}

// DefaultSteps mirrors a plain dry run: startup, validation, then the
// balanced profile on the first channel.
func DefaultSteps(s *Scenario) []Step {
	channel := ""
	if names := s.Capability.ChannelNames(); len(names) > 0 {
		channel = names[0]
	}
	return []Step{
		{Op: OpStartup},
		{Op: OpValidate},
		{Op: OpBalanced, Channel: channel},
	}
}

// Run plays the scenario against a fresh engine. Each run is independent.
// Extra options are applied after the scenario's own executor wiring.
func Run(s *Scenario, cfg *policy.Config, opts ...policy.Option) (*RunResult, error) {
	if cfg == nil {
		cfg = policy.DefaultConfig()
	}
	channel := helper.NewChannel(scripted(s.Results))

	base := []policy.Option{
		policy.WithConfig(cfg),
		policy.WithValidator(validatorFor(s.Validation)),
		policy.WithDetector(conflict.NewProbe(cfg.ConflictSignatures)),
	}
	engine, err := policy.New(channel, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	steps := s.Steps
	if len(steps) == 0 {
		steps = DefaultSteps(s)
	}
	processes := s.Processes
	if processes == nil {
		processes = []string{}
	}

	result := &RunResult{
		Name:      s.Name,
		SessionID: engine.SessionID(),
		Total:     len(steps),
	}

	for i, st := range steps {
		sr := StepResult{Index: i + 1, Op: st.Op, Channel: st.Channel}

		switch st.Op {
		case OpStartup:
			engine.Startup()
		case OpValidate:
			ok, conflicts := engine.ValidateStartupDetect(s.Capability, processes)
			sr.Validated = &ok
			sr.Conflicts = &conflicts
		case OpWrite:
			d := engine.RequestWrite(st.Channel, *st.Target, st.Source)
			sr.Decision = &d
		case OpBalanced:
			target := cfg.BalancedTarget
			if st.Target != nil {
				target = *st.Target
			}
			d := engine.ApplyBalancedProfile(st.Channel, target)
			sr.Decision = &d
		}

		sr.State = engine.State()
		sr.Failures = check(st.Expect, sr)
		sr.Passed = len(sr.Failures) == 0
		if sr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Steps = append(result.Steps, sr)
	}

	result.FinalState = engine.State()
	result.Dispatched = channel.Dispatched()
	result.Transitions = engine.Transitions()
	result.AuditEvents = engine.AuditLog()
	return result, nil
}

// LoadAndRun resolves a scenario, loads the policy file, and runs.
func LoadAndRun(nameOrPath, policyPath string, opts ...policy.Option) (*RunResult, error) {
	s, err := Load(nameOrPath)
	if err != nil {
		return nil, err
	}
	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	result, err := Run(s, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if _, builtin := builtinScenarios[nameOrPath]; !builtin {
		result.File = nameOrPath
	}
	return result, nil
}

func scripted(results map[string]Result) helper.Executor {
	return helper.ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
		r, ok := results[string(env.Command)]
		if !ok {
			return helper.Simulated{}.Execute(env)
		}
		return model.WriteResult{
			Command:   env.Command,
			Success:   r.Success,
			ErrorCode: model.Reason(r.ErrorCode),
			Detail:    r.Detail,
			Readback:  maps.Clone(r.Readback),
		}, nil
	})
}

func validatorFor(mode string) policy.Validator {
	switch mode {
	case ValidateAlwaysFalse:
		return policy.ValidatorFunc(func(model.WriteResult) bool { return false })
	case ValidateReadback:
		return policy.ReadbackValidator{}
	default:
		return policy.ResultValidator
	}
}

func check(want Expect, got StepResult) []string {
	var failures []string
	if want.Action != "" || want.Reason != "" {
		if got.Decision == nil {
			return append(failures, fmt.Sprintf("%s produces no decision", got.Op))
		}
		if want.Action != "" && !strings.EqualFold(want.Action, string(got.Decision.Action)) {
			failures = append(failures, fmt.Sprintf("action: expected %s, got %s", want.Action, got.Decision.Action))
		}
		if want.Reason != "" && !strings.EqualFold(want.Reason, string(got.Decision.Reason)) {
			failures = append(failures, fmt.Sprintf("reason: expected %s, got %s", want.Reason, got.Decision.Reason))
		}
	}
	if want.State != "" && !strings.EqualFold(want.State, string(got.State)) {
		failures = append(failures, fmt.Sprintf("state: expected %s, got %s", want.State, got.State))
	}
	if want.Validated != nil {
		if got.Validated == nil {
			failures = append(failures, fmt.Sprintf("%s does not validate", got.Op))
		} else if *want.Validated != *got.Validated {
			failures = append(failures, fmt.Sprintf("validated: expected %t, got %t", *want.Validated, *got.Validated))
		}
	}
	return failures
}

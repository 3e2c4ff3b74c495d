package scenario

import "github.com/ppiankov/fanguard/internal/model"

// Validation modes select how the engine confirms writes in a scenario.
const (
	ValidateResult      = "result"
	ValidateAlwaysFalse = "always_false"
	ValidateReadback    = "readback"
)

// Step operations.
const (
	OpStartup  = "startup"
	OpValidate = "validate"
	OpWrite    = "write"
	OpBalanced = "balanced"
)

// Result is the scripted helper answer for one command.
type Result struct {
	Success   bool           `yaml:"success" json:"success"`
	ErrorCode string         `yaml:"error_code,omitempty" json:"error_code,omitempty"`
	Detail    string         `yaml:"detail,omitempty" json:"detail,omitempty"`
	Readback  map[string]any `yaml:"readback,omitempty" json:"readback,omitempty"`
}

// Expect holds the assertions for one step. Empty fields are not checked.
type Expect struct {
	Action    string `yaml:"action,omitempty" json:"action,omitempty"`
	Reason    string `yaml:"reason,omitempty" json:"reason,omitempty"`
	State     string `yaml:"state,omitempty" json:"state,omitempty"`
	Validated *bool  `yaml:"validated,omitempty" json:"validated,omitempty"`
}

// Step is one engine call.
type Step struct {
	Op      string `yaml:"op"`
	Channel string `yaml:"channel,omitempty"`
	// Target is required for write; balanced defaults to the policy's balanced_target.
	Target *int   `yaml:"target,omitempty"`
	Source string `yaml:"source,omitempty"`
	Expect Expect `yaml:"expect,omitempty"`
}

// Scenario is a scripted dry run of the policy engine.
type Scenario struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Capability  model.CapabilityReport `yaml:"capability"`
	// Processes is the process listing handed to conflict detection.
	Processes  []string          `yaml:"processes,omitempty"`
	Results    map[string]Result `yaml:"results,omitempty"`
	Validation string            `yaml:"validation,omitempty"`
	Steps      []Step            `yaml:"steps,omitempty"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index     int                    `json:"index"`
	Op        string                 `json:"op"`
	Channel   string                 `json:"channel,omitempty"`
	Decision  *model.ControlDecision `json:"decision,omitempty"`
	Validated *bool                  `json:"validated,omitempty"`
	Conflicts *model.ConflictReport  `json:"conflicts,omitempty"`
	State     model.SafetyState      `json:"state"`
	Passed    bool                   `json:"passed"`
	Failures  []string               `json:"failures,omitempty"`
}

// RunResult is the outcome of one scenario.
type RunResult struct {
	File        string                   `json:"file,omitempty"`
	Name        string                   `json:"name"`
	SessionID   string                   `json:"session_id"`
	Total       int                      `json:"total"`
	Passed      int                      `json:"passed"`
	Failed      int                      `json:"failed"`
	FinalState  model.SafetyState        `json:"final_state"`
	Steps       []StepResult             `json:"steps"`
	Dispatched  []model.Command          `json:"dispatched"`
	Transitions []model.SafetyTransition `json:"transitions"`
	AuditEvents []model.AuditEvent       `json:"audit_events"`
}

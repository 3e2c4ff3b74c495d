package model

import "fmt"

// SafetyState is the control-authority posture of the policy engine.
// The set is closed: every value maps to exactly one Authority.
type SafetyState string

const (
	SafeControllable SafetyState = "SAFE_CONTROLLABLE"
	ReadOnly         SafetyState = "READ_ONLY"
	DegradedSafe     SafetyState = "DEGRADED_SAFE"
	UnsafeUnknown    SafetyState = "UNSAFE_UNKNOWN"
)

// AllStates lists every SafetyState in declaration order.
var AllStates = []SafetyState{SafeControllable, ReadOnly, DegradedSafe, UnsafeUnknown}

// Authority is the kind of control permitted in a SafetyState.
type Authority string

const (
	AuthorityManual   Authority = "MANUAL"
	AuthorityAuto     Authority = "AUTO"
	AuthorityFallback Authority = "FALLBACK"
	AuthorityLocked   Authority = "LOCKED"
)

// Authority returns the fixed authority level for the state. The zero
// value (no Startup yet) is locked. Any other value outside the closed set
// is a programming error and panics.
func (s SafetyState) Authority() Authority {
	switch s {
	case SafeControllable:
		return AuthorityManual
	case ReadOnly:
		return AuthorityAuto
	case DegradedSafe:
		return AuthorityFallback
	case UnsafeUnknown, "":
		return AuthorityLocked
	}
	panic(fmt.Sprintf("model: no authority mapped for safety state %q", string(s)))
}

// Valid reports whether s is one of the declared states.
func (s SafetyState) Valid() bool {
	switch s {
	case SafeControllable, ReadOnly, DegradedSafe, UnsafeUnknown:
		return true
	}
	return false
}

func (s SafetyState) String() string {
	if s == "" {
		return "UNINITIALIZED"
	}
	return string(s)
}

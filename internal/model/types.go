package model

import (
	"sort"
	"time"
)

// Reason is a classification carried by WriteResult.ErrorCode and
// ControlDecision.Reason. Outcomes are values, never Go errors.
type Reason string

const (
	WriteRejectedPolicy  Reason = "WRITE_REJECTED_POLICY"
	WriteFailedBackend   Reason = "WRITE_FAILED_BACKEND"
	ValidationFailed     Reason = "VALIDATION_FAILED"
	RestoreAutoFailed    Reason = "RESTORE_AUTO_FAILED"
	RestoreAutoRecovered Reason = "RESTORE_AUTO_RECOVERED"
	EmergencyApplied     Reason = "EMERGENCY_APPLIED"
	LockoutAsserted      Reason = "LOCKOUT_ASSERTED"

	// WriteValidated is the reason on an allow decision.
	WriteValidated Reason = "WRITE_VALIDATED"
)

// Command names a privileged helper operation.
type Command string

const (
	SetChannelTarget    Command = "set_channel_target"
	RestoreAuto         Command = "restore_auto"
	SetEmergencyCooling Command = "set_emergency_cooling"
)

// Allowed reports whether c is on the helper allow-list.
func (c Command) Allowed() bool {
	switch c {
	case SetChannelTarget, RestoreAuto, SetEmergencyCooling:
		return true
	}
	return false
}

// CommandEnvelope is one request to the command channel.
type CommandEnvelope struct {
	Command Command        `json:"command"`
	Payload map[string]any `json:"payload"`
}

// WriteResult is the only way a command executor reports outcome.
// ErrorCode is empty when the executor supplied no classification.
type WriteResult struct {
	Command   Command        `json:"command"`
	Success   bool           `json:"success"`
	ErrorCode Reason         `json:"error_code,omitempty"`
	Detail    string         `json:"detail"`
	Readback  map[string]any `json:"readback,omitempty"`
}

// ChannelCaps is the per-channel feature set from capability discovery.
type ChannelCaps struct {
	RestoreAutoSupported bool `yaml:"restore_auto_supported" json:"restore_auto_supported"`
	WriteSupported       bool `yaml:"write_supported" json:"write_supported"`
}

// CapabilityReport describes which channels a backend exposes and what it
// claims to support. Callers own it; the engine keeps a private copy.
type CapabilityReport struct {
	BackendID            string                 `yaml:"backend_id" json:"backend_id"`
	Channels             map[string]ChannelCaps `yaml:"channels" json:"channels"`
	VerificationWindowMS int                    `yaml:"verification_window_ms" json:"verification_window_ms"`
	CertificationLevel   string                 `yaml:"certification_level" json:"certification_level"`
	Confidence           float64                `yaml:"confidence" json:"confidence"`
	Reasons              []string               `yaml:"reasons" json:"reasons"`
}

// Defaults for CapabilityReport fields left unset.
const (
	DefaultVerificationWindowMS = 1000
	DefaultCertificationLevel   = "uncertified"
)

// NewCapabilityReport returns a report with default window and certification.
func NewCapabilityReport(backendID string, channels map[string]ChannelCaps) CapabilityReport {
	return CapabilityReport{
		BackendID:            backendID,
		Channels:             channels,
		VerificationWindowMS: DefaultVerificationWindowMS,
		CertificationLevel:   DefaultCertificationLevel,
		Reasons:              []string{},
	}
}

// VerificationWindow returns the expected latency bound for a write.
func (r CapabilityReport) VerificationWindow() time.Duration {
	return time.Duration(r.VerificationWindowMS) * time.Millisecond
}

// HasChannel reports whether the channel is listed.
func (r CapabilityReport) HasChannel(name string) bool {
	_, ok := r.Channels[name]
	return ok
}

// ChannelNames returns the listed channels sorted by name.
func (r CapabilityReport) ChannelNames() []string {
	names := make([]string, 0, len(r.Channels))
	for name := range r.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (r CapabilityReport) Clone() CapabilityReport {
	out := r
	out.Channels = make(map[string]ChannelCaps, len(r.Channels))
	for k, v := range r.Channels {
		out.Channels[k] = v
	}
	out.Reasons = append([]string(nil), r.Reasons...)
	return out
}

// ConflictReport records whether competing fan-control software is running.
// Matches is sorted and de-duplicated.
type ConflictReport struct {
	Active  bool     `json:"active"`
	Matches []string `json:"matches"`
}

// Action is the engine's answer to a write request.
type Action string

const (
	Allow         Action = "allow"
	Deny          Action = "deny"
	ForceFallback Action = "force_fallback"
)

// ControlDecision is everything a caller needs to know about one request.
type ControlDecision struct {
	Action           Action      `json:"action"`
	Reason           Reason      `json:"reason"`
	State            SafetyState `json:"state"`
	Channel          string      `json:"channel"`
	Target           int         `json:"target"`
	FallbackExecuted bool        `json:"fallback_executed"`
}

// SafetyTransition is one append-only state change record.
// From is empty for the first startup of an engine.
type SafetyTransition struct {
	From      SafetyState `json:"from_state"`
	To        SafetyState `json:"to_state"`
	Reason    string      `json:"reason"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventType classifies an AuditEvent.
type EventType string

const (
	EventWriteDenied  EventType = "write_denied"
	EventWriteSuccess EventType = "write_success"
	EventLockout      EventType = "lockout"
)

// Severity of an AuditEvent.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AuditEvent is one append-only audit record.
type AuditEvent struct {
	Type      EventType      `json:"event_type"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	State     SafetyState    `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

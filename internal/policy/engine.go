package policy

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/fanguard/internal/model"
)

// CommandChannel dispatches allow-listed privileged commands.
type CommandChannel interface {
	Execute(env model.CommandEnvelope) model.WriteResult
}

// Detector reports competing fan-control software. Nil lines read the
// live process list.
type Detector interface {
	Detect(lines []string) model.ConflictReport
}

// Sink receives every transition and audit event as it is appended.
// Sink failures are logged and never change a decision.
type Sink interface {
	RecordTransition(sessionID string, t model.SafetyTransition) error
	RecordEvent(sessionID string, e model.AuditEvent) error
}

// Engine gates manual fan control behind the safety state machine.
//
// Every public method holds a single lock for its whole duration, including
// calls into the command channel. There is no timeout or cancellation inside
// the engine: a slow channel holds the lock until it returns, so hosts that
// care about latency must bound the executor themselves.
type Engine struct {
	channel   CommandChannel
	detector  Detector
	validator Validator
	cfg       Config
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time
	sessionID string

	mu          sync.Mutex
	started     bool
	state       model.SafetyState
	validated   bool
	capability  *model.CapabilityReport
	transitions []model.SafetyTransition
	audit       []model.AuditEvent
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator sets the post-write confirmation strategy.
func WithValidator(v Validator) Option { return func(e *Engine) { e.validator = v } }

// WithDetector sets the conflict detector used by ValidateStartupDetect.
func WithDetector(d Detector) Option { return func(e *Engine) { e.detector = d } }

// WithConfig sets target bounds.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.cfg = *cfg
		}
	}
}

// WithSink mirrors transitions and audit events to s.
func WithSink(s Sink) Option { return func(e *Engine) { e.sink = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option { return func(e *Engine) { e.sessionID = id } }

// New creates an engine. It accepts no writes until Startup runs.
func New(channel CommandChannel, opts ...Option) (*Engine, error) {
	if channel == nil {
		return nil, fmt.Errorf("policy: command channel is required")
	}
	e := &Engine{
		channel:   channel,
		validator: ResultValidator,
		cfg:       *DefaultConfig(),
		logger:    slog.Default().With("component", "policy"),
		now:       func() time.Time { return time.Now().UTC() },
		sessionID: uuid.NewString(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.validator == nil {
		e.validator = ResultValidator
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	e.logger = e.logger.With("session", e.sessionID)
	return e, nil
}

// Startup (re)enters READ_ONLY and clears validation and the capability report.
// It is the operator's restart and also clears a lockout.
func (e *Engine) Startup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startup("startup guard")
}

// Restart is Startup for automated callers: it refuses while the engine is
// in UNSAFE_UNKNOWN and reports whether the restart happened.
func (e *Engine) Restart(reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == model.UnsafeUnknown {
		e.logger.Error("restart refused during lockout", "reason", reason)
		return false
	}
	e.startup(reason)
	return true
}

func (e *Engine) startup(reason string) {
	e.started = true
	e.validated = false
	e.capability = nil
	e.transition(model.ReadOnly, reason)
}

// ValidateStartup grants manual control only if the report lists at least
// one channel, every channel supports automatic restore, and no conflicting
// software is active. The report is retained for channel checks. It is
// refused before Startup and while locked out.
func (e *Engine) ValidateStartup(report model.CapabilityReport, conflicts model.ConflictReport) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		e.logger.Warn("startup validation refused before startup")
		return false
	}
	if e.state == model.UnsafeUnknown {
		// Lockout is cleared only by a fresh Startup.
		e.logger.Error("startup validation refused during lockout")
		return false
	}

	r := report.Clone()
	e.capability = &r

	hasChannels := len(r.Channels) > 0
	hasRestore := true
	for _, caps := range r.Channels {
		if !caps.RestoreAutoSupported {
			hasRestore = false
			break
		}
	}

	e.validated = hasChannels && hasRestore && !conflicts.Active
	if e.validated {
		e.transition(model.SafeControllable, "startup validation passed")
	} else {
		e.logger.Warn("startup validation failed",
			"channels", len(r.Channels),
			"restore_auto", hasRestore,
			"conflicts", conflicts.Matches)
		e.transition(model.ReadOnly, "startup validation failed")
	}
	return e.validated
}

// ValidateStartupDetect runs the configured detector on lines (nil reads
// the live process list) and then ValidateStartup.
func (e *Engine) ValidateStartupDetect(report model.CapabilityReport, lines []string) (bool, model.ConflictReport) {
	conflicts := model.ConflictReport{Matches: []string{}}
	if e.detector != nil {
		conflicts = e.detector.Detect(lines)
	}
	return e.ValidateStartup(report, conflicts), conflicts
}

// ApplyBalancedProfile requests target on channel with source "profile:balanced".
func (e *Engine) ApplyBalancedProfile(channel string, target int) model.ControlDecision {
	return e.RequestWrite(channel, target, "profile:balanced")
}

// RequestWrite bounds target and writes it through the command channel.
// An empty source is recorded as "user".
//
// Guard order (must not be changed):
//  1. Lockout -> deny LOCKOUT_ASSERTED
//  2. Not validated or READ_ONLY -> deny WRITE_REJECTED_POLICY
//  3. Unknown channel -> deny WRITE_REJECTED_POLICY
//  4. Clamp, dispatch, confirm; failure runs the fallback ladder
func (e *Engine) RequestWrite(channel string, target int, source string) model.ControlDecision {
	if source == "" {
		source = "user"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == model.UnsafeUnknown {
		return e.deny(channel, target, source, model.LockoutAsserted)
	}
	if !e.validated || e.state == model.ReadOnly {
		return e.deny(channel, target, source, model.WriteRejectedPolicy)
	}
	if e.capability == nil || !e.capability.HasChannel(channel) {
		return e.deny(channel, target, source, model.WriteRejectedPolicy)
	}

	bounded := e.cfg.Clamp(target)
	result := e.channel.Execute(model.CommandEnvelope{
		Command: model.SetChannelTarget,
		Payload: map[string]any{"channel": channel, "target": bounded, "source": source},
	})
	if !result.Success {
		reason := result.ErrorCode
		if reason == "" {
			reason = model.WriteFailedBackend
		}
		return e.fallback(channel, bounded, reason)
	}
	if !e.validator.Validate(result) {
		return e.fallback(channel, bounded, model.ValidationFailed)
	}

	e.record(model.AuditEvent{
		Type:     model.EventWriteSuccess,
		Message:  "write accepted and validated",
		Severity: model.SeverityInfo,
		Metadata: map[string]any{"channel": channel, "target": bounded, "source": source},
	})
	return model.ControlDecision{
		Action:  model.Allow,
		Reason:  model.WriteValidated,
		State:   e.state,
		Channel: channel,
		Target:  bounded,
	}
}

// fallback runs the two-rung recovery ladder: restore automatic control,
// else force emergency cooling and lock out. It never retries.
func (e *Engine) fallback(channel string, target int, reason model.Reason) model.ControlDecision {
	e.transition(model.DegradedSafe, fmt.Sprintf("fallback start: %s", reason))

	restore := e.channel.Execute(model.CommandEnvelope{
		Command: model.RestoreAuto,
		Payload: map[string]any{"scope": "all"},
	})
	if restore.Success && e.validator.Validate(restore) {
		e.transition(model.ReadOnly, "restore_auto recovered")
		e.validated = false
		return model.ControlDecision{
			Action:           model.ForceFallback,
			Reason:           model.RestoreAutoRecovered,
			State:            e.state,
			Channel:          channel,
			Target:           target,
			FallbackExecuted: true,
		}
	}

	emergency := e.channel.Execute(model.CommandEnvelope{
		Command: model.SetEmergencyCooling,
		Payload: map[string]any{"scope": "all"},
	})
	lockReason := emergency.ErrorCode
	if lockReason == "" {
		lockReason = model.EmergencyApplied
	}
	e.transition(model.UnsafeUnknown, string(lockReason))
	e.validated = false
	e.logger.Error("fallback ladder ended in lockout",
		"channel", channel,
		"reason", reason,
		"restore_detail", restore.Detail,
		"emergency_success", emergency.Success)
	e.record(model.AuditEvent{
		Type:     model.EventLockout,
		Message:  "fallback ladder ended in lockout",
		Severity: model.SeverityCritical,
		Metadata: map[string]any{"channel": channel, "target": target, "reason": string(reason)},
	})
	return model.ControlDecision{
		Action:           model.ForceFallback,
		Reason:           reason,
		State:            e.state,
		Channel:          channel,
		Target:           target,
		FallbackExecuted: true,
	}
}

// deny records a write_denied event. The decision carries the clamped
// target; the event keeps the value the caller asked for.
func (e *Engine) deny(channel string, target int, source string, reason model.Reason) model.ControlDecision {
	e.logger.Warn("write denied", "channel", channel, "target", target, "source", source, "reason", reason)
	e.record(model.AuditEvent{
		Type:     model.EventWriteDenied,
		Message:  string(reason),
		Severity: model.SeverityWarning,
		Metadata: map[string]any{"channel": channel, "target": target, "source": source},
	})
	return model.ControlDecision{
		Action:  model.Deny,
		Reason:  reason,
		State:   e.state,
		Channel: channel,
		Target:  e.cfg.Clamp(target),
	}
}

// transition must be called with mu held.
func (e *Engine) transition(to model.SafetyState, reason string) {
	t := model.SafetyTransition{
		From:      e.state,
		To:        to,
		Reason:    reason,
		Timestamp: e.now(),
	}
	e.state = to
	e.transitions = append(e.transitions, t)
	e.logger.Info("safety transition", "from", t.From.String(), "to", t.To.String(), "reason", reason)

	if e.sink != nil {
		if err := e.sink.RecordTransition(e.sessionID, t); err != nil {
			e.logger.Error("audit sink: record transition", "error", err)
		}
	}
}

// record must be called with mu held.
func (e *Engine) record(ev model.AuditEvent) {
	ev.State = e.state
	ev.Timestamp = e.now()
	e.audit = append(e.audit, ev)

	if e.sink != nil {
		if err := e.sink.RecordEvent(e.sessionID, ev); err != nil {
			e.logger.Error("audit sink: record event", "error", err)
		}
	}
}

// State returns the current state; empty before Startup.
func (e *Engine) State() model.SafetyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Authority returns the authority mapped from the current state.
func (e *Engine) Authority() model.Authority {
	return e.State().Authority()
}

// Validated reports whether manual control has been granted.
func (e *Engine) Validated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validated
}

// Started reports whether Startup has run.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// SessionID identifies this engine instance in exported audit records.
func (e *Engine) SessionID() string { return e.sessionID }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	c := e.cfg
	c.ConflictSignatures = append([]string(nil), e.cfg.ConflictSignatures...)
	return c
}

// Capability returns a copy of the retained capability report.
func (e *Engine) Capability() (model.CapabilityReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capability == nil {
		return model.CapabilityReport{}, false
	}
	return e.capability.Clone(), true
}

// Transitions returns a snapshot of the transition log.
func (e *Engine) Transitions() []model.SafetyTransition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.SafetyTransition, len(e.transitions))
	copy(out, e.transitions)
	return out
}

// AuditLog returns a snapshot of the audit log.
func (e *Engine) AuditLog() []model.AuditEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.AuditEvent, len(e.audit))
	for i, ev := range e.audit {
		ev.Metadata = maps.Clone(ev.Metadata)
		out[i] = ev
	}
	return out
}

// Status is a point-in-time summary of the engine.
type Status struct {
	SessionID   string            `json:"session_id"`
	Started     bool              `json:"started"`
	State       model.SafetyState `json:"state"`
	Authority   model.Authority   `json:"authority"`
	Validated   bool              `json:"validated"`
	Channels    []string          `json:"channels"`
	Transitions int               `json:"transitions"`
	AuditEvents int               `json:"audit_events"`
}

// Status returns a consistent summary taken under one lock.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		SessionID:   e.sessionID,
		Started:     e.started,
		State:       e.state,
		Authority:   e.state.Authority(),
		Validated:   e.validated,
		Channels:    []string{},
		Transitions: len(e.transitions),
		AuditEvents: len(e.audit),
	}
	if e.capability != nil {
		s.Channels = e.capability.ChannelNames()
	}
	return s
}

package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/fanguard/internal/audit"
	"github.com/ppiankov/fanguard/internal/model"
)

// --- Input/Output types ---

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput summarises the engine.
type StatusOutput struct {
	SessionID string   `json:"session_id"`
	Started   bool     `json:"started"`
	State     string   `json:"state"`
	Authority string   `json:"authority"`
	Validated bool     `json:"validated"`
	Channels  []string `json:"channels"`
	MinTarget int      `json:"min_target"`
	MaxTarget int      `json:"max_target"`
}

// WriteInput defines parameters for the fan_request_write tool.
type WriteInput struct {
	Channel string `json:"channel" jsonschema:"channel name from fan_status"`
	Target  int    `json:"target" jsonschema:"requested duty in percent, clamped to policy bounds"`
	Source  string `json:"source,omitempty" jsonschema:"who is asking, recorded in the audit log"`
}

// BalancedInput defines parameters for the fan_apply_balanced tool.
type BalancedInput struct {
	Channel string `json:"channel" jsonschema:"channel name from fan_status"`
	Target  *int   `json:"target,omitempty" jsonschema:"override for the balanced target in percent"`
}

// DecisionOutput mirrors a control decision.
type DecisionOutput struct {
	Action           string `json:"action"`
	Reason           string `json:"reason"`
	State            string `json:"state"`
	Channel          string `json:"channel"`
	Target           int    `json:"target"`
	FallbackExecuted bool   `json:"fallback_executed"`
}

// AuditInput defines parameters for the fan_audit tool.
type AuditInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"return only the most recent N transitions and events"`
}

// TransitionOutput is one safety transition.
type TransitionOutput struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// EventOutput is one audit event.
type EventOutput struct {
	Type      string            `json:"event_type"`
	Message   string            `json:"message"`
	Severity  string            `json:"severity"`
	State     string            `json:"state"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata"`
}

// AuditOutput lists the in-memory history and, when exported, the chain status.
type AuditOutput struct {
	Transitions []TransitionOutput `json:"transitions"`
	Events      []EventOutput      `json:"events"`
	ChainValid  *bool              `json:"chain_valid,omitempty"`
	ChainLines  int                `json:"chain_lines,omitempty"`
	ChainError  string             `json:"chain_error,omitempty"`
	ChainState  string             `json:"chain_state,omitempty"`
}

// --- Handlers ---

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st := s.engine.Status()
	cfg := s.engine.Config()
	return nil, StatusOutput{
		SessionID: st.SessionID,
		Started:   st.Started,
		State:     st.State.String(),
		Authority: string(st.Authority),
		Validated: st.Validated,
		Channels:  st.Channels,
		MinTarget: cfg.MinTarget,
		MaxTarget: cfg.MaxTarget,
	}, nil
}

func (s *Server) handleRequestWrite(ctx context.Context, req *mcpsdk.CallToolRequest, input WriteInput) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	source := input.Source
	if source == "" {
		source = "mcp"
	}
	d := s.engine.RequestWrite(input.Channel, input.Target, source)
	return decisionResult(d)
}

func (s *Server) handleApplyBalanced(ctx context.Context, req *mcpsdk.CallToolRequest, input BalancedInput) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	target := s.engine.Config().BalancedTarget
	if input.Target != nil {
		target = *input.Target
	}
	d := s.engine.ApplyBalancedProfile(input.Channel, target)
	return decisionResult(d)
}

func (s *Server) handleAudit(ctx context.Context, req *mcpsdk.CallToolRequest, input AuditInput) (*mcpsdk.CallToolResult, AuditOutput, error) {
	if input.Limit < 0 {
		return nil, AuditOutput{}, fmt.Errorf("limit must not be negative")
	}

	out := AuditOutput{
		Transitions: []TransitionOutput{},
		Events:      []EventOutput{},
	}
	for _, t := range tail(s.engine.Transitions(), input.Limit) {
		out.Transitions = append(out.Transitions, TransitionOutput{
			From:      string(t.From),
			To:        string(t.To),
			Reason:    t.Reason,
			Timestamp: t.Timestamp.UTC().Format(audit.TimestampFormat),
		})
	}
	for _, e := range tail(s.engine.AuditLog(), input.Limit) {
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		out.Events = append(out.Events, EventOutput{
			Type:      string(e.Type),
			Message:   e.Message,
			Severity:  string(e.Severity),
			State:     string(e.State),
			Timestamp: e.Timestamp.UTC().Format(audit.TimestampFormat),
			Metadata:  meta,
		})
	}

	if s.auditPath != "" {
		res := audit.Verify(s.auditPath)
		out.ChainValid = &res.Valid
		out.ChainLines = res.Lines
		out.ChainError = res.Error
		out.ChainState = res.Sessions[s.engine.SessionID()]
		if !res.Valid {
			return &mcpsdk.CallToolResult{IsError: true}, out, nil
		}
	}
	return nil, out, nil
}

func decisionResult(d model.ControlDecision) (*mcpsdk.CallToolResult, DecisionOutput, error) {
	out := DecisionOutput{
		Action:           string(d.Action),
		Reason:           string(d.Reason),
		State:            d.State.String(),
		Channel:          d.Channel,
		Target:           d.Target,
		FallbackExecuted: d.FallbackExecuted,
	}
	if d.Action != model.Allow {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func tail[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

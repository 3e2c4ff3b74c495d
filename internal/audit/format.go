package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	session := result.SessionID
	if session == "" {
		session = "all"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Session: %s | No entries found.\n", session)
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Session: %s | %s-%s UTC\n", session, first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		switch e.Kind {
		case KindTransition:
			from := e.From
			if from == "" {
				from = "-"
			}
			b.WriteString(fmt.Sprintf("%-10s %-14s %s -> %s  %s\n",
				ts, "TRANSITION", from, e.To, truncate(e.Reason, 48)))
		default:
			target := ""
			if e.Target != nil {
				target = fmt.Sprintf("%d%%", *e.Target)
			}
			tag := ""
			if e.Severity == "critical" {
				tag = "  [critical]"
			}
			b.WriteString(fmt.Sprintf("%-10s %-14s %-12s %-5s %-30s%s\n",
				ts, strings.ToUpper(e.EventType), truncate(e.Channel, 12), target,
				truncate(e.Reason, 30), tag))
		}
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{fmt.Sprintf("%d transitions", s.Transitions)}
	if s.WriteCount > 0 {
		parts = append(parts, fmt.Sprintf("%d write", s.WriteCount))
	}
	if s.DenyCount > 0 {
		parts = append(parts, fmt.Sprintf("%d deny", s.DenyCount))
	}
	if s.LockoutCount > 0 {
		parts = append(parts, fmt.Sprintf("%d lockout", s.LockoutCount))
	}
	return fmt.Sprintf("Summary: %s | Final state: %s\n", strings.Join(parts, ", "), s.FinalState)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

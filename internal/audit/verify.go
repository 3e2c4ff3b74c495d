package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/fanguard/internal/model"
)

// VerifyResult holds the outcome of verifying an exported audit log.
// Sessions maps each session ID to the state its last transition entered.
type VerifyResult struct {
	Valid       bool              `json:"valid"`
	Lines       int               `json:"lines"`
	Transitions int               `json:"transitions"`
	Events      int               `json:"events"`
	Sessions    map[string]string `json:"sessions,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorLine   int               `json:"error_line,omitempty"`
}

// Verify reads a JSONL audit log and checks two things: the hash chain is
// unbroken, and every session's transitions form a continuous state
// sequence (each From is the previous To, events carry the state they
// were recorded in). The first broken line is reported.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	res := VerifyResult{Sessions: map[string]string{}}
	var prevLine []byte

	fail := func(line int, format string, args ...any) VerifyResult {
		return VerifyResult{Error: fmt.Sprintf(format, args...), ErrorLine: line}
	}

	for scanner.Scan() {
		res.Lines++
		// scanner reuses its buffer
		line := append([]byte(nil), scanner.Bytes()...)

		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fail(res.Lines, "parse error: %v", err)
		}

		want := GenesisHash
		if res.Lines > 1 {
			want = HashLine(prevLine)
		}
		if entry.PrevHash != want {
			if res.Lines == 1 {
				return fail(1, "first entry prev_hash is %q, expected genesis hash", entry.PrevHash)
			}
			return fail(res.Lines, "hash mismatch: expected %s, got %s", want, entry.PrevHash)
		}
		prevLine = line

		current, seen := res.Sessions[entry.SessionID]
		switch entry.Kind {
		case KindTransition:
			to := model.SafetyState(entry.To)
			if !to.Valid() {
				return fail(res.Lines, "transition to unknown state %q", entry.To)
			}
			if entry.State != entry.To {
				return fail(res.Lines, "transition state %q does not match to %q", entry.State, entry.To)
			}
			if seen && entry.From != current {
				return fail(res.Lines, "session %s: transition from %q, but last state was %q",
					entry.SessionID, entry.From, current)
			}
			res.Sessions[entry.SessionID] = entry.To
			res.Transitions++
		case KindEvent:
			if entry.EventType == "" {
				return fail(res.Lines, "event entry without event_type")
			}
			if seen && entry.State != current {
				return fail(res.Lines, "session %s: %s event in state %q, but last state was %q",
					entry.SessionID, entry.EventType, entry.State, current)
			}
			res.Events++
		default:
			return fail(res.Lines, "unknown entry kind %q", entry.Kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	res.Valid = true
	return res
}

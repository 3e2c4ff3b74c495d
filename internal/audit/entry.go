package audit

// Entry kinds.
const (
	KindTransition = "transition"
	KindEvent      = "event"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type AuditEntry struct {
	Timestamp  string `json:"ts"`
	SessionID  string `json:"session_id"`
	Kind       string `json:"kind"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	Severity   string `json:"severity,omitempty"`
	State      string `json:"state"`
	Reason     string `json:"reason"`
	Channel    string `json:"channel,omitempty"`
	Target     *int   `json:"target,omitempty"`
	Source     string `json:"source,omitempty"`
	PolicyHash string `json:"policy_hash"`
	PrevHash   string `json:"prev_hash"`
}

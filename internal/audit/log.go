package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Log is an append-only JSONL audit log with SHA-256 hash chaining.
// Each entry's prev_hash is the hash of the previous entry's JSON line,
// forming a tamper-evident chain.
type Log struct {
	path       string
	file       *os.File
	prevHash   string
	policyHash string
	mu         sync.Mutex
}

// Open opens (or creates) an audit log file for appending.
// If the file already exists, it reads the last line to recover the chain tail.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash

	// Read existing file to find chain tail
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("audit: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("audit: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
	}, nil
}

// SetPolicyHash stamps subsequent entries with the hash of the active policy file.
func (l *Log) SetPolicyHash(hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policyHash = hash
}

// Path returns the file backing the log.
func (l *Log) Path() string { return l.path }

// Record appends an AuditEntry to the log with hash chaining.
// It sets the entry's PrevHash, PolicyHash and Timestamp (if empty),
// marshals to JSON, writes the line, and syncs to disk.
func (l *Log) Record(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	if entry.PolicyHash == "" {
		entry.PolicyHash = l.policyHash
	}
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// RecordTransition appends a safety transition.
func (l *Log) RecordTransition(sessionID string, t model.SafetyTransition) error {
	return l.Record(AuditEntry{
		Timestamp: t.Timestamp.UTC().Format(TimestampFormat),
		SessionID: sessionID,
		Kind:      KindTransition,
		From:      string(t.From),
		To:        string(t.To),
		State:     string(t.To),
		Reason:    t.Reason,
	})
}

// RecordEvent appends an audit event, flattening its metadata.
func (l *Log) RecordEvent(sessionID string, e model.AuditEvent) error {
	entry := AuditEntry{
		Timestamp: e.Timestamp.UTC().Format(TimestampFormat),
		SessionID: sessionID,
		Kind:      KindEvent,
		EventType: string(e.Type),
		Severity:  string(e.Severity),
		State:     string(e.State),
		Reason:    e.Message,
	}
	if ch, ok := e.Metadata["channel"].(string); ok {
		entry.Channel = ch
	}
	if target, ok := helper.ToInt(e.Metadata["target"]); ok {
		entry.Target = &target
	}
	if src, ok := e.Metadata["source"].(string); ok {
		entry.Source = src
	}
	if reason, ok := e.Metadata["reason"].(string); ok {
		entry.Reason = reason
	}
	return l.Record(entry)
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

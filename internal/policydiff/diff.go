package policydiff

import (
	"fmt"
	"slices"

	"github.com/ppiankov/fanguard/internal/policy"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// SignatureChange represents a conflict signature addition or removal.
type SignatureChange struct {
	Type      string `json:"type"` // "added", "removed"
	Signature string `json:"signature"`
}

// DiffResult holds the comparison of two policy configs.
type DiffResult struct {
	OldPath          string            `json:"old_path"`
	NewPath          string            `json:"new_path"`
	Changes          []Change          `json:"changes"`
	SignatureChanges []SignatureChange `json:"signature_changes"`
	HasChanges       bool              `json:"has_changes"`
}

// Diff compares two configs and returns the differences.
func Diff(old, new *policy.Config) *DiffResult {
	r := &DiffResult{}

	// Bounds: a higher floor or lower ceiling narrows what writes can reach.
	diffInt(r, "min_target", old.MinTarget, new.MinTarget, true)
	diffInt(r, "max_target", old.MaxTarget, new.MaxTarget, false)

	if old.BalancedTarget != new.BalancedTarget {
		comment := "cooler"
		if new.BalancedTarget < old.BalancedTarget {
			comment = "quieter"
		}
		r.Changes = append(r.Changes, Change{
			Field:   "balanced_target",
			Old:     fmt.Sprintf("%d", old.BalancedTarget),
			New:     fmt.Sprintf("%d", new.BalancedTarget),
			Comment: comment,
		})
	}

	if old.AuditLogPath != new.AuditLogPath {
		r.Changes = append(r.Changes, Change{
			Field: "audit_log",
			Old:   old.AuditLogPath,
			New:   new.AuditLogPath,
		})
	}

	diffSignatures(r, old.ConflictSignatures, new.ConflictSignatures)

	r.HasChanges = len(r.Changes) > 0 || len(r.SignatureChanges) > 0
	return r
}

func diffInt(r *DiffResult, field string, old, new int, higherIsNarrower bool) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     fmt.Sprintf("%d", old),
			New:     fmt.Sprintf("%d", new),
			Comment: rangeComment(old, new, higherIsNarrower),
		})
	}
}

func rangeComment(old, new int, higherIsNarrower bool) string {
	if (new > old) == higherIsNarrower {
		return "narrower"
	}
	return "wider"
}

func diffSignatures(r *DiffResult, oldSigs, newSigs []string) {
	for _, s := range newSigs {
		if !slices.Contains(oldSigs, s) {
			r.SignatureChanges = append(r.SignatureChanges, SignatureChange{Type: "added", Signature: s})
		}
	}
	for _, s := range oldSigs {
		if !slices.Contains(newSigs, s) {
			r.SignatureChanges = append(r.SignatureChanges, SignatureChange{Type: "removed", Signature: s})
		}
	}
}

// DiffFiles loads two policy files and compares them.
func DiffFiles(oldPath, newPath string) (*DiffResult, error) {
	oldCfg, err := policy.LoadConfig(oldPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", oldPath, err)
	}
	newCfg, err := policy.LoadConfig(newPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", newPath, err)
	}
	r := Diff(oldCfg, newCfg)
	r.OldPath = oldPath
	r.NewPath = newPath
	return r, nil
}

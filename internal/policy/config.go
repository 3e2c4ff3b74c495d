package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/fanguard/internal/conflict"
)

// DefaultBalancedTarget is the duty cycle applied by the balanced profile.
const DefaultBalancedTarget = 50

// Config holds the configurable engine parameters.
type Config struct {
	MinTarget          int      `yaml:"min_target"`
	MaxTarget          int      `yaml:"max_target"`
	BalancedTarget     int      `yaml:"balanced_target"`
	ConflictSignatures []string `yaml:"conflict_signatures"`
	AuditLogPath       string   `yaml:"audit_log"`
}

// DefaultConfig returns the built-in bounds.
func DefaultConfig() *Config {
	return &Config{
		MinTarget:          0,
		MaxTarget:          100,
		BalancedTarget:     DefaultBalancedTarget,
		ConflictSignatures: append([]string(nil), conflict.DefaultSignatures...),
	}
}

// Validate rejects configurations the engine cannot honour.
func (c *Config) Validate() error {
	if c.MinTarget > c.MaxTarget {
		return fmt.Errorf("min_target %d exceeds max_target %d", c.MinTarget, c.MaxTarget)
	}
	if c.BalancedTarget < c.MinTarget || c.BalancedTarget > c.MaxTarget {
		return fmt.Errorf("balanced_target %d outside [%d, %d]", c.BalancedTarget, c.MinTarget, c.MaxTarget)
	}
	return nil
}

// Clamp bounds x to [MinTarget, MaxTarget].
func (c *Config) Clamp(x int) int {
	return max(c.MinTarget, min(c.MaxTarget, x))
}

// DefaultPath returns ~/.fanguard/policy.yaml, or "" without a home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fanguard", "policy.yaml")
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to ~/.fanguard/policy.yaml.
// Missing file returns defaults. Invalid YAML or bounds return an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 of the raw
// bytes on disk. When no file exists the hash is that of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read policy config: %w", err)
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid policy config: %w", err)
	}
	return cfg, hash, nil
}

// DefaultConfigYAML returns a commented YAML string for `fanguard init`.
func DefaultConfigYAML() string {
	return `# fanguard policy configuration
#
# Requested targets are clamped to [min_target, max_target] before any
# privileged write. Out-of-range requests are never rejected, only bounded.
min_target: 0
max_target: 100

# Duty cycle applied by the balanced profile.
balanced_target: 50

# Process-name fragments of fan controllers that contend with fanguard.
# Any match blocks startup validation.
conflict_signatures:
  - fancontrol
  - thermald
  - asus_fan
  - liquidctl
  - coolercontrol
  - nvidia-settings

# Optional hash-chained JSONL export of transitions and audit events.
# audit_log: ~/.fanguard/audit.jsonl
`
}

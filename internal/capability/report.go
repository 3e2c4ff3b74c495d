// Package capability loads and discovers backend capability reports.
package capability

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/fanguard/internal/model"
)

// Load reads a capability report from a YAML file.
func Load(path string) (model.CapabilityReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CapabilityReport{}, fmt.Errorf("read capability report %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return model.CapabilityReport{}, fmt.Errorf("capability report %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a YAML capability report and fills unset fields with defaults.
func Parse(data []byte) (model.CapabilityReport, error) {
	var r model.CapabilityReport
	if err := yaml.Unmarshal(data, &r); err != nil {
		return model.CapabilityReport{}, fmt.Errorf("parse: %w", err)
	}
	ApplyDefaults(&r)
	if err := Validate(r); err != nil {
		return model.CapabilityReport{}, err
	}
	return r, nil
}

// ApplyDefaults sets the verification window, certification level and
// empty collections on a report that left them out.
func ApplyDefaults(r *model.CapabilityReport) {
	if r.VerificationWindowMS == 0 {
		r.VerificationWindowMS = model.DefaultVerificationWindowMS
	}
	if r.CertificationLevel == "" {
		r.CertificationLevel = model.DefaultCertificationLevel
	}
	if r.Channels == nil {
		r.Channels = map[string]model.ChannelCaps{}
	}
	if r.Reasons == nil {
		r.Reasons = []string{}
	}
}

// Validate rejects reports that cannot describe a real backend.
// An empty channel map is allowed; the engine refuses it at startup.
func Validate(r model.CapabilityReport) error {
	if r.VerificationWindowMS < 0 {
		return fmt.Errorf("verification_window_ms must not be negative, got %d", r.VerificationWindowMS)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0, 1], got %g", r.Confidence)
	}
	for name := range r.Channels {
		if name == "" {
			return fmt.Errorf("channel name must not be empty")
		}
	}
	return nil
}

// Marshal renders a report as YAML.
func Marshal(r model.CapabilityReport) ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal capability report: %w", err)
	}
	return data, nil
}

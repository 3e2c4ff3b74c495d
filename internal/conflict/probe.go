package conflict

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/ppiankov/fanguard/internal/model"
)

// DefaultSignatures are process-name fragments of third-party fan
// controllers that would contend with our writes.
var DefaultSignatures = []string{
	"fancontrol",
	"thermald",
	"asus_fan",
	"liquidctl",
	"coolercontrol",
	"nvidia-settings",
}

// Probe matches a process listing against known signatures.
type Probe struct {
	signatures []string
	lister     Lister
	logger     *slog.Logger
}

// Option configures a Probe.
type Option func(*Probe)

// WithLister replaces the process source used when Detect gets nil lines.
func WithLister(l Lister) Option {
	return func(p *Probe) { p.lister = l }
}

// WithLogger sets the logger used to report an unavailable process source.
func WithLogger(l *slog.Logger) Option {
	return func(p *Probe) { p.logger = l }
}

// NewProbe creates a Probe. Empty signatures select DefaultSignatures.
func NewProbe(signatures []string, opts ...Option) *Probe {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	lowered := make([]string, 0, len(signatures))
	for _, s := range signatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			lowered = append(lowered, s)
		}
	}
	p := &Probe{
		signatures: lowered,
		lister:     DefaultLister(),
		logger:     slog.Default().With("component", "conflict"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Signatures returns the configured signatures.
func (p *Probe) Signatures() []string {
	return append([]string(nil), p.signatures...)
}

// Detect reports which signatures appear in lines. A nil slice reads the
// live process list; if that fails the report is inactive.
func (p *Probe) Detect(lines []string) model.ConflictReport {
	if lines == nil {
		var err error
		lines, err = p.lister.List()
		if err != nil {
			p.logger.Warn("process listing unavailable, assuming no conflicts", "error", err)
			lines = nil
		}
	}

	lowered := make([]string, len(lines))
	for i, l := range lines {
		lowered[i] = strings.ToLower(l)
	}

	seen := make(map[string]bool)
	for _, sig := range p.signatures {
		for _, line := range lowered {
			if strings.Contains(line, sig) {
				seen[sig] = true
				break
			}
		}
	}

	matches := make([]string, 0, len(seen))
	for sig := range seen {
		matches = append(matches, sig)
	}
	sort.Strings(matches)

	return model.ConflictReport{Active: len(matches) > 0, Matches: matches}
}

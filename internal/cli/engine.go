package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/ppiankov/fanguard/internal/audit"
	"github.com/ppiankov/fanguard/internal/capability"
	"github.com/ppiankov/fanguard/internal/conflict"
	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
	"github.com/ppiankov/fanguard/internal/policy"
)

// Backends selectable with --backend.
const (
	backendSim     = "sim"
	backendSysfs   = "sysfs"
	backendProcess = "process"
)

// engineFlags are shared by every command that drives a live engine.
type engineFlags struct {
	backend       string
	capabilities  string
	sysRoot       string
	helperPath    string
	helperTimeout time.Duration
	auditLog      string
}

func (f *engineFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.backend, "backend", backendSim, "Command backend (sim|sysfs|process)")
	fs.StringVar(&f.capabilities, "capabilities", "", "Capability report YAML (default: discover from sysfs, or a simulated cpu_fan)")
	fs.StringVar(&f.sysRoot, "sys-root", "/sys", "sysfs root for hwmon discovery")
	fs.StringVar(&f.helperPath, "helper", "", "Privileged helper executable for the process backend")
	fs.DurationVar(&f.helperTimeout, "helper-timeout", 5*time.Second, "Timeout for one helper invocation")
	fs.StringVar(&f.auditLog, "audit-log", "", "Hash-chained JSONL audit export (overrides audit_log in policy)")
}

// session is a started and validated engine plus the resources it holds.
type session struct {
	engine    *policy.Engine
	config    *policy.Config
	report    model.CapabilityReport
	validated bool
	conflicts model.ConflictReport
	auditLog  *audit.Log
	auditPath string
}

func (s *session) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

func simulatedReport() model.CapabilityReport {
	r := model.NewCapabilityReport(backendSim, map[string]model.ChannelCaps{
		"cpu_fan": {RestoreAutoSupported: true, WriteSupported: true},
	})
	r.Confidence = 1.0
	r.Reasons = []string{"simulated backend"}
	return r
}

func (f *engineFlags) resolve() (model.CapabilityReport, helper.Executor, policy.Validator, error) {
	var (
		report model.CapabilityReport
		paths  map[string]string
	)
	if f.backend != backendSim {
		d, err := capability.Discover(f.sysRoot)
		if err != nil {
			return report, nil, nil, err
		}
		report, paths = d.Report, d.Paths
	} else {
		report = simulatedReport()
	}
	if f.capabilities != "" {
		r, err := capability.Load(expandHome(f.capabilities))
		if err != nil {
			return report, nil, nil, err
		}
		report = r
	}

	switch f.backend {
	case backendSim:
		return report, helper.Simulated{}, policy.ResultValidator, nil
	case backendSysfs:
		for _, name := range report.ChannelNames() {
			if _, ok := paths[name]; !ok {
				return report, nil, nil, fmt.Errorf("channel %q has no pwm file under %s", name, f.sysRoot)
			}
		}
		return report, helper.NewSysfs(paths), policy.ReadbackValidator{Tolerance: 1}, nil
	case backendProcess:
		if f.helperPath == "" {
			return report, nil, nil, fmt.Errorf("--helper is required for the process backend")
		}
		return report, &helper.Process{Path: f.helperPath, Timeout: f.helperTimeout}, policy.ResultValidator, nil
	default:
		return report, nil, nil, fmt.Errorf("unknown backend %q (want sim, sysfs or process)", f.backend)
	}
}

// start builds the engine, runs the startup guard and validates it once.
func (f *engineFlags) start() (*session, error) {
	cfg, hash, err := policy.LoadConfigWithHash(expandHome(policyPath))
	if err != nil {
		return nil, err
	}
	report, exec, validator, err := f.resolve()
	if err != nil {
		return nil, err
	}

	s := &session{config: cfg, report: report}
	opts := []policy.Option{
		policy.WithConfig(cfg),
		policy.WithValidator(validator),
		policy.WithDetector(conflict.NewProbe(cfg.ConflictSignatures)),
		policy.WithLogger(slog.Default().With("component", "policy")),
	}

	s.auditPath = f.auditLog
	if s.auditPath == "" {
		s.auditPath = cfg.AuditLogPath
	}
	s.auditPath = expandHome(s.auditPath)
	if s.auditPath != "" {
		s.auditLog, err = audit.Open(s.auditPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		s.auditLog.SetPolicyHash(hash)
		opts = append(opts, policy.WithSink(s.auditLog))
	}

	s.engine, err = policy.New(helper.NewChannel(exec), opts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.engine.Startup()
	s.validated, s.conflicts = s.engine.ValidateStartupDetect(report, nil)
	return s, nil
}

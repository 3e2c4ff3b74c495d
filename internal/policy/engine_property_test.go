package policy

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
)

// coin cycles through a fixed sequence of outcomes.
type coin struct {
	flips []bool
	i     int
}

func (c *coin) next() bool {
	if len(c.flips) == 0 {
		return true
	}
	v := c.flips[c.i%len(c.flips)]
	c.i++
	return v
}

const (
	opStartup = iota
	opValidate
	opValidateConflict
	opWrite
	opWriteUnknown
	opBalanced
	opCount
)

type harness struct {
	engine  *Engine
	channel *helper.Channel
}

func newHarness(t *testing.T, execFlips, validFlips []bool) harness {
	exec := &coin{flips: execFlips}
	valid := &coin{flips: validFlips}
	ch := helper.NewChannel(helper.ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
		return model.WriteResult{Command: env.Command, Success: exec.next()}, nil
	}))
	e, err := New(ch, WithValidator(ValidatorFunc(func(r model.WriteResult) bool {
		return r.Success && valid.next()
	})))
	require.NoError(t, err)
	return harness{engine: e, channel: ch}
}

func (h harness) apply(op, target int) (model.ControlDecision, bool) {
	e := h.engine
	switch op {
	case opStartup:
		e.Startup()
	case opValidate:
		e.ValidateStartup(capabilityReport(), noConflicts())
	case opValidateConflict:
		e.ValidateStartup(capabilityReport(), model.ConflictReport{Active: true, Matches: []string{"thermald"}})
	case opWrite:
		return e.RequestWrite("cpu_fan", target, ""), true
	case opWriteUnknown:
		return e.RequestWrite("gpu_9", target, ""), true
	case opBalanced:
		return e.ApplyBalancedProfile("cpu_fan", target), true
	}
	return model.ControlDecision{}, false
}

func opsGen() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, opCount-1))
}

func targetsGen() gopter.Gen {
	return gen.SliceOf(gen.IntRange(-1000, 1000))
}

func targetAt(targets []int, i int) int {
	if len(targets) == 0 {
		return 50
	}
	return targets[i%len(targets)]
}

func properties(t *testing.T) *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return gopter.NewProperties(parameters)
}

func TestGateInvariantProperty(t *testing.T) {
	properties := properties(t)

	properties.Property("writes are denied when locked out, unvalidated or read-only", prop.ForAll(
		func(ops, targets []int, execFlips, validFlips []bool) bool {
			h := newHarness(t, execFlips, validFlips)
			for i, op := range ops {
				before := h.engine.Status()
				d, isWrite := h.apply(op, targetAt(targets, i))
				if !isWrite {
					continue
				}
				switch {
				case before.State == model.UnsafeUnknown:
					if d.Action != model.Deny || d.Reason != model.LockoutAsserted {
						return false
					}
				case !before.Validated || before.State == model.ReadOnly:
					if d.Action != model.Deny || d.Reason != model.WriteRejectedPolicy {
						return false
					}
				}
			}
			return true
		},
		opsGen(), targetsGen(), gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestAuthorityMappingProperty(t *testing.T) {
	table := map[model.SafetyState]model.Authority{
		model.SafeControllable: model.AuthorityManual,
		model.ReadOnly:         model.AuthorityAuto,
		model.DegradedSafe:     model.AuthorityFallback,
		model.UnsafeUnknown:    model.AuthorityLocked,
	}
	properties := properties(t)

	properties.Property("authority always follows the fixed state table", prop.ForAll(
		func(ops, targets []int, execFlips, validFlips []bool) bool {
			h := newHarness(t, execFlips, validFlips)
			for i, op := range ops {
				h.apply(op, targetAt(targets, i))
				s := h.engine.Status()
				if !s.Started {
					continue
				}
				if s.Authority != table[s.State] || h.engine.Authority() != table[s.State] {
					return false
				}
			}
			return true
		},
		opsGen(), targetsGen(), gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestClampProperty(t *testing.T) {
	cfg := DefaultConfig()
	properties := properties(t)

	properties.Property("clamp is idempotent and bounded", prop.ForAll(
		func(x int) bool {
			c := cfg.Clamp(x)
			return cfg.Clamp(c) == c && c >= cfg.MinTarget && c <= cfg.MaxTarget
		},
		gen.Int(),
	))

	properties.Property("decision targets stay in bounds", prop.ForAll(
		func(ops, targets []int, execFlips, validFlips []bool) bool {
			h := newHarness(t, execFlips, validFlips)
			for i, op := range ops {
				d, isWrite := h.apply(op, targetAt(targets, i))
				if isWrite && (d.Target < cfg.MinTarget || d.Target > cfg.MaxTarget) {
					return false
				}
			}
			return true
		},
		opsGen(), targetsGen(), gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestLadderDeterminismProperty(t *testing.T) {
	properties := properties(t)

	properties.Property("restore_auto precedes emergency cooling, which runs only if restore did not recover", prop.ForAll(
		func(ops, targets []int, execFlips, validFlips []bool) bool {
			h := newHarness(t, execFlips, validFlips)
			for i, op := range ops {
				before := len(h.channel.Dispatched())
				d, isWrite := h.apply(op, targetAt(targets, i))
				if !isWrite {
					continue
				}
				sent := h.channel.Dispatched()[before:]

				if !d.FallbackExecuted {
					if len(sent) > 1 {
						return false
					}
					continue
				}
				if len(sent) < 2 || sent[0] != model.SetChannelTarget || sent[1] != model.RestoreAuto {
					return false
				}
				recovered := d.Reason == model.RestoreAutoRecovered
				if recovered && len(sent) != 2 {
					return false
				}
				if !recovered && (len(sent) != 3 || sent[2] != model.SetEmergencyCooling) {
					return false
				}
				if !recovered && d.State != model.UnsafeUnknown {
					return false
				}
				if recovered && d.State != model.ReadOnly {
					return false
				}
			}
			return true
		},
		opsGen(), targetsGen(), gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestAppendOnlyLogsProperty(t *testing.T) {
	properties := properties(t)

	properties.Property("transition and audit logs only grow, prefixes unchanged", prop.ForAll(
		func(ops, targets []int, execFlips, validFlips []bool) bool {
			h := newHarness(t, execFlips, validFlips)
			prevT := h.engine.Transitions()
			prevA := h.engine.AuditLog()
			for i, op := range ops {
				h.apply(op, targetAt(targets, i))
				curT := h.engine.Transitions()
				curA := h.engine.AuditLog()
				if len(curT) < len(prevT) || len(curA) < len(prevA) {
					return false
				}
				if !reflect.DeepEqual(curT[:len(prevT)], prevT) || !reflect.DeepEqual(curA[:len(prevA)], prevA) {
					return false
				}
				prevT, prevA = curT, curA
			}
			return true
		},
		opsGen(), targetsGen(), gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

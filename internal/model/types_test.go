package model

import "testing"

func TestAuthorityTable(t *testing.T) {
	want := map[SafetyState]Authority{
		SafeControllable: AuthorityManual,
		ReadOnly:         AuthorityAuto,
		DegradedSafe:     AuthorityFallback,
		UnsafeUnknown:    AuthorityLocked,
	}
	if len(want) != len(AllStates) {
		t.Fatalf("authority table covers %d states, AllStates has %d", len(want), len(AllStates))
	}
	for _, s := range AllStates {
		if got := s.Authority(); got != want[s] {
			t.Errorf("%s: expected %s, got %s", s, want[s], got)
		}
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
}

func TestUnknownStateIsLocked(t *testing.T) {
	var s SafetyState
	if s.Valid() {
		t.Fatal("zero state must not be valid")
	}
	if s.Authority() != AuthorityLocked {
		t.Errorf("expected LOCKED for zero state, got %s", s.Authority())
	}
	if s.String() != "UNINITIALIZED" {
		t.Errorf("expected UNINITIALIZED, got %s", s.String())
	}
}

func TestUnmappedStatePanics(t *testing.T) {
	for _, s := range []SafetyState{"RUNNING", "safe_controllable", "READ_ONLY "} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%q: expected panic for unmapped state", string(s))
				}
			}()
			s.Authority()
		}()
		if s.Valid() {
			t.Errorf("%q should not be valid", string(s))
		}
	}
}

func TestAllStatesDistinct(t *testing.T) {
	seen := map[SafetyState]bool{}
	for _, s := range AllStates {
		if seen[s] {
			t.Errorf("%s listed twice", s)
		}
		seen[s] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 states, got %d", len(seen))
	}
}

func TestCommandAllowList(t *testing.T) {
	for _, c := range []Command{SetChannelTarget, RestoreAuto, SetEmergencyCooling} {
		if !c.Allowed() {
			t.Errorf("%s should be allowed", c)
		}
	}
	for _, c := range []Command{"", "reboot", "SET_CHANNEL_TARGET", "restore_auto "} {
		if c.Allowed() {
			t.Errorf("%q should not be allowed", c)
		}
	}
}

func TestNewCapabilityReportDefaults(t *testing.T) {
	r := NewCapabilityReport("sim", map[string]ChannelCaps{"cpu_fan": {RestoreAutoSupported: true}})
	if r.VerificationWindowMS != 1000 {
		t.Errorf("expected 1000ms window, got %d", r.VerificationWindowMS)
	}
	if r.VerificationWindow().Seconds() != 1 {
		t.Errorf("expected 1s window, got %s", r.VerificationWindow())
	}
	if r.CertificationLevel != "uncertified" {
		t.Errorf("expected uncertified, got %s", r.CertificationLevel)
	}
	if !r.HasChannel("cpu_fan") || r.HasChannel("gpu_9") {
		t.Error("channel membership wrong")
	}
}

func TestCapabilityCloneIsDeep(t *testing.T) {
	r := NewCapabilityReport("sim", map[string]ChannelCaps{"cpu_fan": {RestoreAutoSupported: true}})
	r.Reasons = []string{"probe"}

	c := r.Clone()
	r.Channels["gpu_0"] = ChannelCaps{}
	r.Reasons[0] = "changed"

	if c.HasChannel("gpu_0") {
		t.Error("clone shares channel map")
	}
	if c.Reasons[0] != "probe" {
		t.Error("clone shares reasons slice")
	}
}

func TestChannelNamesSorted(t *testing.T) {
	r := NewCapabilityReport("sim", map[string]ChannelCaps{"b": {}, "a": {}, "c": {}})
	names := r.ChannelNames()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("expected [a b c], got %v", names)
	}
}

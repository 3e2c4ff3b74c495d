package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fanguard/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeFile(t, path, `
backend_id: sim
channels:
  cpu_fan:
    restore_auto_supported: true
    write_supported: true
confidence: 1.0
`)

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", r.BackendID)
	assert.Equal(t, model.DefaultVerificationWindowMS, r.VerificationWindowMS)
	assert.Equal(t, model.DefaultCertificationLevel, r.CertificationLevel)
	assert.True(t, r.Channels["cpu_fan"].RestoreAutoSupported)
	assert.NotNil(t, r.Reasons)
}

func TestLoadKeepsExplicitFields(t *testing.T) {
	r, err := Parse([]byte(`
backend_id: lab
channels: {}
verification_window_ms: 250
certification_level: bench
reasons: [manual]
`))
	require.NoError(t, err)
	assert.Equal(t, 250, r.VerificationWindowMS)
	assert.Equal(t, "bench", r.CertificationLevel)
	assert.Equal(t, []string{"manual"}, r.Reasons)
	assert.Empty(t, r.Channels)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	for name, doc := range map[string]string{
		"bad yaml":        "channels: [",
		"bad confidence":  "confidence: 1.5",
		"negative window": "verification_window_ms: -1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	r := model.NewCapabilityReport("sim", map[string]model.ChannelCaps{"cpu_fan": {RestoreAutoSupported: true}})
	data, err := Marshal(r)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func fakeHwmon(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	h0 := filepath.Join(root, "class", "hwmon", "hwmon0")
	writeFile(t, filepath.Join(h0, "name"), "nct6775\n")
	writeFile(t, filepath.Join(h0, "pwm1"), "128\n")
	writeFile(t, filepath.Join(h0, "pwm1_enable"), "2\n")
	writeFile(t, filepath.Join(h0, "pwm2"), "90\n")
	writeFile(t, filepath.Join(h0, "pwm2_mode"), "1\n")

	h1 := filepath.Join(root, "class", "hwmon", "hwmon1")
	writeFile(t, filepath.Join(h1, "name"), "coretemp\n")
	writeFile(t, filepath.Join(h1, "temp1_input"), "42000\n")
	return root
}

func TestDiscoverHwmon(t *testing.T) {
	root := fakeHwmon(t)

	d, err := Discover(root)
	require.NoError(t, err)

	r := d.Report
	assert.Equal(t, HwmonBackendID, r.BackendID)
	assert.Equal(t, []string{"nct6775/pwm1", "nct6775/pwm2"}, r.ChannelNames())
	assert.Equal(t, model.ChannelCaps{WriteSupported: true, RestoreAutoSupported: true}, r.Channels["nct6775/pwm1"])
	assert.Equal(t, model.ChannelCaps{WriteSupported: true}, r.Channels["nct6775/pwm2"])
	assert.InDelta(t, 0.5, r.Confidence, 1e-9)
	assert.Len(t, r.Reasons, 2)
	assert.Equal(t, filepath.Join(root, "class", "hwmon", "hwmon0", "pwm1"), d.Paths["nct6775/pwm1"])
}

func TestDiscoverDuplicateNamesFallBackToDir(t *testing.T) {
	root := t.TempDir()
	for _, dev := range []string{"hwmon0", "hwmon1"} {
		dir := filepath.Join(root, "class", "hwmon", dev)
		writeFile(t, filepath.Join(dir, "name"), "it87\n")
		writeFile(t, filepath.Join(dir, "pwm1"), "0\n")
		writeFile(t, filepath.Join(dir, "pwm1_enable"), "2\n")
	}

	d, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"hwmon1/pwm1", "it87/pwm1"}, d.Report.ChannelNames())
	assert.InDelta(t, 1.0, d.Report.Confidence, 1e-9)
}

func TestDiscoverNoChannels(t *testing.T) {
	d, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, d.Report.Channels)
	assert.Zero(t, d.Report.Confidence)
	assert.Equal(t, []string{"no pwm channels found"}, d.Report.Reasons)
}

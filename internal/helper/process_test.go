package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fanguard/internal/model"
)

func TestProcessParsesHelperOutput(t *testing.T) {
	p := &Process{
		Path:    "sh",
		Args:    []string{"-c", `cat >/dev/null; echo '{"command":"restore_auto","success":true,"detail":"ok"}'`},
		Timeout: 5 * time.Second,
	}

	res, err := p.Execute(model.CommandEnvelope{Command: model.RestoreAuto, Payload: map[string]any{"scope": "all"}})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.RestoreAuto, res.Command)
	assert.Equal(t, "ok", res.Detail)
}

func TestProcessNonZeroExit(t *testing.T) {
	p := &Process{Path: "sh", Args: []string{"-c", "echo denied >&2; exit 3"}}

	res, err := p.Execute(model.CommandEnvelope{Command: model.RestoreAuto})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.WriteFailedBackend, res.ErrorCode)
	assert.Contains(t, res.Detail, "denied")
}

func TestProcessGarbageOutput(t *testing.T) {
	p := &Process{Path: "sh", Args: []string{"-c", "echo not-json"}}

	res, err := p.Execute(model.CommandEnvelope{Command: model.SetEmergencyCooling})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.WriteFailedBackend, res.ErrorCode)
}

func TestProcessTimeout(t *testing.T) {
	p := &Process{
		Path:    "sh",
		Args:    []string{"-c", "exec sleep 10"},
		Timeout: 100 * time.Millisecond,
	}

	start := time.Now()
	res, err := p.Execute(model.CommandEnvelope{Command: model.SetEmergencyCooling, Payload: map[string]any{"scope": "all"}})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, model.SetEmergencyCooling, res.Command)
	assert.Equal(t, model.WriteFailedBackend, res.ErrorCode)
	assert.Contains(t, res.Detail, "timed out")
}

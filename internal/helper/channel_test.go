package helper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fanguard/internal/model"
)

func TestRejectsCommandOutsideAllowList(t *testing.T) {
	called := false
	ch := NewChannel(ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
		called = true
		return model.WriteResult{Success: true}, nil
	}))

	res := ch.Execute(model.CommandEnvelope{Command: "reboot"})

	assert.False(t, called, "executor must not run for rejected commands")
	assert.False(t, res.Success)
	assert.Equal(t, model.WriteRejectedPolicy, res.ErrorCode)
	assert.Equal(t, model.Command("reboot"), res.Command)
	assert.Empty(t, ch.Dispatched())
}

func TestDefaultExecutorIsSimulated(t *testing.T) {
	ch := NewChannel(nil)

	res := ch.Execute(model.CommandEnvelope{
		Command: model.SetChannelTarget,
		Payload: map[string]any{"channel": "cpu_fan", "target": 45},
	})

	require.True(t, res.Success)
	assert.Equal(t, "simulated helper execution", res.Detail)
	assert.Equal(t, 45, res.Readback["target"])
	assert.Equal(t, 45, res.Readback["requested"])
	payload, ok := res.Readback["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cpu_fan", payload["channel"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   model.Reason
		detail string
	}{
		{"EACCES", &fs.PathError{Op: "open", Path: "/sys/pwm1", Err: syscall.EACCES}, model.WriteFailedBackend, "permission error"},
		{"EPERM", syscall.EPERM, model.WriteFailedBackend, "permission error"},
		{"ErrPermission", fmt.Errorf("wrap: %w", os.ErrPermission), model.WriteFailedBackend, "permission error"},
		{"ENODEV", &fs.PathError{Op: "write", Path: "/sys/pwm1", Err: syscall.ENODEV}, model.ValidationFailed, "os error"},
		{"ENOENT", &fs.PathError{Op: "open", Path: "/sys/pwm1", Err: syscall.ENOENT}, model.ValidationFailed, "os error"},
		{"EIO", syscall.EIO, model.WriteFailedBackend, "os error"},
		{"generic", errors.New("boom"), model.WriteFailedBackend, "unexpected helper error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChannel(ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
				return model.WriteResult{}, tt.err
			}))
			res := ch.Execute(model.CommandEnvelope{Command: model.RestoreAuto})
			assert.False(t, res.Success)
			assert.Equal(t, model.RestoreAuto, res.Command)
			assert.Equal(t, tt.want, res.ErrorCode)
			assert.Contains(t, res.Detail, tt.detail)
		})
	}
}

func TestPanicBecomesBackendFailure(t *testing.T) {
	ch := NewChannel(ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
		panic("driver exploded")
	}))

	res := ch.Execute(model.CommandEnvelope{Command: model.SetEmergencyCooling})

	assert.False(t, res.Success)
	assert.Equal(t, model.WriteFailedBackend, res.ErrorCode)
	assert.Equal(t, model.SetEmergencyCooling, res.Command)
	assert.Contains(t, res.Detail, "driver exploded")
}

func TestDispatchedOrder(t *testing.T) {
	ch := NewChannel(nil)
	ch.Execute(model.CommandEnvelope{Command: model.SetChannelTarget})
	ch.Execute(model.CommandEnvelope{Command: "nope"})
	ch.Execute(model.CommandEnvelope{Command: model.RestoreAuto})

	assert.Equal(t, []model.Command{model.SetChannelTarget, model.RestoreAuto}, ch.Dispatched())
}

func TestMissingCommandFilledFromEnvelope(t *testing.T) {
	ch := NewChannel(ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
		return model.WriteResult{Success: true}, nil
	}))
	res := ch.Execute(model.CommandEnvelope{Command: model.RestoreAuto})
	assert.Equal(t, model.RestoreAuto, res.Command)
}

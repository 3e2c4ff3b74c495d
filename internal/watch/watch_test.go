package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fanguard/internal/conflict"
	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
	"github.com/ppiankov/fanguard/internal/policy"
)

const goodReport = `
backend_id: sim
channels:
  cpu_fan: {restore_auto_supported: true, write_supported: true}
`

const noRestoreReport = `
backend_id: sim
channels:
  cpu_fan: {restore_auto_supported: false, write_supported: true}
`

func newEngine(t *testing.T, processes []string) *policy.Engine {
	t.Helper()
	probe := conflict.NewProbe(nil, conflict.WithLister(conflict.ListerFunc(func() ([]string, error) {
		return processes, nil
	})))
	e, err := policy.New(helper.NewChannel(nil), policy.WithDetector(probe))
	require.NoError(t, err)
	return e
}

func writeReport(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRevalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeReport(t, path, goodReport)

	e := newEngine(t, nil)
	w, err := New(e, path)
	require.NoError(t, err)
	defer w.watcher.Close()

	ok, err := w.Revalidate()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.SafeControllable, e.State())

	writeReport(t, path, noRestoreReport)
	ok, err = w.Revalidate()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.ReadOnly, e.State())
}

func TestRevalidateConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeReport(t, path, goodReport)

	e := newEngine(t, []string{"thermald --adaptive"})
	w, err := New(e, path)
	require.NoError(t, err)
	defer w.watcher.Close()

	ok, err := w.Revalidate()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.ReadOnly, e.State())
}

func TestRevalidateUnreadableReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeReport(t, path, "channels: [")

	e := newEngine(t, nil)
	w, err := New(e, path)
	require.NoError(t, err)
	defer w.watcher.Close()

	ok, err := w.Revalidate()
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.ReadOnly, e.State())
	assert.False(t, e.Validated())
}

func TestRunRevalidatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeReport(t, path, noRestoreReport)

	e := newEngine(t, nil)
	results := make(chan bool, 4)
	w, err := New(e, path,
		WithDebounce(20*time.Millisecond),
		OnResult(func(ok bool, err error) {
			if err == nil {
				results <- ok
			}
		}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeReport(t, path, goodReport)

	select {
	case ok := <-results:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for revalidation")
	}
	assert.Equal(t, model.SafeControllable, e.State())

	cancel()
	require.NoError(t, <-done)
}

func lockedOutEngine(t *testing.T) *policy.Engine {
	t.Helper()
	ch := helper.NewChannel(helper.ExecutorFunc(func(env model.CommandEnvelope) (model.WriteResult, error) {
		if env.Command == model.RestoreAuto {
			return model.WriteResult{Command: env.Command, ErrorCode: model.RestoreAutoFailed}, nil
		}
		return model.WriteResult{Command: env.Command, Success: true}, nil
	}))
	e, err := policy.New(ch,
		policy.WithValidator(policy.ValidatorFunc(func(model.WriteResult) bool { return false })),
		policy.WithDetector(conflict.NewProbe(nil, conflict.WithLister(conflict.ListerFunc(func() ([]string, error) {
			return nil, nil
		})))))
	require.NoError(t, err)

	e.Startup()
	report := model.NewCapabilityReport("sim", map[string]model.ChannelCaps{
		"cpu_fan": {RestoreAutoSupported: true, WriteSupported: true},
	})
	require.True(t, e.ValidateStartup(report, model.ConflictReport{}))
	e.RequestWrite("cpu_fan", 40, "test")
	require.Equal(t, model.UnsafeUnknown, e.State())
	return e
}

func TestRevalidateKeepsLockout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeReport(t, path, goodReport)

	e := lockedOutEngine(t)
	w, err := New(e, path)
	require.NoError(t, err)
	defer w.watcher.Close()

	ok, err := w.Revalidate()
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.False(t, ok)
	assert.Equal(t, model.UnsafeUnknown, e.State())
	assert.Equal(t, model.AuthorityLocked, e.Authority())
	assert.False(t, e.Validated())
}

func TestRunKeepsLockoutOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	writeReport(t, path, goodReport)

	e := lockedOutEngine(t)
	errs := make(chan error, 4)
	w, err := New(e, path,
		WithDebounce(20*time.Millisecond),
		OnResult(func(ok bool, err error) { errs <- err }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeReport(t, path, goodReport)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrLockedOut)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for revalidation")
	}
	assert.Equal(t, model.UnsafeUnknown, e.State())
	assert.False(t, e.Validated())

	cancel()
	require.NoError(t, <-done)
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(nil, "caps.yaml")
	assert.Error(t, err)
}

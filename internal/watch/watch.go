// Package watch re-runs startup validation when the capability report changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/fanguard/internal/capability"
	"github.com/ppiankov/fanguard/internal/policy"
)

// DefaultDebounce is how long the watcher waits after the last write.
const DefaultDebounce = 500 * time.Millisecond

// ErrLockedOut is returned by Revalidate while the engine is in
// UNSAFE_UNKNOWN. Only an operator restart clears a lockout.
var ErrLockedOut = errors.New("engine is locked out; restart required")

// Watcher observes a capability report file and revalidates the engine.
type Watcher struct {
	watcher  *fsnotify.Watcher
	engine   *policy.Engine
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onResult func(ok bool, err error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// OnResult registers a callback invoked after each revalidation.
func OnResult(fn func(ok bool, err error)) Option { return func(w *Watcher) { w.onResult = fn } }

// New watches the directory holding path so that editors replacing the
// file by rename are still observed.
func New(engine *policy.Engine, path string, opts ...Option) (*Watcher, error) {
	if engine == nil {
		return nil, fmt.Errorf("watch: engine is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", abs, err)
	}

	w := &Watcher{
		watcher:  fw,
		engine:   engine,
		path:     abs,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "watch"),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Revalidate restarts the engine into READ_ONLY and validates it against
// the current report and a live conflict probe. An unreadable report
// leaves the engine in READ_ONLY. A locked-out engine is left untouched.
func (w *Watcher) Revalidate() (bool, error) {
	if !w.engine.Restart("capability report changed") {
		return false, ErrLockedOut
	}

	report, err := capability.Load(w.path)
	if err != nil {
		return false, err
	}
	ok, conflicts := w.engine.ValidateStartupDetect(report, nil)
	if conflicts.Active {
		w.logger.Warn("conflicting fan control detected", "matches", conflicts.Matches)
	}
	return ok, nil
}

// Run watches for changes and revalidates. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(w.debounce, w.fire)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) fire() {
	ok, err := w.Revalidate()
	switch {
	case errors.Is(err, ErrLockedOut):
		w.logger.Error("capability report changed during lockout; not revalidating",
			"path", w.path, "state", w.engine.State())
	case err != nil:
		w.logger.Error("revalidation failed", "path", w.path, "error", err)
	default:
		w.logger.Info("capability report revalidated", "path", w.path, "validated", ok,
			"state", w.engine.State())
	}
	if w.onResult != nil {
		w.onResult(ok, err)
	}
}

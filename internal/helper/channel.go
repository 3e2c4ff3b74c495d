package helper

import (
	"fmt"
	"sync"

	"github.com/ppiankov/fanguard/internal/model"
)

// Executor performs one privileged fan operation. A non-nil error is
// mapped into a structured WriteResult by the Channel.
type Executor interface {
	Execute(env model.CommandEnvelope) (model.WriteResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(env model.CommandEnvelope) (model.WriteResult, error)

// Execute calls f(env).
func (f ExecutorFunc) Execute(env model.CommandEnvelope) (model.WriteResult, error) {
	return f(env)
}

// Channel is the narrow helper surface: allow-listed commands only, and
// every failure mode surfaces as a WriteResult.
type Channel struct {
	exec Executor
	mu   sync.Mutex
	sent []model.Command
}

// NewChannel wraps exec. A nil executor selects the simulated backend.
func NewChannel(exec Executor) *Channel {
	if exec == nil {
		exec = Simulated{}
	}
	return &Channel{exec: exec}
}

// Execute dispatches env if its command is allow-listed.
func (c *Channel) Execute(env model.CommandEnvelope) (result model.WriteResult) {
	if !env.Command.Allowed() {
		return model.WriteResult{
			Command:   env.Command,
			Success:   false,
			ErrorCode: model.WriteRejectedPolicy,
			Detail:    "command is not allowlisted",
		}
	}

	c.mu.Lock()
	c.sent = append(c.sent, env.Command)
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result = model.WriteResult{
				Command:   env.Command,
				Success:   false,
				ErrorCode: model.WriteFailedBackend,
				Detail:    fmt.Sprintf("unexpected helper error: %v", r),
			}
		}
	}()

	res, err := c.exec.Execute(env)
	if err != nil {
		return failure(env.Command, err)
	}
	if res.Command == "" {
		res.Command = env.Command
	}
	return res
}

// Dispatched returns the allow-listed commands handed to the executor, in order.
func (c *Channel) Dispatched() []model.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Command, len(c.sent))
	copy(out, c.sent)
	return out
}

package helper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ppiankov/fanguard/internal/model"
)

// Process runs an out-of-process privileged helper (for example behind
// pkexec or a setuid wrapper). The envelope is written to stdin as JSON and
// the helper prints a WriteResult as JSON on stdout.
type Process struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// waitDelay bounds how long Execute waits for the helper's output pipes
// after the process is killed.
const waitDelay = time.Second

// Execute implements Executor.
func (p *Process) Execute(env model.CommandEnvelope) (model.WriteResult, error) {
	ctx := context.Background()
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(env)
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("marshal envelope: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return model.WriteResult{
				Command:   env.Command,
				ErrorCode: model.WriteFailedBackend,
				Detail:    fmt.Sprintf("helper timed out after %s", p.Timeout),
			}, nil
		}
		if _, ok := err.(*exec.ExitError); ok {
			return model.WriteResult{
				Command:   env.Command,
				ErrorCode: model.WriteFailedBackend,
				Detail:    fmt.Sprintf("helper exited: %v: %s", err, strings.TrimSpace(stderr.String())),
			}, nil
		}
		return model.WriteResult{}, err
	}

	var result model.WriteResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return model.WriteResult{
			Command:   env.Command,
			ErrorCode: model.WriteFailedBackend,
			Detail:    fmt.Sprintf("helper output is not a write result: %v", err),
		}, nil
	}
	return result, nil
}

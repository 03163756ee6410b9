// Package execx runs external security tools so that cancelling the context
// kills the tool together with every child it spawned.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultWaitDelay is how long Run waits for output pipes after the process
// was killed.
const DefaultWaitDelay = 5 * time.Second

// ErrNotInstalled is returned when the binary is not on PATH.
var ErrNotInstalled = errors.New("binary not found on PATH")

// Result is the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command builds an exec.Cmd that runs in its own process group. When ctx is
// done the whole group is killed.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = DefaultWaitDelay
	return cmd
}

// Run executes name with args and collects its output. A non-zero exit code is
// not an error by itself; callers decide which codes are acceptable. A context
// error is returned as-is (wrapped) so callers can detect timeouts.
func Run(ctx context.Context, name string, args ...string) (Result, error) {
	if _, err := exec.LookPath(name); err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}

	var stdout, stderr bytes.Buffer
	cmd := Command(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", name, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}

// Expand substitutes {{key}} placeholders in every arg.
func Expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{{"+k+"}}", v)
		}
		out[i] = a
	}
	return out
}

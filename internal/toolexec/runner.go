package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mycolab/phylopipe/internal/log"
)

const (
	// maxStderrBytes caps the amount of stderr kept on a ToolError when no
	// stderr file was requested.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// Spec describes one external tool invocation.
type Spec struct {
	Program string
	Args    []string
	// Stdout and Stderr name files the streams are redirected to. An empty
	// path means the stream is captured in memory instead (stderr feeds the
	// ToolError tail; stdout is discarded).
	Stdout string
	Stderr string
	Dir    string
}

// ToolError reports a tool that started but exited non-zero.
type ToolError struct {
	Program  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s %s: exit status %d", e.Program, strings.Join(e.Args, " "), e.ExitCode)
}

// Runner executes an external tool to completion.
type Runner interface {
	Run(ctx context.Context, spec Spec) error
}

// Exec is the os/exec-backed Runner. A zero Timeout means the tool may run
// indefinitely; with a Timeout set, the process gets SIGTERM at the
// deadline and SIGKILL after a grace period.
type Exec struct {
	Timeout time.Duration
}

var _ Runner = (*Exec)(nil)

// Run starts the program, redirects its streams, and blocks until exit.
// Output files are created or truncated before the process starts, so a
// re-run overwrites prior artifacts rather than appending.
func (x *Exec) Run(ctx context.Context, spec Spec) error {
	if spec.Program == "" {
		return fmt.Errorf("tool program is empty")
	}

	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.Dir

	var errBuf bytes.Buffer

	if spec.Stdout != "" {
		out, err := os.Create(spec.Stdout)
		if err != nil {
			return fmt.Errorf("create stdout file: %w", err)
		}
		defer out.Close()
		cmd.Stdout = out
	}
	if spec.Stderr != "" {
		errw, err := os.Create(spec.Stderr)
		if err != nil {
			return fmt.Errorf("create stderr file: %w", err)
		}
		defer errw.Close()
		cmd.Stderr = errw
	} else {
		cmd.Stderr = &errBuf
	}

	logger := log.WithComponent("toolexec").With("program", spec.Program)
	logger.Debug("starting tool", "args", spec.Args, "timeout", x.Timeout)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", spec.Program, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var timeoutC <-chan time.Time
	if x.Timeout > 0 {
		timer := time.NewTimer(x.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case err := <-waitErr:
		if err == nil {
			logger.Debug("tool completed", "duration", time.Since(start))
			return nil
		}
		var xerr *exec.ExitError
		if errors.As(err, &xerr) {
			return &ToolError{
				Program:  spec.Program,
				Args:     spec.Args,
				ExitCode: xerr.ExitCode(),
				Stderr:   truncateStderr(errBuf.String()),
			}
		}
		return fmt.Errorf("wait %s: %w", spec.Program, err)

	case <-timeoutC:
		logger.Warn("tool timed out, sending SIGTERM", "timeout", x.Timeout)
		terminate(cmd, waitErr, logger)
		return fmt.Errorf("%s timed out after %v: %w", spec.Program, x.Timeout, context.DeadlineExceeded)

	case <-ctx.Done():
		logger.Warn("run cancelled, sending SIGTERM")
		terminate(cmd, waitErr, logger)
		return ctx.Err()
	}
}

// terminate escalates SIGTERM to SIGKILL after the grace period and waits
// for the process to die.
func terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) {
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("tool did not exit after SIGTERM, sending SIGKILL")
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-waitErr
	}
}

func truncateStderr(s string) string {
	if len(s) <= maxStderrBytes {
		return s
	}
	return s[:maxStderrBytes] + "\n...[truncated]"
}

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// waitDelay bounds how long Wait blocks on pipes still held by
// descendants after the launched process exited or was killed.
const waitDelay = 2 * time.Second

// Mount binds a host path read-only into the sandbox.
type Mount struct {
	HostPath    string
	SandboxPath string
}

// Request represents the parameters for one sandbox invocation
type Request struct {
	Image   string
	Mounts  []Mount
	Argv    []string
	Timeout time.Duration
}

// Outcome represents the result of one sandbox invocation.
// Output is nil when TimedOut is set.
type Outcome struct {
	RunID    string
	Output   []byte
	TimedOut bool
}

// Runner defines the interface for sandbox execution
type Runner interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}

// CommandResult is what a CommandRunner observed about one process.
type CommandResult struct {
	Output   []byte
	ExitCode int
	TimedOut bool
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, timeout time.Duration, args []string) (CommandResult, error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command in its own process group and
// captures stdout and stderr into one buffer. When timeout elapses, or ctx
// is canceled, the whole group is killed and the process is reaped before
// returning. A non-positive timeout disables the deadline.
func (RealCommandRunner) RunCommand(ctx context.Context, timeout time.Duration, args []string) (CommandResult, error) {
	if len(args) < 1 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec // Arguments are built by this package

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return CommandResult{}, fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-done:
		exitCode, waitErr := exitStatus(cmd, err)
		if waitErr != nil {
			return CommandResult{}, fmt.Errorf("failed to wait for %s: %w", args[0], waitErr)
		}
		return CommandResult{Output: out.Bytes(), ExitCode: exitCode}, nil
	case <-deadline:
		_ = killProcessGroup(cmd)
		<-done
		return CommandResult{ExitCode: -1, TimedOut: true}, nil
	case <-ctx.Done():
		_ = killProcessGroup(cmd)
		<-done
		return CommandResult{ExitCode: -1}, ctx.Err()
	}
}

func exitStatus(cmd *exec.Cmd, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return exitError.ExitCode(), nil
	}

	// The process exited but a descendant kept the output pipe open.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), nil
	}

	return 0, err
}

// NewRunID returns a sandbox name unique within and across processes.
func NewRunID() string {
	return fmt.Sprintf("allruby-%d-%s", os.Getpid(), uuid.NewString())
}

package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LocalRunner implements Runner by running the command directly on the
// host (for development only). Mounts are emulated by replacing argv
// elements equal to a sandbox path with the matching host path; no
// resource limit or network isolation applies.
type LocalRunner struct {
	logger    *zap.Logger
	cmdRunner CommandRunner
	newRunID  func() string
}

// LocalRunnerOption defines a functional option for LocalRunner
type LocalRunnerOption func(*LocalRunner)

// WithLocalCommandRunner sets the CommandRunner for LocalRunner
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalRunnerOption {
	return func(l *LocalRunner) {
		l.cmdRunner = cmdRunner
	}
}

// NewLocalRunner creates a new LocalRunner
func NewLocalRunner(logger *zap.Logger, opts ...LocalRunnerOption) *LocalRunner {
	runner := &LocalRunner{
		logger:    logger,
		cmdRunner: &RealCommandRunner{},
		newRunID:  NewRunID,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes the request's argv on the host (WARNING: not isolated)
func (l *LocalRunner) Run(ctx context.Context, req Request) (Outcome, error) {
	if len(req.Argv) == 0 {
		return Outcome{}, fmt.Errorf("no command provided")
	}
	if req.Timeout <= 0 {
		return Outcome{}, fmt.Errorf("timeout must be positive, got: %s", req.Timeout)
	}

	runID := l.newRunID()
	args := localArgs(req)

	l.logger.Warn("running submission without isolation",
		zap.String("run_id", runID),
		zap.Strings("args", args))

	start := time.Now()
	res, err := l.cmdRunner.RunCommand(ctx, req.Timeout, args)
	if err != nil {
		return Outcome{RunID: runID}, fmt.Errorf("failed to run %s: %w", runID, err)
	}
	if res.TimedOut {
		l.logger.Warn("local run timed out", zap.String("run_id", runID), zap.Duration("timeout", req.Timeout))
		return Outcome{RunID: runID, TimedOut: true}, nil
	}

	l.logger.Info("local run finished",
		zap.String("run_id", runID),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("elapsed", time.Since(start)))

	return Outcome{RunID: runID, Output: res.Output}, nil
}

func localArgs(req Request) []string {
	hostPaths := make(map[string]string, len(req.Mounts))
	for _, m := range req.Mounts {
		hostPaths[m.SandboxPath] = m.HostPath
	}

	args := make([]string, len(req.Argv))
	for i, arg := range req.Argv {
		if host, ok := hostPaths[arg]; ok {
			arg = host
		}
		args[i] = arg
	}
	return args
}

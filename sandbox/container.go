package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds the resource limits applied to every container
type Config struct {
	MemoryMB       int
	PidsLimit      int
	Locale         string
	CleanupTimeout time.Duration
}

// ContainerRunner implements Runner on top of a Docker-compatible CLI
type ContainerRunner struct {
	logger    *zap.Logger
	config    *Config
	engine    string
	cmdRunner CommandRunner
	newRunID  func() string
}

// ContainerRunnerOption defines a functional option for ContainerRunner
type ContainerRunnerOption func(*ContainerRunner)

// WithCommandRunner sets the CommandRunner for ContainerRunner
func WithCommandRunner(cmdRunner CommandRunner) ContainerRunnerOption {
	return func(c *ContainerRunner) {
		c.cmdRunner = cmdRunner
	}
}

// WithRunIDGenerator sets the function naming each container
func WithRunIDGenerator(newRunID func() string) ContainerRunnerOption {
	return func(c *ContainerRunner) {
		c.newRunID = newRunID
	}
}

// NewContainerRunner creates a runner invoking engine ("docker", "podman"
// or a path to a compatible binary).
func NewContainerRunner(logger *zap.Logger, config *Config, engine string, opts ...ContainerRunnerOption) *ContainerRunner {
	runner := &ContainerRunner{
		logger:    logger,
		config:    config,
		engine:    engine,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		newRunID:  NewRunID,
	}

	// Apply options
	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes req in a fresh container and always removes it afterwards.
func (c *ContainerRunner) Run(ctx context.Context, req Request) (Outcome, error) {
	if req.Image == "" {
		return Outcome{}, fmt.Errorf("no image provided")
	}
	if req.Timeout <= 0 {
		return Outcome{}, fmt.Errorf("timeout must be positive, got: %s", req.Timeout)
	}

	runID := c.newRunID()
	defer c.cleanup(runID)

	args := c.buildRunArgs(runID, req)

	c.logger.Debug("starting sandbox",
		zap.String("run_id", runID),
		zap.String("image", req.Image),
		zap.Strings("args", args))

	start := time.Now()
	res, err := c.cmdRunner.RunCommand(ctx, req.Timeout, args)
	if err != nil {
		return Outcome{RunID: runID}, fmt.Errorf("failed to run sandbox %s: %w", runID, err)
	}

	if res.TimedOut {
		c.logger.Warn("sandbox timed out",
			zap.String("run_id", runID),
			zap.String("image", req.Image),
			zap.Duration("timeout", req.Timeout))
		return Outcome{RunID: runID, TimedOut: true}, nil
	}

	c.logger.Info("sandbox finished",
		zap.String("run_id", runID),
		zap.String("image", req.Image),
		zap.Int("exit_code", res.ExitCode),
		zap.Int("output_len", len(res.Output)),
		zap.Duration("elapsed", time.Since(start)))

	return Outcome{RunID: runID, Output: res.Output}, nil
}

func (c *ContainerRunner) buildRunArgs(runID string, req Request) []string {
	args := []string{
		c.engine, "run",
		"--rm",
		"--net=none",
		"-m", strconv.Itoa(c.config.MemoryMB) + "M",
		"--pids-limit", strconv.Itoa(c.config.PidsLimit),
		"-e", "LANG=" + c.config.Locale,
		"--name", runID,
	}

	for _, m := range req.Mounts {
		args = append(args, "-v", m.HostPath+":"+m.SandboxPath+":ro")
	}

	args = append(args, req.Image)
	return append(args, req.Argv...)
}

// cleanup removes the container by name. The container is normally gone
// already (--rm), so a failing call is expected and only logged.
func (c *ContainerRunner) cleanup(runID string) {
	res, err := c.cmdRunner.RunCommand(context.Background(), c.config.CleanupTimeout, []string{c.engine, "rm", "-f", runID})
	switch {
	case err != nil:
		c.logger.Warn("failed to remove sandbox", zap.String("run_id", runID), zap.Error(err))
	case res.TimedOut:
		c.logger.Warn("removing sandbox timed out", zap.String("run_id", runID))
	case res.ExitCode != 0:
		c.logger.Debug("sandbox already removed",
			zap.String("run_id", runID),
			zap.Int("exit_code", res.ExitCode),
			zap.ByteString("output", res.Output))
	}
}

package invoker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isdmx/allruby/protocol"
)

// Execute runs every build concurrently with args and input on stdin, and
// returns one result per build in the order of builds. A build that cannot
// be started yields exit code -1 with the error on stderr; it does not
// affect the others. A nil input means no stdin.
func Execute(ctx context.Context, logger *zap.Logger, builds []Build, args []string, input []byte, workdir string, parallelism int) []protocol.Result {
	results := make([]protocol.Result, len(builds))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, b := range builds {
		g.Go(func() error {
			results[i] = runBuild(ctx, logger, b, args, input, workdir)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runBuild(ctx context.Context, logger *zap.Logger, b Build, args []string, input []byte, workdir string) protocol.Result {
	argv := append(slices.Clone(b.Flags), args...)
	cmd := exec.CommandContext(ctx, b.Path, argv...) //nolint:gosec // Running the user's program is the point

	cmd.Dir = workdir
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
		} else {
			logger.Warn("failed to run build", zap.String("version", b.Version), zap.String("path", b.Path), zap.Error(err))
			stderr.WriteString(err.Error())
			exitCode = -1
		}
	}

	logger.Debug("build finished",
		zap.String("version", b.Version),
		zap.Int("exit_code", exitCode),
		zap.Int("stdout_len", stdout.Len()),
		zap.Int("stderr_len", stderr.Len()))

	return protocol.Result{
		Version:  b.Version,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}
}

package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/isdmx/allruby/protocol"
)

// Modes select how builds are found.
const (
	// ModeAll runs every versioned build under Options.BinDir.
	ModeAll = "all"
	// ModeSingle runs Options.Interpreter once, labelled by its revision.
	ModeSingle = "single"
)

// ErrReported marks an error that was already written as a failure frame.
var ErrReported = errors.New("failure reported to host")

// Invoker runs one submission against the builds of one sandbox image.
type Invoker struct {
	logger    *zap.Logger
	opts      Options
	mode      string
	inputPath string
}

// New creates an Invoker reading the submission from inputPath.
func New(logger *zap.Logger, opts Options, mode, inputPath string) *Invoker {
	return &Invoker{
		logger:    logger,
		opts:      opts,
		mode:      mode,
		inputPath: inputPath,
	}
}

// Run executes args against every build and writes exactly one frame to w.
// Errors before any build starts are written as a failure frame and
// returned wrapped in ErrReported.
func (inv *Invoker) Run(ctx context.Context, args []string, w io.Writer) error {
	builds, err := inv.builds(ctx)
	if err == nil && len(builds) == 0 {
		err = fmt.Errorf("no interpreter builds found in %s", inv.opts.BinDir)
	}
	if err != nil {
		inv.logger.Error("build discovery failed", zap.Error(err))
		if frameErr := protocol.EncodeFailure(w, err.Error()); frameErr != nil {
			return frameErr
		}
		return fmt.Errorf("%w: %w", ErrReported, err)
	}

	inv.logger.Info("builds selected", zap.Int("count", len(builds)), zap.String("mode", inv.mode))

	input := inv.readInput()
	results := Execute(ctx, inv.logger, builds, args, input, inv.opts.Workdir, inv.opts.Parallelism)

	return protocol.Encode(w, results)
}

func (inv *Invoker) builds(ctx context.Context) ([]Build, error) {
	switch inv.mode {
	case ModeAll:
		return Discover(inv.opts)
	case ModeSingle:
		label, err := DetectRevision(ctx, inv.opts.Interpreter, inv.opts.Workdir)
		if err != nil {
			return nil, err
		}
		return []Build{{Version: label, Path: inv.opts.Interpreter}}, nil
	default:
		return nil, fmt.Errorf("unknown mode: %s", inv.mode)
	}
}

// readInput returns nil when the submission file is missing or unreadable,
// which runs the builds with no stdin.
func (inv *Invoker) readInput() []byte {
	if inv.inputPath == "" {
		return nil
	}
	data, err := os.ReadFile(inv.inputPath)
	if err != nil {
		inv.logger.Debug("no submission input", zap.String("path", inv.inputPath), zap.Error(err))
		return nil
	}
	return data
}

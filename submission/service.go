package submission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isdmx/allruby/config"
	"github.com/isdmx/allruby/protocol"
	"github.com/isdmx/allruby/report"
	"github.com/isdmx/allruby/sandbox"
)

const (
	// InvokerSandboxPath is where the invoker binary is mounted.
	InvokerSandboxPath = "/invoker"
	// InputSandboxPath is where the submitted program is mounted.
	InputSandboxPath = "/inp"

	// InputFilePermission is the mode of the staged program file.
	InputFilePermission = 0o644
)

// Progress marks the instants reported to a ProgressFunc.
type Progress int

const (
	// ProgressStart is reported right before the sandboxes are launched.
	ProgressStart Progress = iota
	// ProgressEnd is reported once every sandbox has finished.
	ProgressEnd
)

func (p Progress) String() string {
	switch p {
	case ProgressStart:
		return "start"
	case ProgressEnd:
		return "end"
	default:
		return fmt.Sprintf("Progress(%d)", int(p))
	}
}

// ProgressFunc receives progress instants of a submission.
type ProgressFunc func(Progress)

// Submission is one request to run a command line, with an optional
// program fed to the interpreters on stdin.
type Submission struct {
	Command string
	Program string
}

// Response is what a submission produces. Exactly one of Text and Report
// is set.
type Response struct {
	Text     string         `json:"text,omitempty"`
	Report   *report.Report `json:"report,omitempty"`
	Threaded bool           `json:"threaded"`
}

// Service runs submissions against every enabled sandbox image.
type Service struct {
	logger      *zap.Logger
	runner      sandbox.Runner
	fs          FileSystem
	images      []config.ImageConfig
	invokerPath string
	timeout     time.Duration
	timeoutSec  int
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// New creates a Service for the images enabled in cfg.
func New(logger *zap.Logger, cfg *config.Config, runner sandbox.Runner, opts ...Option) *Service {
	s := &Service{
		logger:      logger,
		runner:      runner,
		fs:          RealFileSystem{},
		images:      cfg.EnabledImages(),
		invokerPath: cfg.Sandbox.InvokerPath,
		timeout:     cfg.GetTimeout(),
		timeoutSec:  cfg.Sandbox.TimeoutSec,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// imageRun is the outcome of one sandbox image.
type imageRun struct {
	image   config.ImageConfig
	outcome sandbox.Outcome
	err     error
}

// Handle runs a submission and builds its response. It returns a nil
// response when the submission is not a command. progress, which may be
// nil, is called with ProgressStart and ProgressEnd around the sandbox runs
// only. Errors are returned when the program cannot be staged or ctx ends
// before the runs complete; sandbox failures are part of the response.
func (s *Service) Handle(ctx context.Context, sub Submission, progress ProgressFunc) (*Response, error) {
	command := strings.TrimSpace(sub.Command)
	program := strings.TrimSpace(sub.Program)

	if program == "" && (command == "" || command == "help") {
		return &Response{Text: HelpText, Threaded: true}, nil
	}

	command = normalizeCommand(command)
	if !strings.HasPrefix(command, "-") && program == "" {
		s.logger.Debug("ignoring non-command text", zap.String("command", command))
		return nil, nil
	}

	s.logger.Info("submission received",
		zap.String("command", command),
		zap.Int("program_len", len(program)))

	args, err := ParseCommand(command)
	if err != nil {
		s.logger.Info("command parse error", zap.String("command", command), zap.Error(err))
		return textResponse("command parse error: `" + report.Escape(err.Error()) + "`"), nil
	}

	if progress == nil {
		progress = func(Progress) {}
	}

	progress(ProgressStart)
	runs, err := s.runImages(ctx, args, []byte(program))
	progress(ProgressEnd)
	if err != nil {
		return nil, err
	}

	return s.respond(runs), nil
}

// runImages stages the program and runs one sandbox per image
// concurrently. Runs are returned in image order.
func (s *Service) runImages(ctx context.Context, args []string, program []byte) ([]imageRun, error) {
	tempDir, err := s.fs.MkdirTemp("", "allruby-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := s.fs.RemoveAll(tempDir); rmErr != nil {
			s.logger.Error("failed to remove temp directory", zap.String("path", tempDir), zap.Error(rmErr))
		}
	}()

	inputPath := filepath.Join(tempDir, "inp")
	if err := s.fs.WriteFile(inputPath, program, InputFilePermission); err != nil {
		return nil, fmt.Errorf("failed to write program: %w", err)
	}

	runs := make([]imageRun, len(s.images))

	var g errgroup.Group
	for i, image := range s.images {
		req := s.request(image, inputPath, args)
		g.Go(func() error {
			start := time.Now()
			outcome, err := s.runner.Run(ctx, req)
			runs[i] = imageRun{image: image, outcome: outcome, err: err}

			s.logger.Info("sandbox finished",
				zap.String("image", image.Name),
				zap.String("run_id", outcome.RunID),
				zap.Bool("timed_out", outcome.TimedOut),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submission canceled: %w", err)
	}

	return runs, nil
}

func (s *Service) request(image config.ImageConfig, inputPath string, args []string) sandbox.Request {
	argv := make([]string, 0, len(args)+6)
	argv = append(argv, InvokerSandboxPath, "--mode", image.Mode, "--input", InputSandboxPath, "--")
	argv = append(argv, args...)

	return sandbox.Request{
		Image: image.Image,
		Mounts: []sandbox.Mount{
			{HostPath: s.invokerPath, SandboxPath: InvokerSandboxPath},
			{HostPath: inputPath, SandboxPath: InputSandboxPath},
		},
		Argv:    argv,
		Timeout: s.timeout,
	}
}

// respond aggregates the results of every image that succeeded. Failed
// images become report notes; when all images failed, the first failure
// in image order is the response.
func (s *Service) respond(runs []imageRun) *Response {
	var (
		results  []protocol.Result
		notes    []string
		failures []string
	)

	for _, run := range runs {
		decoded, msg := s.decode(run)
		if msg != "" {
			failures = append(failures, msg)
			notes = append(notes, run.image.Name+": "+msg)
			continue
		}
		results = append(results, decoded...)
	}

	if len(failures) == len(runs) && len(failures) > 0 {
		return textResponse(failures[0])
	}

	rep := report.Format(results)
	rep.Notes = notes
	return &Response{Report: rep, Threaded: rep.Threaded}
}

// decode returns the results of a run, or the message describing why it
// produced none.
func (s *Service) decode(run imageRun) ([]protocol.Result, string) {
	switch {
	case run.err != nil:
		return nil, report.Escape(firstLine(run.err.Error()))
	case run.outcome.TimedOut:
		return nil, fmt.Sprintf("time limit exceeded (%d sec.)", s.timeoutSec)
	}

	results, err := protocol.Decode(run.outcome.Output)
	if err == nil {
		return results, ""
	}

	var failure *protocol.FailureError
	if errors.As(err, &failure) {
		s.logger.Warn("sandbox reported failure",
			zap.String("image", run.image.Name),
			zap.String("run_id", run.outcome.RunID),
			zap.String("line", failure.Line))
		return nil, report.Escape(failure.Line)
	}

	s.logger.Warn("malformed sandbox output",
		zap.String("image", run.image.Name),
		zap.String("run_id", run.outcome.RunID),
		zap.Error(err))
	return nil, report.Escape(firstLine(err.Error()))
}

func textResponse(text string) *Response {
	return &Response{Text: text, Threaded: true}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

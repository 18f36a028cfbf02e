package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/isdmx/allruby/invoker"
	"github.com/isdmx/allruby/logger"
	"github.com/isdmx/allruby/protocol"
)

type flags struct {
	mode     string
	input    string
	config   string
	logFile  string
	logLevel string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "invoker [flags] -- [ruby arguments...]",
		Short: "Run a submission against every interpreter build in the image",
		Long: `Invoker runs inside a sandbox. It discovers the interpreter builds of the
image, runs the submission against each of them and writes one result
frame to stdout.

Examples:
  invoker --mode all --input /inp -- -e 'p 1'
  invoker --mode single --input /inp -- -W0`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, args, out)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&f.mode, "mode", invoker.ModeAll, "Build discovery mode (all, single)")
	cmd.Flags().StringVar(&f.input, "input", "/inp", "Path of the submitted program, fed to stdin")
	cmd.Flags().StringVar(&f.config, "config", "", "YAML file overriding discovery options")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Write logs to this file (discarded when empty)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	return cmd
}

func run(ctx context.Context, f flags, args []string, out io.Writer) error {
	log, err := logger.NewFile(f.logFile, f.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts, err := invoker.LoadOptions(f.config)
	if err != nil {
		return err
	}

	log.Info("invoker starting",
		zap.String("mode", f.mode),
		zap.String("input", f.input),
		zap.Strings("args", args))

	return invoker.New(log, opts, f.mode, f.input).Run(ctx, args, out)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	if err != nil && !errors.Is(err, invoker.ErrReported) {
		_ = protocol.EncodeFailure(os.Stdout, err.Error())
	}
	_ = os.Stdout.Close()
	stop()

	if err != nil {
		os.Exit(1)
	}
}

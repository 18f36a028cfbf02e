//go:build unix

package invoker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/allruby/protocol"
)

// echoScript prints its name and arguments, copies stdin to stdout and
// exits with the status in $EXIT_WITH, if set.
const echoScript = `#!/bin/sh
echo "$(basename "$0") $*"
cat
echo "warn from $(basename "$0")" >&2
exit ${EXIT_WITH:-0}
`

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"ruby-2.7.1", "ruby-2.7.3", "ruby-3.4.0"} {
		writeScript(t, dir, name, echoScript)
	}

	opts := DefaultOptions()
	opts.BinDir = dir
	opts.Selector = `/ruby-(\d+\.\d+)`
	opts.Workdir = dir
	return opts
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ruby-3.0.0", echoScript)
	failing := writeScript(t, dir, "ruby-3.1.0", "#!/bin/sh\necho nope >&2\nexit 3\n")

	builds := []Build{
		{Version: "3.0", Path: ok},
		{Version: "3.1", Path: failing},
		{Version: "3.2", Path: filepath.Join(dir, "missing")},
		{Version: "3.4+prism", Path: ok, Flags: []string{"--parser=prism"}},
	}

	results := Execute(context.Background(), zaptest.NewLogger(t), builds, []string{"-e", "p 1"}, []byte("stdin\n"), dir, 2)
	require.Len(t, results, 4)

	assert.Equal(t, "3.0", results[0].Version)
	assert.Equal(t, "ruby-3.0.0 -e p 1\nstdin\n", string(results[0].Stdout))
	assert.Equal(t, "warn from ruby-3.0.0\n", string(results[0].Stderr))
	assert.Equal(t, 0, results[0].ExitCode)

	assert.Equal(t, "nope\n", string(results[1].Stderr))
	assert.Equal(t, 3, results[1].ExitCode)

	assert.Equal(t, "3.2", results[2].Version)
	assert.Equal(t, -1, results[2].ExitCode)
	assert.NotEmpty(t, results[2].Stderr)

	assert.Equal(t, "ruby-3.0.0 --parser=prism -e p 1\nstdin\n", string(results[3].Stdout))
}

func TestExecuteWithoutInput(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "ruby-3.0.0", echoScript)

	results := Execute(context.Background(), zaptest.NewLogger(t), []Build{{Version: "3.0", Path: path}}, nil, nil, dir, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "ruby-3.0.0 \n", string(results[0].Stdout))
}

func TestInvokerRunAll(t *testing.T) {
	opts := testOptions(t)
	input := writeScript(t, t.TempDir(), "inp", "puts 1+1\n")

	var out bytes.Buffer
	inv := New(zaptest.NewLogger(t), opts, ModeAll, input)
	require.NoError(t, inv.Run(context.Background(), []string{"-e", "x"}, &out))

	results, err := protocol.Decode(out.Bytes())
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "2.7", results[0].Version)
	assert.Equal(t, "ruby-2.7.3 -e x\nputs 1+1\n", string(results[0].Stdout))
	assert.Equal(t, "3.4+parse.y", results[1].Version)
	assert.Equal(t, "ruby-3.4.0 --parser=parse.y -e x\nputs 1+1\n", string(results[1].Stdout))
	assert.Equal(t, "3.4+prism", results[2].Version)
}

func TestInvokerRunMissingInput(t *testing.T) {
	opts := testOptions(t)
	opts.Variants = nil

	var out bytes.Buffer
	inv := New(zaptest.NewLogger(t), opts, ModeAll, filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, inv.Run(context.Background(), nil, &out))

	results, err := protocol.Decode(out.Bytes())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ruby-2.7.3 \n", string(results[0].Stdout))
}

func TestInvokerRunSingle(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Workdir = dir
	opts.Interpreter = writeScript(t, dir, "ruby", `#!/bin/sh
if [ "$1" = "-v" ]; then
  echo "ruby 3.5.0dev (2025-01-10T03:04:05Z master 9f8e7d6c5b) [x86_64-linux]"
  exit 0
fi
echo "ran $*"
`)

	var out bytes.Buffer
	inv := New(zaptest.NewLogger(t), opts, ModeSingle, "")
	require.NoError(t, inv.Run(context.Background(), []string{"-e", "1"}, &out))

	results, err := protocol.Decode(out.Bytes())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "9f8e7d6c5b (2025-01-10T03:04:05Z)", results[0].Version)
	assert.Equal(t, "ran -e 1\n", string(results[0].Stdout))
}

func TestInvokerRunFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		mode    string
		message string
	}{
		{
			name:    "NoBuilds",
			mutate:  func(o *Options) { o.BinDir = "/nonexistent/bin" },
			mode:    ModeAll,
			message: "no interpreter builds found",
		},
		{
			name:    "BadSelector",
			mutate:  func(o *Options) { o.Selector = "(" },
			mode:    ModeAll,
			message: "invalid selector",
		},
		{
			name:    "SingleInterpreterMissing",
			mutate:  func(o *Options) { o.Interpreter = "/nonexistent/ruby" },
			mode:    ModeSingle,
			message: "failed to query /nonexistent/ruby version",
		},
		{
			name:    "UnknownMode",
			mutate:  func(*Options) {},
			mode:    "some",
			message: "unknown mode: some",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			tt.mutate(&opts)

			var out bytes.Buffer
			err := New(zaptest.NewLogger(t), opts, tt.mode, "").Run(context.Background(), nil, &out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrReported))

			_, decodeErr := protocol.Decode(out.Bytes())
			var failure *protocol.FailureError
			require.True(t, errors.As(decodeErr, &failure))
			assert.Contains(t, failure.Line, tt.message)
		})
	}
}

// Package sandbox provides isolated execution of a single command.
//
// The sandbox package implements the host side of a submission: it launches
// one container per invocation with no network, a memory ceiling, a process
// count ceiling and read-only mounts, captures the combined output, and
// enforces a wall-clock deadline. It supports Docker and Podman, plus a
// local backend for development.
//
// On expiry the whole process group of the launching command is killed.
// After every run, successful or not, the container is removed by name;
// a failure of that cleanup is logged and otherwise ignored.
//
// Usage:
//
//	runner, err := sandbox.NewRunner(logger, cfg)
//	outcome, err := runner.Run(ctx, sandbox.Request{
//	    Image:   "rubylang/all-ruby",
//	    Mounts:  []sandbox.Mount{{HostPath: "/tmp/inp", SandboxPath: "/inp"}},
//	    Argv:    []string{"/invoker", "--", "-e", "p 1"},
//	    Timeout: 10 * time.Second,
//	})
//	if outcome.TimedOut {
//	    // report the time limit
//	}
package sandbox

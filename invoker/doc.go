// Package invoker is the program that runs inside a sandbox.
//
// It discovers the interpreter builds installed in the image, keeps the
// newest build of each version family, optionally splits recent versions
// into parser variants, runs the submission against every build
// concurrently and writes one result frame to its output.
//
// Usage:
//
//	inv := invoker.New(logger, invoker.DefaultOptions(), invoker.ModeAll, "/inp")
//	if err := inv.Run(ctx, os.Args[1:], os.Stdout); err != nil {
//	    os.Exit(1)
//	}
package invoker

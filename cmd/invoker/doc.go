// Package main is the sandbox entrypoint of the all-ruby runner.
//
// The binary is mounted read-only into every sandbox container and started
// as its command. It runs the submission against the interpreter builds of
// the image and writes exactly one result frame to stdout, which is the
// channel the host decodes. Logs go to a file or are discarded.
//
// Usage:
//
//	invoker --mode all --input /inp -- -e 'p RUBY_VERSION'
package main

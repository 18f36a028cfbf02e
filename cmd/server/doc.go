// Package main is the entry point for the all-ruby MCP server.
//
// The server runs a ruby command line against every configured sandbox
// image, each of which runs it against all of its installed interpreter
// builds, and replies with the outputs grouped by identical result and
// compressed into version ranges. Sandboxes are containers without network
// access, with memory and process limits and a wall-clock timeout.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

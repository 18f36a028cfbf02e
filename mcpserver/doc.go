// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The server exposes a single tool, run_all_ruby, which takes a ruby command
// line and an optional program and returns the grouped report as JSON. When
// the caller attaches a progress token, the start and end of the sandbox
// runs are sent as notifications/progress. It uses the mark3labs/mcp-go
// library to handle the protocol details.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, service)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver

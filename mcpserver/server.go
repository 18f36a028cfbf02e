package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/allruby/config"
	"github.com/isdmx/allruby/submission"
)

// ToolName is the name of the tool running a submission.
const ToolName = "run_all_ruby"

// Handler runs one submission.
type Handler interface {
	Handle(ctx context.Context, sub submission.Submission, progress submission.ProgressFunc) (*submission.Response, error)
}

type notifyFunc func(ctx context.Context, method string, params map[string]any) error

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	handler   Handler
	mcpServer *server.MCPServer
	notify    notifyFunc
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, handler Handler) (*MCPServer, error) {
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		handler: handler,
	}

	images := make([]string, 0, len(cfg.Images))
	for _, image := range cfg.EnabledImages() {
		images = append(images, image.Name+"="+image.Image)
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.String("sandbox.engine", s.config.Sandbox.Engine),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Int("sandbox.pids_limit", s.config.Sandbox.PidsLimit),
		zap.String("sandbox.invoker_path", s.config.Sandbox.InvokerPath),
		zap.Bool("sandbox.enable_local_backend", s.config.Sandbox.EnableLocalBackend),
		zap.Strings("images", images),
	)

	s.mcpServer = server.NewMCPServer("allruby", "Runs Ruby code on every released interpreter")
	s.notify = s.mcpServer.SendNotificationToClient

	s.registerRunAllRubyTool()

	return s, nil
}

func (s *MCPServer) registerRunAllRubyTool() {
	tool := mcp.Tool{
		Name: ToolName,
		Description: "Run a ruby command line, with an optional program on stdin, against every " +
			"installed ruby version and report the outputs grouped by version range",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Arguments for ruby, shell quoted, e.g. -e 'p RUBY_VERSION'. Empty or \"help\" shows usage",
				},
				"program": map[string]any{
					"type":        "string",
					"description": "Program text fed to ruby on stdin (optional)",
				},
			},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunAllRuby)
}

func (s *MCPServer) handleRunAllRuby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sub := submission.Submission{
		Command: request.GetString("command", ""),
		Program: request.GetString("program", ""),
	}

	var token mcp.ProgressToken
	if request.Params.Meta != nil {
		token = request.Params.Meta.ProgressToken
	}

	s.logger.Info("run requested",
		zap.String("command", sub.Command),
		zap.Int("program_len", len(sub.Program)),
		zap.Bool("progress", token != nil))

	resp, err := s.handler.Handle(ctx, sub, s.progressNotifier(ctx, token))
	if err != nil {
		s.logger.Error("submission failed", zap.Error(err), zap.String("command", sub.Command))
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}
	if resp == nil {
		return mcp.NewToolResultError("not a command: the command must start with '-' or a program must be given"), nil
	}

	resultJSON, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	return mcp.NewToolResultText(string(resultJSON)), nil
}

// progressNotifier forwards progress instants as notifications/progress
// when the client asked for them with a progress token.
func (s *MCPServer) progressNotifier(ctx context.Context, token mcp.ProgressToken) submission.ProgressFunc {
	if token == nil {
		return nil
	}

	return func(p submission.Progress) {
		params := map[string]any{
			"progressToken": token,
			"progress":      int(p) + 1,
			"total":         int(submission.ProgressEnd) + 1,
			"message":       p.String(),
		}
		if err := s.notify(ctx, "notifications/progress", params); err != nil {
			s.logger.Debug("failed to send progress notification", zap.Stringer("progress", p), zap.Error(err))
		}
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

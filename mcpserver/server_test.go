package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/allruby/config"
	"github.com/isdmx/allruby/report"
	"github.com/isdmx/allruby/submission"
)

// MockHandler implements Handler for testing
type MockHandler struct {
	response *submission.Response
	err      error
	got      submission.Submission
}

func (m *MockHandler) Handle(_ context.Context, sub submission.Submission, progress submission.ProgressFunc) (*submission.Response, error) {
	m.got = sub
	if progress != nil {
		progress(submission.ProgressStart)
		progress(submission.ProgressEnd)
	}
	return m.response, m.err
}

type notification struct {
	method string
	params map[string]any
}

type notifyRecorder struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (r *notifyRecorder) notify(_ context.Context, method string, params map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{method: method, params: params})
	return r.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			Backend:     "docker",
			TimeoutSec:  10,
			MemoryMB:    100,
			PidsLimit:   1024,
			InvokerPath: "/opt/allruby/invoker",
		},
		Images: []config.ImageConfig{
			{Name: "all-ruby", Image: "rubylang/all-ruby", Mode: config.ModeAll, Enabled: true},
		},
		Logging: config.LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func callRequest(args map[string]any, token mcp.ProgressToken) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = args
	if token != nil {
		req.Params.Meta = &mcp.Meta{ProgressToken: token}
	}
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	handler := &MockHandler{}

	server, err := New(cfg, logger, handler)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, handler, server.handler)
	assert.NotNil(t, server.GetMCPServer())
}

func TestHandleRunAllRuby(t *testing.T) {
	t.Run("ReportAsJSON", func(t *testing.T) {
		handler := &MockHandler{response: &submission.Response{
			Report: &report.Report{Attachments: []report.Attachment{{
				Title:    ":ok: 2.7,3.0",
				Text:     "```2```",
				Color:    report.ColorGood,
				MrkdwnIn: []string{"text"},
			}}},
		}}
		server, err := New(testConfig(), zaptest.NewLogger(t), handler)
		require.NoError(t, err)

		result, err := server.handleRunAllRuby(context.Background(),
			callRequest(map[string]any{"command": "-e 'p 2'", "program": "x"}, nil))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, submission.Submission{Command: "-e 'p 2'", Program: "x"}, handler.got)

		var decoded struct {
			Report struct {
				Attachments []map[string]any `json:"attachments"`
			} `json:"report"`
			Threaded bool `json:"threaded"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
		require.Len(t, decoded.Report.Attachments, 1)
		assert.Equal(t, ":ok: 2.7,3.0", decoded.Report.Attachments[0]["title"])
		assert.Equal(t, "good", decoded.Report.Attachments[0]["color"])
		assert.False(t, decoded.Threaded)
	})

	t.Run("TextResponse", func(t *testing.T) {
		handler := &MockHandler{response: &submission.Response{Text: "time limit exceeded (10 sec.)", Threaded: true}}
		server, err := New(testConfig(), zaptest.NewLogger(t), handler)
		require.NoError(t, err)

		result, err := server.handleRunAllRuby(context.Background(), callRequest(map[string]any{"command": "-v"}, nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"time limit exceeded (10 sec.)","threaded":true}`, resultText(t, result))
	})

	t.Run("NotACommand", func(t *testing.T) {
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockHandler{})
		require.NoError(t, err)

		result, err := server.handleRunAllRuby(context.Background(), callRequest(map[string]any{"command": "hello"}, nil))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "not a command")
	})

	t.Run("HandlerError", func(t *testing.T) {
		handler := &MockHandler{err: errors.New("submission canceled: context canceled")}
		server, err := New(testConfig(), zaptest.NewLogger(t), handler)
		require.NoError(t, err)

		result, err := server.handleRunAllRuby(context.Background(), callRequest(map[string]any{"command": "-v"}, nil))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "Execution failed: submission canceled: context canceled", resultText(t, result))
	})
}

func TestProgressNotifications(t *testing.T) {
	t.Run("ForwardedWithToken", func(t *testing.T) {
		recorder := &notifyRecorder{}
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockHandler{response: &submission.Response{Text: "ok"}})
		require.NoError(t, err)
		server.notify = recorder.notify

		_, err = server.handleRunAllRuby(context.Background(), callRequest(map[string]any{"command": "-v"}, "tok-1"))
		require.NoError(t, err)

		require.Len(t, recorder.sent, 2)
		for i, n := range recorder.sent {
			assert.Equal(t, "notifications/progress", n.method)
			assert.Equal(t, "tok-1", n.params["progressToken"])
			assert.Equal(t, i+1, n.params["progress"])
			assert.Equal(t, 2, n.params["total"])
		}
		assert.Equal(t, "start", recorder.sent[0].params["message"])
		assert.Equal(t, "end", recorder.sent[1].params["message"])
	})

	t.Run("NotSentWithoutToken", func(t *testing.T) {
		recorder := &notifyRecorder{}
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockHandler{response: &submission.Response{Text: "ok"}})
		require.NoError(t, err)
		server.notify = recorder.notify

		_, err = server.handleRunAllRuby(context.Background(), callRequest(map[string]any{"command": "-v"}, nil))
		require.NoError(t, err)
		assert.Empty(t, recorder.sent)
	})

	t.Run("SendFailureDoesNotFailTheRun", func(t *testing.T) {
		recorder := &notifyRecorder{err: errors.New("session not initialized")}
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockHandler{response: &submission.Response{Text: "ok"}})
		require.NoError(t, err)
		server.notify = recorder.notify

		result, err := server.handleRunAllRuby(context.Background(), callRequest(map[string]any{"command": "-v"}, 7))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Len(t, recorder.sent, 2)
	})
}

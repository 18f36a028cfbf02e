package sandbox

import (
	"context"
	"strings"
	"sync"
	"time"
)

type commandCall struct {
	timeout time.Duration
	args    []string
}

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	mu      sync.Mutex
	calls   []commandCall
	results map[string]struct {
		result CommandResult
		err    error
	}
	defaultResult CommandResult
	defaultErr    error
}

func (m *MockCommandRunner) on(prefix string, result CommandResult, err error) *MockCommandRunner {
	if m.results == nil {
		m.results = make(map[string]struct {
			result CommandResult
			err    error
		})
	}
	m.results[prefix] = struct {
		result CommandResult
		err    error
	}{result, err}
	return m
}

func (m *MockCommandRunner) RunCommand(_ context.Context, timeout time.Duration, args []string) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, commandCall{timeout: timeout, args: args})

	cmdKey := strings.Join(args, " ")
	for prefix, r := range m.results {
		if strings.HasPrefix(cmdKey, prefix) {
			return r.result, r.err
		}
	}
	return m.defaultResult, m.defaultErr
}

func (m *MockCommandRunner) recorded() []commandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]commandCall(nil), m.calls...)
}

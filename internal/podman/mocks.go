package podman

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(name string, args ...string) error {
	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	return result.Error(0)
}

func (m *MockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	if result.Get(0) == nil {
		return nil, result.Error(1)
	}
	return result.Get(0).([]byte), result.Error(1)
}

func (m *MockCommandRunner) RunAttached(ctx context.Context, name string, args ...string) error {
	callArgs := make([]interface{}, 0, len(args)+2)
	callArgs = append(callArgs, ctx, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	return result.Error(0)
}

// RecordingRunner records every invocation in order and returns canned
// errors per argv prefix. Lighter than MockCommandRunner when a test only
// cares about call ordering.
type RecordingRunner struct {
	Calls  [][]string
	Errors map[string]error
}

func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{Errors: make(map[string]error)}
}

func (r *RecordingRunner) record(name string, args ...string) error {
	argv := append([]string{name}, args...)
	r.Calls = append(r.Calls, argv)
	for prefix, err := range r.Errors {
		if matchesPrefix(argv, prefix) {
			return err
		}
	}
	return nil
}

func (r *RecordingRunner) Run(name string, args ...string) error {
	return r.record(name, args...)
}

func (r *RecordingRunner) Output(name string, args ...string) ([]byte, error) {
	err := r.record(name, args...)
	return nil, err
}

func (r *RecordingRunner) RunAttached(ctx context.Context, name string, args ...string) error {
	return r.record(name, args...)
}

func matchesPrefix(argv []string, prefix string) bool {
	joined := ""
	for i, a := range argv {
		if i > 0 {
			joined += " "
		}
		joined += a
		if joined == prefix {
			return true
		}
	}
	return false
}

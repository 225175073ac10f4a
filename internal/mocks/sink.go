package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// DiagnosticSink is a mock implementation of model.DiagnosticSink.
type DiagnosticSink struct {
	mock.Mock
}

func (m *DiagnosticSink) Record(ctx context.Context, op string, diag string, cause error) {
	m.Called(ctx, op, diag, cause)
}

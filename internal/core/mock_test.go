package core

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/neodatsu/itercraft/internal/model"
)

// mockTrigger implements WorkflowTrigger for testing.
type mockTrigger struct {
	mock.Mock
}

func (m *mockTrigger) DispatchWorkflow(ctx context.Context, cmd model.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

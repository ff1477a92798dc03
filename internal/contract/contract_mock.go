package contract

import (
	"context"

	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/mock"
)

// MockRollupScheduler is a mock implementation of RollupScheduler for testing.
type MockRollupScheduler struct {
	mock.Mock
}

var _ RollupScheduler = &MockRollupScheduler{} // Compile-time check

// Schedule implements the RollupScheduler interface.
func (m *MockRollupScheduler) Schedule(ctx context.Context, organizationID int64) {
	m.Called(ctx, organizationID)
}

// MockIntegritySink is a mock implementation of IntegritySink for testing.
type MockIntegritySink struct {
	mock.Mock
}

var _ IntegritySink = &MockIntegritySink{} // Compile-time check

// Record implements the IntegritySink interface.
func (m *MockIntegritySink) Record(ctx context.Context, v schema.IntegrityViolation) {
	m.Called(ctx, v)
}

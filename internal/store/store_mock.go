package store

import (
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetCompositionStore implements the StoreManager interface.
func (m *MockStoreManager) GetCompositionStore() contract.CompositionStore {
	ret := m.Called()
	s, _ := ret.Get(0).(contract.CompositionStore)
	return s
}

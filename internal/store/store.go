// Package store persists organizations, repositories, snapshots and code units.
package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// CompositionStoreManager owns the process-wide CompositionStore.
type CompositionStoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	store        contract.CompositionStore
}

var _ contract.StoreManager = &CompositionStoreManager{} // Compile-time check

// GetCompositionStore returns the active CompositionStore.
func (mgr *CompositionStoreManager) GetCompositionStore() contract.CompositionStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.store
}

// Global Manager instance for main logic.
var (
	Manager   = &CompositionStoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// NewCompositionStore opens a store for the backend. The none backend is kept in memory.
func NewCompositionStore(backend schema.DatabaseBackend, connStr string) (contract.CompositionStore, error) {
	switch backend {
	case schema.NoneBackend:
		return NewMemoryStore(), nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLStore(backend, connStr)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// InitStore initializes the global manager exactly once.
func InitStore(backend schema.DatabaseBackend, connStr string) error {
	var initErr error

	initOnce.Do(func() {
		s, err := NewCompositionStore(backend, connStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize composition store: %w", err)
			return
		}
		Manager.Lock()
		Manager.store = s
		Manager.Unlock()
	})

	return initErr
}

// CloseStore should be called on application shutdown.
func CloseStore() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
	})
}

// ClearStore removes all composition data for the backend.
// For SQLite, it deletes the database file.
// For MySQL and PostgreSQL, it drops the tables and the migration ledger.
// For NoneBackend, it does nothing.
func ClearStore(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		db, err := openDB(backend, connStr)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		for _, table := range append(dropOrder(), migrationsTable) {
			if err := dropTable(db, backend, table); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

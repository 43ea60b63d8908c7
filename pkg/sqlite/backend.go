// Package sqlite provides the public API for the SQLite teashelf store.
// It exposes the factory while keeping implementation details internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/internal/sqlite"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// NewStore creates a SQLite store for config. The store is not open; call
// Open before use.
//
// Example:
//
//	store := sqlite.NewStore(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: dir,
//	}, logger)
//	if err := store.Open(ctx); err != nil { ... }
//	defer store.Close()
func NewStore(config types.Config, logger *zap.Logger) types.Store {
	return sqlite.NewBackend(config, sqlite.WithLogger(logger))
}

package types

import (
	"errors"
	"fmt"
	"slices"
)

// BackendSQLite names the SQLite-backed durable store, the only backend
// teashelf ships.
const BackendSQLite = "sqlite"

// Backends lists the store backends a Config may name.
var Backends = []string{BackendSQLite}

// Errors returned by Config.Validate. Wrapped errors carry the offending
// value; match them with errors.Is.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDataDirEmpty   = errors.New("data directory must not be empty")
)

// Config selects the store backend and the directory holding its database.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Validate reports the first problem with c: the backend is checked before
// the data directory.
func (c Config) Validate() error {
	switch {
	case c.Backend == "":
		return ErrBackendEmpty
	case !slices.Contains(Backends, c.Backend):
		return fmt.Errorf("%w %q", ErrBackendUnknown, c.Backend)
	case c.DataDir == "":
		return ErrDataDirEmpty
	}
	return nil
}

// Package sqlite implements the SQLite storage backend for teashelf.
// The live collection lives in the teas table, one row per tea with the full
// record as a JSON document; the backup ring lives in the backups table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "teashelf.db"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Backend implements types.Store on top of SQLite.
type Backend struct {
	mu     sync.RWMutex // guards db
	config types.Config
	db     *sql.DB

	// writeMu serializes ReplaceAll calls; backupMu serializes
	// SnapshotBackup calls. The two touch disjoint tables.
	writeMu  sync.Mutex
	backupMu sync.Mutex
	lastTake int64

	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock overrides the clock used to key backup snapshots.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBackend creates a SQLite backend for config. The backend is not open;
// call Open before use.
func NewBackend(config types.Config, opts ...Option) *Backend {
	b := &Backend{
		config: config,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return filepath.Join(b.config.DataDir, DBFileName)
}

// Open creates the data directory if needed, opens the database, and applies
// pending schema migrations. Calling Open on an open backend is a no-op.
// Every failure wraps types.ErrStoreUnavailable.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return nil
	}

	if err := b.config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	if err := os.MkdirAll(b.config.DataDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating data dir: %w", types.ErrStoreUnavailable, err)
	}

	absPath, err := filepath.Abs(b.Path())
	if err != nil {
		return fmt.Errorf("%w: resolving database path: %w", types.ErrStoreUnavailable, err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", filepath.ToSlash(absPath))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("%w: opening database: %w", types.ErrStoreUnavailable, err)
	}
	// One connection: transactions are the unit of visibility and there is
	// never a second writer to contend with.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: pinging database: %w", types.ErrStoreUnavailable, err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	if err := b.loadLastTake(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	b.db = db
	b.logger.Debug("store opened", zap.String("path", absPath))
	return nil
}

// Close releases the database handle. After Close, operations return
// types.ErrStoreUnavailable. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// handle returns the open database or ErrStoreUnavailable.
// The caller must hold b.mu.
func (b *Backend) handle() (*sql.DB, error) {
	if b.db == nil {
		return nil, types.ErrStoreUnavailable
	}
	return b.db, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("initialising migrate driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	defer func() {
		_ = source.Close()
	}()

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// txFailed wraps err as a types.ErrTransactionFailed with context.
func txFailed(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrTransactionFailed, err)
}

var _ types.Store = (*Backend)(nil)

package types

import (
	"context"
	"time"
)

// MaxBackups is the capacity of the backup ring. Inserting a snapshot evicts
// everything older than the newest MaxBackups entries.
const MaxBackups = 5

// BackupInfo describes one snapshot in the backup ring.
type BackupInfo struct {
	TakenAt time.Time `json:"takenAt"`
	Count   int       `json:"count"`
}

// Store is the durable, crash-consistent home of the live collection and
// the backup ring. One Store is opened per process and shared explicitly.
//
// Every method that touches storage may fail with ErrStoreUnavailable (the
// store was never opened, failed to open, or is closed) or
// ErrTransactionFailed (the read or write aborted and prior durable state is
// intact).
type Store interface {
	// Open opens or creates the underlying storage, applying schema
	// migrations. Idempotent while the store is open.
	Open(ctx context.Context) error

	// ReadAll returns the full live collection. Callers must not rely on
	// its order. Returns an empty slice when nothing has been written.
	ReadAll(ctx context.Context) ([]Tea, error)

	// ReplaceAll atomically replaces the live collection. Readers observe
	// either the previous or the new collection, never a mix.
	ReplaceAll(ctx context.Context, teas []Tea) error

	// SnapshotBackup stores a copy of teas keyed by the current time and
	// prunes the ring to MaxBackups entries in the same transaction.
	SnapshotBackup(ctx context.Context, teas []Tea) (BackupInfo, error)

	// LatestBackup returns the newest snapshot. ok is false when the ring
	// is empty.
	LatestBackup(ctx context.Context) (teas []Tea, info BackupInfo, ok bool, err error)

	// ListBackups returns snapshot metadata, newest first.
	ListBackups(ctx context.Context) ([]BackupInfo, error)

	// Backup returns the snapshot taken at the given instant.
	// Returns ErrNotFound if no such snapshot is retained.
	Backup(ctx context.Context, takenAt time.Time) ([]Tea, error)

	// Close releases the storage handle. Idempotent.
	Close() error
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// SnapshotBackup writes a snapshot of teas keyed by the current time, then
// prunes the ring to the newest types.MaxBackups snapshots. Insert and prune
// share one transaction. Keys are strictly increasing even if the clock
// stalls or steps backwards.
func (b *Backend) SnapshotBackup(ctx context.Context, teas []types.Tea) (types.BackupInfo, error) {
	b.backupMu.Lock()
	defer b.backupMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.handle()
	if err != nil {
		return types.BackupInfo{}, err
	}

	key := b.now().UTC().UnixNano()
	if key <= b.lastTake {
		key = b.lastTake + 1
	}
	info := types.BackupInfo{TakenAt: time.Unix(0, key).UTC(), Count: len(teas)}

	if teas == nil {
		teas = []types.Tea{}
	}
	data, err := json.Marshal(teas)
	if err != nil {
		return types.BackupInfo{}, txFailed("encoding backup", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return types.BackupInfo{}, txFailed("beginning backup transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO backups (taken_at, taken_at_iso, tea_count, data) VALUES (?, ?, ?, ?)",
		key, info.TakenAt.Format(time.RFC3339Nano), info.Count, string(data)); err != nil {
		return types.BackupInfo{}, txFailed("inserting backup", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM backups WHERE taken_at NOT IN (
			SELECT taken_at FROM backups ORDER BY taken_at DESC LIMIT ?
		)`, types.MaxBackups)
	if err != nil {
		return types.BackupInfo{}, txFailed("pruning backups", err)
	}

	if err := tx.Commit(); err != nil {
		return types.BackupInfo{}, txFailed("committing backup transaction", err)
	}
	b.lastTake = key

	pruned, _ := res.RowsAffected()
	b.logger.Debug("backup written",
		zap.Time("taken_at", info.TakenAt),
		zap.Int("count", info.Count),
		zap.Int64("pruned", pruned))
	return info, nil
}

// LatestBackup returns the newest snapshot; ok is false when there is none.
func (b *Backend) LatestBackup(ctx context.Context) ([]types.Tea, types.BackupInfo, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.handle()
	if err != nil {
		return nil, types.BackupInfo{}, false, err
	}

	row := db.QueryRowContext(ctx,
		"SELECT taken_at, tea_count, data FROM backups ORDER BY taken_at DESC LIMIT 1")
	teas, info, err := scanBackup(row)
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.BackupInfo{}, false, nil
	}
	if err != nil {
		return nil, types.BackupInfo{}, false, err
	}
	return teas, info, true, nil
}

// Backup returns the snapshot keyed by takenAt.
// Returns types.ErrNotFound if it has been pruned or never existed.
func (b *Backend) Backup(ctx context.Context, takenAt time.Time) ([]types.Tea, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		"SELECT taken_at, tea_count, data FROM backups WHERE taken_at = ?", takenAt.UnixNano())
	teas, _, err := scanBackup(row)
	return teas, err
}

// ListBackups returns metadata for every retained snapshot, newest first.
func (b *Backend) ListBackups(ctx context.Context) ([]types.BackupInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT taken_at, tea_count FROM backups ORDER BY taken_at DESC")
	if err != nil {
		return nil, txFailed("listing backups", err)
	}
	defer rows.Close()

	infos := []types.BackupInfo{}
	for rows.Next() {
		var key int64
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, txFailed("scanning backup", err)
		}
		infos = append(infos, types.BackupInfo{TakenAt: time.Unix(0, key).UTC(), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, txFailed("listing backups", err)
	}
	return infos, nil
}

func scanBackup(row *sql.Row) ([]types.Tea, types.BackupInfo, error) {
	var key int64
	var count int
	var data string
	err := row.Scan(&key, &count, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.BackupInfo{}, types.ErrNotFound
	}
	if err != nil {
		return nil, types.BackupInfo{}, txFailed("reading backup", err)
	}
	var teas []types.Tea
	if err := json.Unmarshal([]byte(data), &teas); err != nil {
		return nil, types.BackupInfo{}, txFailed("decoding backup", err)
	}
	return teas, types.BackupInfo{TakenAt: time.Unix(0, key).UTC(), Count: count}, nil
}

// loadLastTake seeds the monotonic backup key from the newest stored
// snapshot so keys stay increasing across restarts.
func (b *Backend) loadLastTake(ctx context.Context, db *sql.DB) error {
	var last sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(taken_at) FROM backups").Scan(&last); err != nil {
		return fmt.Errorf("reading newest backup: %w", err)
	}
	b.lastTake = last.Int64
	return nil
}

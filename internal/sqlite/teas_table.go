package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// teaColumns lists the teas table columns written by ReplaceAll. Only data is
// read back; the other columns exist for indexed lookups.
var teaColumns = []string{"tea_id", "position", "name", "tea_type", "rating", "last_brewed", "data"}

// ReadAll returns every tea in the live table in insertion order.
// Returns an empty slice when the table is empty.
func (b *Backend) ReadAll(ctx context.Context) ([]types.Tea, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT tea_id, data FROM teas ORDER BY position")
	if err != nil {
		return nil, txFailed("reading teas", err)
	}
	defer rows.Close()

	teas := []types.Tea{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, txFailed("scanning tea", err)
		}
		var t types.Tea
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, txFailed(fmt.Sprintf("decoding tea %s", id), err)
		}
		teas = append(teas, t)
	}
	if err := rows.Err(); err != nil {
		return nil, txFailed("reading teas", err)
	}
	return teas, nil
}

// ReplaceAll clears the live table and inserts teas within one transaction.
// On any failure the transaction rolls back and the previous collection is
// left intact. Calls are serialized.
func (b *Backend) ReplaceAll(ctx context.Context, teas []types.Tea) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()

	db, err := b.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return txFailed("beginning replace transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM teas"); err != nil {
		return txFailed("clearing teas", err)
	}

	if err := insertTeas(ctx, tx, teas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return txFailed("committing replace transaction", err)
	}

	b.logger.Debug("collection replaced", zap.Int("count", len(teas)))
	return nil
}

// insertTeas bulk-inserts teas through one prepared statement. A duplicate id
// violates the primary key and aborts the whole insert.
func insertTeas(ctx context.Context, tx *sql.Tx, teas []types.Tea) error {
	placeholders := make([]string, len(teaColumns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO teas (%s) VALUES (%s)",
		joinColumns(teaColumns),
		joinColumns(placeholders),
	)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return txFailed("preparing tea insert", err)
	}
	defer stmt.Close()

	for i, t := range teas {
		data, err := json.Marshal(t)
		if err != nil {
			return txFailed(fmt.Sprintf("encoding tea %s", t.ID), err)
		}
		var lastBrewed sql.NullString
		if t.LastBrewed != "" {
			lastBrewed = sql.NullString{String: t.LastBrewed, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, i, t.Name, string(t.Type), t.Rating, lastBrewed, string(data)); err != nil {
			return txFailed(fmt.Sprintf("inserting tea %s", t.ID), err)
		}
	}
	return nil
}

// joinColumns joins column names with commas.
func joinColumns(cols []string) string {
	result := ""
	for i, c := range cols {
		if i > 0 {
			result += ", "
		}
		result += c
	}
	return result
}

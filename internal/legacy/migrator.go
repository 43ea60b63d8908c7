// Package legacy transplants a collection saved by the legacy key-value
// mechanism into the durable store, then retires the legacy key.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// Keys in the legacy key-value area.
const (
	// Key holds the legacy collection: a JSON array of tea records.
	Key = "teaInventory"
	// QuarantineKey receives records that failed validation during
	// migration, as a JSON array of the original raw objects.
	QuarantineKey = "teaInventory.quarantine"
)

var (
	errMissingSource = errors.New("legacy source is required")
	errMissingWriter = errors.New("store writer is required")
)

// Source is the legacy key-value area.
type Source interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Writer receives the migrated collection.
type Writer interface {
	ReplaceAll(ctx context.Context, teas []types.Tea) error
}

// Config wires a Migrator.
type Config struct {
	Source    Source
	Writer    Writer
	Validator types.Validator
	Logger    *zap.Logger
}

// Result summarizes one migration run.
type Result struct {
	Migrated int // Records written to the store.
	Dropped  int // Records quarantined for failing validation.
}

// Migrator performs the one-shot legacy transplant.
type Migrator struct {
	source    Source
	writer    Writer
	validator types.Validator
	logger    *zap.Logger
}

// NewMigrator validates cfg and returns a Migrator.
func NewMigrator(cfg Config) (*Migrator, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	if cfg.Writer == nil {
		return nil, errMissingWriter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		source:    cfg.Source,
		writer:    cfg.Writer,
		validator: cfg.Validator,
		logger:    logger,
	}, nil
}

// MigrateIfPresent moves the legacy collection into the store.
//
// An absent or empty legacy key is a no-op, as is a payload that is not a
// JSON array (it is logged and left in place). Otherwise every element is
// validated; failures are quarantined under QuarantineKey, survivors are
// written with ReplaceAll, and the legacy key is erased. The key is erased
// only after the write succeeds, so a failed run can be retried and a
// successful run is never repeated.
func (m *Migrator) MigrateIfPresent(ctx context.Context) (Result, error) {
	payload, ok, err := m.source.Get(Key)
	if err != nil {
		return Result{}, fmt.Errorf("reading legacy collection: %w", err)
	}
	if !ok || len(payload) == 0 {
		return Result{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		m.logger.Warn("legacy collection is not a JSON array; leaving it in place", zap.Error(err))
		return Result{}, nil
	}
	if len(records) == 0 {
		return Result{}, m.retire()
	}

	teas := make([]types.Tea, 0, len(records))
	var quarantined []json.RawMessage
	for i, raw := range records {
		t, err := m.validator.Decode(raw)
		if err != nil {
			m.logger.Warn("dropping invalid legacy record", zap.Int("index", i), zap.Error(err))
			quarantined = append(quarantined, raw)
			continue
		}
		teas = append(teas, t)
	}

	if len(quarantined) > 0 {
		data, err := json.Marshal(quarantined)
		if err != nil {
			return Result{}, fmt.Errorf("encoding quarantine: %w", err)
		}
		if err := m.source.Set(QuarantineKey, data); err != nil {
			return Result{}, fmt.Errorf("writing quarantine: %w", err)
		}
	}

	teas = dedupe(teas)
	if len(teas) > 0 {
		if err := m.writer.ReplaceAll(ctx, teas); err != nil {
			return Result{}, fmt.Errorf("writing migrated collection: %w", err)
		}
	}

	if err := m.retire(); err != nil {
		return Result{}, err
	}

	res := Result{Migrated: len(teas), Dropped: len(quarantined)}
	m.logger.Info("legacy collection migrated",
		zap.Int("migrated", res.Migrated),
		zap.Int("dropped", res.Dropped))
	return res, nil
}

func (m *Migrator) retire() error {
	if err := m.source.Remove(Key); err != nil {
		return fmt.Errorf("erasing legacy collection: %w", err)
	}
	return nil
}

// dedupe keeps the last record for each id, at the position of its first
// occurrence. The store rejects duplicate ids.
func dedupe(teas []types.Tea) []types.Tea {
	index := make(map[string]int, len(teas))
	out := make([]types.Tea, 0, len(teas))
	for _, t := range teas {
		if i, seen := index[t.ID]; seen {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

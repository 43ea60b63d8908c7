// Package collection holds the in-memory tea collection and is its sole
// mutator. Every mutation applies to memory synchronously and then hands a
// copy of the whole collection to a single-writer persistence queue.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/internal/codec"
	"github.com/mesh-intelligence/teashelf/internal/legacy"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// Store is the durable store as seen by the service.
type Store interface {
	Writer
	ReadAll(ctx context.Context) ([]types.Tea, error)
	LatestBackup(ctx context.Context) ([]types.Tea, types.BackupInfo, bool, error)
	Backup(ctx context.Context, takenAt time.Time) ([]types.Tea, error)
}

// Migrator transplants legacy data into the store.
type Migrator interface {
	MigrateIfPresent(ctx context.Context) (legacy.Result, error)
}

// IDProvider returns a fresh tea id.
type IDProvider func() (string, error)

// NewUUID returns a time-ordered UUID v7 string.
func NewUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}

// ServiceConfig wires a Service. Only Store is required for durability; a nil
// Store runs the service in memory only.
type ServiceConfig struct {
	Store    Store
	Migrator Migrator
	// Seed loads the sample teas when the store and the legacy area are
	// both empty.
	Seed bool
	// Validator checks created, updated, and imported records.
	Validator types.Validator
	Clock     func() time.Time
	NewID     IDProvider
	// OnDelete runs after a delete, whether or not the id existed. Errors
	// are logged.
	OnDelete func(id string) error
	Logger   *zap.Logger
}

// Source says where the collection came from at load time.
type Source string

// Load sources.
const (
	SourceStore  Source = "store"
	SourceLegacy Source = "legacy"
	SourceSeed   Source = "seed"
	SourceEmpty  Source = "empty"
)

// LoadResult describes a Load.
type LoadResult struct {
	Source   Source
	Count    int
	Migrated legacy.Result
	// Degraded is true when the store was unavailable and the session runs
	// in memory only.
	Degraded bool
}

// ImportResult counts the effect of a merge.
type ImportResult struct {
	Added   int
	Updated int
}

// Service is the collection's source of truth.
type Service struct {
	mu    sync.RWMutex
	teas  []types.Tea
	index map[string]int

	store     Store
	persist   *persister
	migrator  Migrator
	seed      bool
	validator types.Validator
	now       func() time.Time
	newID     IDProvider
	onDelete  func(id string) error
	logger    *zap.Logger
}

// NewService returns an empty service. Call Load to populate it.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		index:     map[string]int{},
		teas:      []types.Tea{},
		store:     cfg.Store,
		migrator:  cfg.Migrator,
		seed:      cfg.Seed,
		validator: cfg.Validator,
		now:       cfg.Clock,
		newID:     cfg.NewID,
		onDelete:  cfg.OnDelete,
		logger:    cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = NewUUID
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.store != nil {
		s.persist = newPersister(s.store, s.logger, s.now)
	}
	return s
}

// Load populates the collection: from the store if it holds anything, else
// from the legacy area, else from the sample teas when seeding is enabled.
// An unavailable store degrades the session to an empty, memory-only
// collection instead of failing. A failed migration leaves the collection empty and does not seed,
// so the legacy data is retried on the next start.
func (s *Service) Load(ctx context.Context) (LoadResult, error) {
	if s.store == nil {
		return s.loadInMemory(), nil
	}

	teas, err := s.store.ReadAll(ctx)
	if errors.Is(err, types.ErrStoreUnavailable) {
		s.logger.Warn("store unavailable; continuing in memory only", zap.Error(err))
		s.degrade(ctx)
		return s.loadInMemory(), nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("loading collection: %w", err)
	}
	if len(teas) > 0 {
		s.replace(teas, false)
		return LoadResult{Source: SourceStore, Count: len(teas)}, nil
	}

	if s.migrator != nil {
		res, err := s.migrator.MigrateIfPresent(ctx)
		if err != nil {
			s.logger.Warn("legacy migration failed; legacy data kept for next start", zap.Error(err))
			return LoadResult{Source: SourceEmpty}, nil
		}
		if res.Migrated > 0 {
			teas, err := s.store.ReadAll(ctx)
			if err != nil {
				return LoadResult{}, fmt.Errorf("loading migrated collection: %w", err)
			}
			s.replace(teas, false)
			return LoadResult{Source: SourceLegacy, Count: len(teas), Migrated: res}, nil
		}
	}

	if s.seed {
		teas, err := SampleTeas(s.newID)
		if err != nil {
			return LoadResult{}, err
		}
		s.replace(teas, true)
		return LoadResult{Source: SourceSeed, Count: len(teas)}, nil
	}
	return LoadResult{Source: SourceEmpty}, nil
}

// loadInMemory starts a degraded session with an empty collection. Samples
// are never seeded here; they belong to a durable shelf.
func (s *Service) loadInMemory() LoadResult {
	s.replace(nil, false)
	return LoadResult{Source: SourceEmpty, Degraded: true}
}

// degrade drops the store and its writer.
func (s *Service) degrade(ctx context.Context) {
	s.mu.Lock()
	p := s.persist
	s.persist = nil
	s.store = nil
	s.mu.Unlock()
	if p != nil {
		_ = p.close(ctx)
	}
}

// replace swaps in teas as the whole collection.
func (s *Service) replace(teas []types.Tea, persist bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(teas)
	if persist {
		s.persistLocked()
	}
}

func (s *Service) setLocked(teas []types.Tea) {
	s.teas = teas
	if s.teas == nil {
		s.teas = []types.Tea{}
	}
	s.reindexLocked()
}

func (s *Service) reindexLocked() {
	s.index = make(map[string]int, len(s.teas))
	for i, t := range s.teas {
		s.index[t.ID] = i
	}
}

// persistLocked queues a copy of the collection. The caller must hold s.mu
// for writing, which keeps submissions in mutation order.
func (s *Service) persistLocked() {
	if s.persist == nil {
		return
	}
	snapshot, err := copyTeas(s.teas)
	if err != nil {
		s.logger.Error("copying collection for persistence failed", zap.Error(err))
		return
	}
	s.persist.submit(snapshot)
}

// Create adds tea, generating an id when it has none.
// Returns types.ErrDuplicateID if the id is taken and a *types.ValidationError
// if the record is malformed.
func (s *Service) Create(tea types.Tea) (types.Tea, error) {
	if tea.ID == "" {
		id, err := s.newID()
		if err != nil {
			return types.Tea{}, err
		}
		tea.ID = id
	}
	if err := s.validator.Check(tea); err != nil {
		return types.Tea{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[tea.ID]; ok {
		return types.Tea{}, fmt.Errorf("%w: %s", types.ErrDuplicateID, tea.ID)
	}
	stored, err := copyTea(tea)
	if err != nil {
		return types.Tea{}, err
	}
	s.index[tea.ID] = len(s.teas)
	s.teas = append(s.teas, stored)
	s.persistLocked()
	return tea, nil
}

// Update replaces the tea with the same id, keeping its position.
// Returns types.ErrNotFound if no such tea exists.
func (s *Service) Update(tea types.Tea) (types.Tea, error) {
	if err := s.validator.Check(tea); err != nil {
		return types.Tea{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[tea.ID]
	if !ok {
		return types.Tea{}, fmt.Errorf("%w: %s", types.ErrNotFound, tea.ID)
	}
	stored, err := copyTea(tea)
	if err != nil {
		return types.Tea{}, err
	}
	s.teas[i] = stored
	s.persistLocked()
	return tea, nil
}

// Delete removes the tea with id. Deleting an unknown id is a no-op.
// It reports whether a tea was removed.
func (s *Service) Delete(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		s.teas = append(s.teas[:i], s.teas[i+1:]...)
		s.reindexLocked()
		s.persistLocked()
	}
	s.mu.Unlock()

	if s.onDelete != nil {
		if err := s.onDelete(id); err != nil {
			s.logger.Warn("delete hook failed", zap.String("id", id), zap.Error(err))
		}
	}
	return ok
}

// Get returns a copy of the tea with id, or types.ErrNotFound.
func (s *Service) Get(id string) (types.Tea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return types.Tea{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return copyTea(s.teas[i])
}

// List returns a copy of the collection in display order.
func (s *Service) List() ([]types.Tea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTeas(s.teas)
}

// Snapshot returns a copy of the current collection for backups.
func (s *Service) Snapshot(_ context.Context) ([]types.Tea, error) {
	return s.List()
}

// Len returns the number of teas.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teas)
}

// RecordBrew logs a brew of amount from the tea with id: it appends a
// history entry, decrements the stock (floored at zero), bumps the brew
// count, and sets lastBrewed.
func (s *Service) RecordBrew(id string, amount float64) (types.Tea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return types.Tea{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	t, err := copyTea(s.teas[i])
	if err != nil {
		return types.Tea{}, err
	}
	if _, err := t.RecordBrew(amount, s.now()); err != nil {
		return types.Tea{}, err
	}
	s.teas[i] = t
	s.persistLocked()
	return copyTea(t)
}

// ImportMerge validates every record before touching the collection. If
// any record fails, nothing is merged and a *types.ImportError lists every
// failure. Otherwise each record overwrites the tea with the same id or is
// appended.
func (s *Service) ImportMerge(records []json.RawMessage) (ImportResult, error) {
	teas := make([]types.Tea, 0, len(records))
	var failures []types.RecordFailure
	for i, raw := range records {
		t, err := s.validator.Decode(raw)
		if err != nil {
			failures = append(failures, recordFailure(i, raw, err))
			continue
		}
		teas = append(teas, t)
	}
	if len(failures) > 0 {
		return ImportResult{}, &types.ImportError{Failures: failures}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var res ImportResult
	for _, t := range teas {
		if i, ok := s.index[t.ID]; ok {
			s.teas[i] = t
			res.Updated++
			continue
		}
		s.index[t.ID] = len(s.teas)
		s.teas = append(s.teas, t)
		res.Added++
	}
	if len(teas) > 0 {
		s.persistLocked()
	}
	s.logger.Info("import merged", zap.Int("added", res.Added), zap.Int("updated", res.Updated))
	return res, nil
}

// ImportFrom decodes an import payload from r and merges it.
func (s *Service) ImportFrom(r io.Reader) (ImportResult, error) {
	records, err := codec.DecodeImport(r)
	if err != nil {
		return ImportResult{}, err
	}
	return s.ImportMerge(records)
}

func recordFailure(index int, raw json.RawMessage, err error) types.RecordFailure {
	f := types.RecordFailure{Index: index, Reason: err.Error()}
	var probe struct {
		ID any `json:"id"`
	}
	if json.Unmarshal(raw, &probe) == nil {
		if id, ok := probe.ID.(string); ok {
			f.ID = id
		}
	}
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		f.Field = verr.Field
		f.Reason = verr.Reason
	}
	return f
}

// Export writes the teas with the given ids to w; nil ids exports all.
func (s *Service) Export(w io.Writer, format codec.Format, ids []string) error {
	teas, err := s.List()
	if err != nil {
		return err
	}
	return codec.Export(w, format, codec.Select(teas, ids))
}

// RestoreLatest replaces the collection with the newest backup.
// Returns types.ErrNotFound if there are no backups and
// types.ErrStoreUnavailable in a memory-only session.
func (s *Service) RestoreLatest(ctx context.Context) (types.BackupInfo, error) {
	store := s.currentStore()
	if store == nil {
		return types.BackupInfo{}, types.ErrStoreUnavailable
	}
	teas, info, ok, err := store.LatestBackup(ctx)
	if err != nil {
		return types.BackupInfo{}, err
	}
	if !ok {
		return types.BackupInfo{}, fmt.Errorf("%w: no backups", types.ErrNotFound)
	}
	s.replace(teas, true)
	s.logger.Info("collection restored from backup",
		zap.Time("taken_at", info.TakenAt), zap.Int("count", len(teas)))
	return info, nil
}

// RestoreBackup replaces the collection with the backup taken at takenAt.
func (s *Service) RestoreBackup(ctx context.Context, takenAt time.Time) (int, error) {
	store := s.currentStore()
	if store == nil {
		return 0, types.ErrStoreUnavailable
	}
	teas, err := store.Backup(ctx, takenAt)
	if err != nil {
		return 0, err
	}
	s.replace(teas, true)
	s.logger.Info("collection restored from backup",
		zap.Time("taken_at", takenAt), zap.Int("count", len(teas)))
	return len(teas), nil
}

func (s *Service) currentStore() Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// DurableSnapshot returns the collection as committed to the store. Pending
// writes from this service are drained first, so the result also covers
// changes made by other processes sharing the store. It fails with
// types.ErrStoreUnavailable when the service runs in memory only.
func (s *Service) DurableSnapshot(ctx context.Context) ([]types.Tea, error) {
	store := s.currentStore()
	if store == nil {
		return nil, types.ErrStoreUnavailable
	}
	if err := s.Flush(ctx); err != nil {
		return nil, fmt.Errorf("saving pending changes: %w", err)
	}
	return store.ReadAll(ctx)
}

// PersistStatus reports the persistence queue's health.
func (s *Service) PersistStatus() PersistStatus {
	s.mu.RLock()
	p := s.persist
	s.mu.RUnlock()
	if p == nil {
		return PersistStatus{Degraded: true}
	}
	return p.snapshotStatus()
}

// Flush waits until every mutation made before the call has been written
// and returns the newest write error, if any.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.RLock()
	p := s.persist
	s.mu.RUnlock()
	if p == nil {
		return nil
	}
	return p.flush(ctx)
}

// Close flushes pending writes and stops the writer. The service stays
// readable; later mutations are kept in memory only.
func (s *Service) Close(ctx context.Context) error {
	s.mu.RLock()
	p := s.persist
	s.mu.RUnlock()
	if p == nil {
		return nil
	}
	return p.close(ctx)
}

func copyTea(t types.Tea) (types.Tea, error) {
	var out types.Tea
	if err := deepcopy.Copy(&out, &t); err != nil {
		return types.Tea{}, fmt.Errorf("copying tea %s: %w", t.ID, err)
	}
	return out, nil
}

func copyTeas(teas []types.Tea) ([]types.Tea, error) {
	out := make([]types.Tea, 0, len(teas))
	if err := deepcopy.Copy(&out, teas); err != nil {
		return nil, fmt.Errorf("copying collection: %w", err)
	}
	if out == nil {
		out = []types.Tea{}
	}
	return out, nil
}

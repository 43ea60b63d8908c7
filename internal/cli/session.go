package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/internal/backup"
	"github.com/mesh-intelligence/teashelf/internal/collection"
	"github.com/mesh-intelligence/teashelf/internal/kvstore"
	"github.com/mesh-intelligence/teashelf/internal/legacy"
	"github.com/mesh-intelligence/teashelf/internal/paths"
	"github.com/mesh-intelligence/teashelf/internal/preferences"
	"github.com/mesh-intelligence/teashelf/internal/sqlite"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// session is one opened collection: the durable store (nil when degraded),
// the key-value area, preferences, and the loaded service.
type session struct {
	store  *sqlite.Backend
	kv     *kvstore.Store
	prefs  *preferences.Store
	svc    *collection.Service
	load   collection.LoadResult
	logger *zap.Logger
}

// openSession opens the store, migrates legacy data, and loads the
// collection. An unavailable store degrades the session to memory only; the
// caller decides whether that is acceptable for its command.
func (a *app) openSession(ctx context.Context) (*session, error) {
	s := &session{logger: a.logger}

	kv, err := kvstore.Open(paths.KVDir(a.settings.DataDir))
	if err != nil {
		return nil, sysError(fmt.Errorf("opening key-value area: %w", err))
	}
	s.kv = kv

	prefs, err := preferences.New(preferences.Config{KV: kv, Logger: a.logger})
	if err != nil {
		return nil, sysError(err)
	}
	s.prefs = prefs

	store := sqlite.NewBackend(types.Config{
		Backend: types.BackendSQLite,
		DataDir: a.settings.DataDir,
	}, sqlite.WithLogger(a.logger))
	if err := store.Open(ctx); err != nil {
		if !errors.Is(err, types.ErrStoreUnavailable) {
			return nil, err
		}
		a.logger.Warn("store unavailable; changes will not be saved", zap.Error(err))
	} else {
		s.store = store
	}

	cfg := collection.ServiceConfig{
		Seed:      a.settings.SeedSamples,
		Validator: types.StrictValidator,
		OnDelete:  prefs.RemoveFavorite,
		Logger:    a.logger,
	}
	if s.store != nil {
		migrator, err := legacy.NewMigrator(legacy.Config{
			Source:    kv,
			Writer:    s.store,
			Validator: types.StrictValidator,
			Logger:    a.logger,
		})
		if err != nil {
			_ = s.store.Close()
			return nil, sysError(err)
		}
		cfg.Store = s.store
		cfg.Migrator = migrator
	}
	s.svc = collection.NewService(cfg)

	res, err := s.svc.Load(ctx)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.load = res
	a.logger.Debug("collection loaded",
		zap.String("source", string(res.Source)),
		zap.Int("count", res.Count),
		zap.Bool("degraded", res.Degraded))

	if a.settings.BackupOnStart && s.store != nil && !res.Degraded {
		if _, err := s.backupNow(ctx); err != nil {
			a.logger.Warn("startup backup failed", zap.Error(err))
		}
	}
	return s, nil
}

// requireDurable fails when the session could not reach the store.
func (s *session) requireDurable() error {
	if s.store == nil || s.load.Degraded {
		return sysError(types.ErrStoreUnavailable)
	}
	return nil
}

// scheduler builds a backup scheduler over the durable collection. Every
// snapshot rereads the store, so edits made by other invocations while a
// long-running scheduler is up are included.
func (s *session) scheduler(interval time.Duration) (*backup.Scheduler, error) {
	if err := s.requireDurable(); err != nil {
		return nil, err
	}
	return backup.NewScheduler(backup.Config{
		Source:   backup.SourceFunc(s.svc.DurableSnapshot),
		Writer:   s.store,
		Interval: interval,
		Logger:   s.logger,
	})
}

// backupNow saves pending changes and snapshots the stored collection.
func (s *session) backupNow(ctx context.Context) (types.BackupInfo, error) {
	sched, err := s.scheduler(0)
	if err != nil {
		return types.BackupInfo{}, err
	}
	return sched.RunOnce(ctx)
}

// close drains the persistence queue and releases the store. Errors are
// logged; a failed final write surfaces through commit.
func (s *session) close(ctx context.Context) {
	if s.svc != nil {
		if err := s.svc.Close(ctx); err != nil {
			s.logger.Error("closing collection", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", zap.Error(err))
		}
	}
}

// commit waits for every queued write and reports the last failure.
func (s *session) commit(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.svc.Flush(ctx); err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}

// withSession opens a session, runs fn, commits, and closes.
func (a *app) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := fn(s); err != nil {
		return err
	}
	return s.commit(ctx)
}

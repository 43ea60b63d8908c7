// Package backup takes periodic snapshots of the live collection into the
// store's bounded backup ring.
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// DefaultInterval is the time between scheduled snapshots.
const DefaultInterval = time.Hour

var (
	errMissingSource = errors.New("backup source is required")
	errMissingWriter = errors.New("backup writer is required")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("backup scheduler already running")
)

// Source supplies the collection to back up. It is read at every tick, so
// each snapshot holds the collection as of that moment.
type Source interface {
	Snapshot(ctx context.Context) ([]types.Tea, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]types.Tea, error)

// Snapshot calls f.
func (f SourceFunc) Snapshot(ctx context.Context) ([]types.Tea, error) {
	return f(ctx)
}

// Writer stores a snapshot in the backup ring.
type Writer interface {
	SnapshotBackup(ctx context.Context, teas []types.Tea) (types.BackupInfo, error)
}

// Config wires a Scheduler.
type Config struct {
	Source   Source
	Writer   Writer
	Interval time.Duration // DefaultInterval when zero
	Logger   *zap.Logger
}

// Outcome is the result of the newest snapshot attempt.
type Outcome string

// Outcomes.
const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Status is the scheduler's backup readout.
type Status struct {
	Running bool
	// LastBackup is when the newest successful snapshot was taken; zero if
	// none has succeeded.
	LastBackup time.Time
	LastCount  int
	Outcome    Outcome
	LastError  error
}

// Scheduler snapshots the collection on start and then every interval.
type Scheduler struct {
	source   Source
	writer   Writer
	interval time.Duration
	logger   *zap.Logger

	group singleflight.Group

	mu     sync.Mutex
	status Status
	run    uint64 // id of the current run; bumped by Start
	cancel context.CancelFunc
	done   chan struct{} // closed when the current run's loop exits
}

// NewScheduler validates cfg and returns a stopped Scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	if cfg.Writer == nil {
		return nil, errMissingWriter
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("backup interval must not be negative: %s", cfg.Interval)
	}
	s := &Scheduler{
		source:   cfg.Source,
		writer:   cfg.Writer,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
	if s.interval == 0 {
		s.interval = DefaultInterval
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Interval returns the time between scheduled snapshots.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start takes a snapshot immediately, then one per interval, until ctx is
// cancelled or Stop is called. Failed snapshots are recorded in Status and
// do not stop the schedule. Once the run ends the scheduler can be started
// again.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.run++
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status.Running = true

	go s.loop(runCtx, s.run, s.done)

	s.logger.Info("backup scheduler started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, run uint64, done chan struct{}) {
	defer close(done)
	defer s.finish(run)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_, _ = s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// finish clears the running state of run unless a newer run replaced it.
func (s *Scheduler) finish(run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != run {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.status.Running = false
	s.logger.Info("backup scheduler stopped")
}

// Stop cancels the schedule and waits for the loop to exit; no snapshot
// starts after Stop returns. Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce takes a snapshot now. Concurrent calls, scheduled or manual, share
// a single snapshot and its result.
func (s *Scheduler) RunOnce(ctx context.Context) (types.BackupInfo, error) {
	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		return s.snapshot(ctx)
	})
	info, _ := v.(types.BackupInfo)
	return info, err
}

func (s *Scheduler) snapshot(ctx context.Context) (types.BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.BackupInfo{}, err
	}

	teas, err := s.source.Snapshot(ctx)
	if err == nil {
		var info types.BackupInfo
		info, err = s.writer.SnapshotBackup(ctx, teas)
		if err == nil {
			s.record(info, nil)
			s.logger.Info("backup taken",
				zap.Time("taken_at", info.TakenAt), zap.Int("count", info.Count))
			return info, nil
		}
	}

	err = fmt.Errorf("taking backup: %w", err)
	s.record(types.BackupInfo{}, err)
	s.logger.Error("backup failed", zap.Error(err))
	return types.BackupInfo{}, err
}

func (s *Scheduler) record(info types.BackupInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.Outcome = OutcomeError
		s.status.LastError = err
		return
	}
	s.status.Outcome = OutcomeSuccess
	s.status.LastError = nil
	s.status.LastBackup = info.TakenAt
	s.status.LastCount = info.Count
}

// Status returns the backup readout.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

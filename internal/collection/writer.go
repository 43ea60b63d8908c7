package collection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// Writer receives full collection snapshots from the persistence queue.
type Writer interface {
	ReplaceAll(ctx context.Context, teas []types.Tea) error
}

// PersistStatus reports the health of the persistence queue.
type PersistStatus struct {
	// Degraded is true when there is no durable store and changes live in
	// memory only.
	Degraded bool
	// Pending is true while a requested state has not been written yet.
	Pending bool
	// LastPersisted is when the newest successful write committed.
	LastPersisted time.Time
	// LastError is the error of the newest write attempt, nil on success.
	LastError error
	// Failures counts failed write attempts since start.
	Failures int
}

// persister is a single-writer queue. Each submit replaces the pending
// state, so a burst of mutations coalesces into one write of the newest
// collection. Writes never overlap and the last committed state is always
// the last requested one.
type persister struct {
	store  Writer
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	next      []types.Tea
	requested uint64 // generation of next
	done      uint64 // newest generation attempted
	closed    bool
	status    PersistStatus
	settled   chan struct{} // closed and replaced whenever done advances

	wake   chan struct{}
	stop   chan struct{}
	exited chan struct{}
}

func newPersister(store Writer, logger *zap.Logger, now func() time.Time) *persister {
	p := &persister{
		store:   store,
		logger:  logger,
		now:     now,
		settled: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go p.run()
	return p
}

// submit queues teas for writing. The caller must not modify teas
// afterwards.
func (p *persister) submit(teas []types.Tea) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("persistence queue closed; change kept in memory only")
		return
	}
	p.next = teas
	p.requested++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.exited)
	for {
		select {
		case <-p.wake:
			p.commitLatest()
		case <-p.stop:
			p.commitLatest()
			return
		}
	}
}

func (p *persister) commitLatest() {
	p.mu.Lock()
	teas, gen := p.next, p.requested
	if gen == p.done {
		p.mu.Unlock()
		return
	}
	p.next = nil
	p.mu.Unlock()

	err := p.store.ReplaceAll(context.Background(), teas)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = gen
	if err != nil {
		p.status.LastError = err
		p.status.Failures++
		p.logger.Error("persisting collection failed; in-memory state kept",
			zap.Uint64("generation", gen), zap.Error(err))
	} else {
		p.status.LastError = nil
		p.status.LastPersisted = p.now()
		p.logger.Debug("collection persisted",
			zap.Uint64("generation", gen), zap.Int("count", len(teas)))
	}
	close(p.settled)
	p.settled = make(chan struct{})
}

// flush waits until every state requested before the call has been
// attempted and returns the outcome of the newest attempt.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.requested
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if p.done >= target {
			err := p.status.LastError
			p.mu.Unlock()
			return err
		}
		ch := p.settled
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close flushes, then stops the writer goroutine. Later submits are dropped.
func (p *persister) close(ctx context.Context) error {
	err := p.flush(ctx)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return err
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	select {
	case <-p.exited:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (p *persister) snapshotStatus() PersistStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	st.Pending = p.done < p.requested
	return st
}

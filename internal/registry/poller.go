package registry

import (
	"context"
	"sync"
	"time"

	"github.com/scribeapp/scribe/internal/log"
)

// Client is the slice of the indexer service the poller needs.
// Implemented by internal/indexer.
type Client interface {
	// Files fetches the full current snapshot of file records.
	Files(ctx context.Context) ([]FileRecord, error)
	// Remove deletes one document by path.
	Remove(ctx context.Context, filePath string) error
}

// Poller drives a Reconciler from fixed-interval snapshot polls.
//
// Each dispatched fetch is stamped with a monotonically increasing
// sequence, and a response is applied only if no later response landed
// first. A slow poll overtaken by a faster newer one is discarded
// instead of reverting the registry to stale data.
//
// There is no backoff on failed polls: the interval keeps ticking and
// each failure is logged. A poll may still be in flight when the next
// tick fires; overlapping fetches are tolerated because application is
// sequence-guarded.
type Poller struct {
	client   Client
	rec      *Reconciler
	interval time.Duration
	logger   log.Logger

	// trigger accepts out-of-band poll requests (fire-and-forget).
	trigger chan struct{}

	mu          sync.Mutex
	dispatched  uint64
	lastApplied uint64

	wg sync.WaitGroup
}

// NewPoller creates a Poller. Run must be called to start polling.
func NewPoller(client Client, rec *Reconciler, interval time.Duration, logger log.Logger) *Poller {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Poller{
		client:   client,
		rec:      rec,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Run polls until ctx is canceled: once immediately, then on every
// interval tick and on every Trigger. It returns after the ticker is
// released and all in-flight fetches have finished.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.dispatch(ctx)
		case <-p.trigger:
			p.dispatch(ctx)
		}
	}
}

// Trigger requests an immediate out-of-band poll. Never blocks; if a
// trigger is already pending the request coalesces into it.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// RemoveByPath asks the indexer to delete one document and, on success,
// schedules an immediate poll instead of waiting for the next tick.
func (p *Poller) RemoveByPath(ctx context.Context, filePath string) error {
	if err := p.client.Remove(ctx, filePath); err != nil {
		return err
	}
	p.Trigger()
	return nil
}

// dispatch starts one fetch. Fetches run concurrently with the tick
// loop so a slow indexer response never delays the cadence.
func (p *Poller) dispatch(ctx context.Context) {
	p.mu.Lock()
	p.dispatched++
	seq := p.dispatched
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		snapshot, err := p.client.Files(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("registry poll failed", "seq", seq, "error", err)
			}
			return
		}
		p.apply(seq, snapshot)
	}()
}

// apply installs a snapshot unless a later-dispatched response already
// landed. The mutex is held across Reconcile so the stale check and the
// installation are one atomic step.
func (p *Poller) apply(seq uint64, snapshot []FileRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.lastApplied {
		p.logger.Debug("discarding stale poll response", "seq", seq)
		return
	}
	p.lastApplied = seq
	p.rec.Reconcile(snapshot)
}

// Package registry mirrors the indexer service's view of the user's
// documents on the client.
//
// Responsibilities: hold the file registry, replace it from polled
// snapshots while suppressing no-op updates, and expose aggregate
// indexing statistics.
// Thread Safety: all state is mutex-owned.
//
// The registry is always a wholesale replacement of the previous
// snapshot. There is no partial-update protocol: records are never
// patched field-by-field, so a returned slice is immutable and safe to
// share with readers.
package registry

import (
	"math"
	"path"
	"sync"

	"github.com/scribeapp/scribe/internal/log"
)

// Status is the server-authoritative indexing state of one document.
// The client never initiates a transition.
type Status string

// Closed set of file statuses.
const (
	StatusUploaded Status = "uploaded"
	StatusIndexing Status = "indexing"
	StatusIndexed  Status = "indexed"
	StatusFailed   Status = "failed"
)

// FileRecord is one document known to the indexer. Path is the unique
// key. IndexingSeconds is present only once the file is indexed.
type FileRecord struct {
	Path            string   `json:"path"`
	Status          Status   `json:"status"`
	IndexingSeconds *float64 `json:"indexing_time_seconds"`
	LastUpdated     int64    `json:"last_updated"`
}

// Name returns the last path segment, used as the display label.
func (f FileRecord) Name() string {
	return path.Base(f.Path)
}

// Equal reports structural equality, comparing the optional indexing
// duration by value rather than by pointer.
func (f FileRecord) Equal(o FileRecord) bool {
	if f.Path != o.Path || f.Status != o.Status || f.LastUpdated != o.LastUpdated {
		return false
	}
	switch {
	case f.IndexingSeconds == nil && o.IndexingSeconds == nil:
		return true
	case f.IndexingSeconds == nil || o.IndexingSeconds == nil:
		return false
	default:
		return *f.IndexingSeconds == *o.IndexingSeconds
	}
}

// Stats aggregates indexing timings over the current registry,
// mirroring the indexer's stats endpoint. Durations are rounded to two
// decimal places; the average covers only files that carry a timing.
type Stats struct {
	TotalFiles             int
	TotalIndexingSeconds   float64
	AverageIndexingSeconds float64
}

// Reconciler owns the client-held file registry.
type Reconciler struct {
	mu      sync.RWMutex
	records []FileRecord
	loaded  bool

	logger log.Logger

	// updates carries coalesced change notifications; no notification
	// is emitted for a snapshot identical to the held registry.
	updates chan struct{}
}

// New creates an empty Reconciler. Loading reports true until the first
// snapshot is applied.
func New(logger log.Logger) *Reconciler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Reconciler{
		logger:  logger,
		updates: make(chan struct{}, 1),
	}
}

// Reconcile folds one polled snapshot into the registry and reports
// whether anything changed.
//
// A snapshot structurally identical to the held registry keeps the
// existing slice reference and emits no update. This is a contract, not
// an optimization nicety: downstream consumers must not observe churn
// on every poll tick. A differing snapshot replaces the registry
// atomically.
func (r *Reconciler) Reconcile(snapshot []FileRecord) bool {
	r.mu.Lock()

	first := !r.loaded
	r.loaded = true

	if !first && recordsEqual(r.records, snapshot) {
		r.mu.Unlock()
		return false
	}

	// Defensive copy: the caller keeps ownership of its slice.
	replacement := make([]FileRecord, len(snapshot))
	copy(replacement, snapshot)
	r.records = replacement
	r.mu.Unlock()

	r.notify()
	return true
}

// Records returns the held registry. The slice is replaced wholesale on
// change and never mutated in place, so callers may retain it; an
// unchanged registry returns the identical slice across calls.
func (r *Reconciler) Records() []FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records
}

// Loading reports whether the first snapshot is still outstanding.
// Drives the one-time loading indicator on registry creation.
func (r *Reconciler) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.loaded
}

// Stats computes aggregate indexing statistics from the held registry.
func (r *Reconciler) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{TotalFiles: len(r.records)}
	timed := 0
	for _, rec := range r.records {
		if rec.IndexingSeconds != nil {
			s.TotalIndexingSeconds += *rec.IndexingSeconds
			timed++
		}
	}
	if timed > 0 {
		s.AverageIndexingSeconds = round2(s.TotalIndexingSeconds / float64(timed))
	}
	s.TotalIndexingSeconds = round2(s.TotalIndexingSeconds)
	return s
}

// Updates exposes coalesced change notifications.
func (r *Reconciler) Updates() <-chan struct{} {
	return r.updates
}

func (r *Reconciler) notify() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

func recordsEqual(a, b []FileRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

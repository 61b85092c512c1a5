// Package transfer manages one upload batch's lifecycle: file
// selection, the in-flight progress percentage, and the terminal
// outcome.
//
// Thread Safety: all state is mutex-owned; progress and completion
// callbacks for a single transfer never interleave.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scribeapp/scribe/internal/log"
)

var (
	// ErrUnsupportedFile rejects a selection whose suffix is not in the
	// supported set.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrDuplicateFile rejects a path that is already in the batch.
	ErrDuplicateFile = errors.New("file already selected")

	// ErrEmptySelection rejects starting a transfer with no files.
	ErrEmptySelection = errors.New("no files selected")

	// ErrTransferPending rejects starting while a transfer is in
	// flight. This is a hard reject, not a queue.
	ErrTransferPending = errors.New("a transfer is already in progress")
)

// supportedSuffixes is the indexable document allow-list, matched
// case-insensitively against the selected file name.
var supportedSuffixes = []string{
	".pdf", ".xls", ".xlsx", ".doc", ".docx",
	".txt", ".md", ".csv", ".ppt", ".pptx",
}

// Outcome is the terminal state of one transfer.
type Outcome string

// Transfer outcomes. OutcomeIdle is the zero state before Start.
const (
	OutcomeIdle      Outcome = "idle"
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Selection is one queued file, identified independently of its path so
// deselection is unambiguous.
type Selection struct {
	ID   uuid.UUID
	Path string
}

// Uploader posts one multipart batch to the indexer, reporting byte
// progress. Implemented by internal/indexer.
type Uploader interface {
	Upload(ctx context.Context, paths []string, progress func(loaded, total int64)) (int, error)
}

// Tracker owns the state of one upload batch.
type Tracker struct {
	mu        sync.Mutex
	selection []Selection
	percent   int
	outcome   Outcome
	lastError string

	uploader  Uploader
	onSuccess func() // fire-and-forget registry refresh trigger
	logger    log.Logger

	updates chan struct{}
	wg      sync.WaitGroup
}

// New creates a Tracker. onSuccess may be nil; when set it is invoked
// once per successful transfer and must not block.
func New(uploader Uploader, onSuccess func(), logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Tracker{
		uploader:  uploader,
		onSuccess: onSuccess,
		outcome:   OutcomeIdle,
		logger:    logger,
		updates:   make(chan struct{}, 1),
	}
}

// Supported reports whether the file name carries an indexable suffix.
func Supported(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range supportedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Select admits a file into the batch. Unsupported suffixes and paths
// already queued are rejected with a user-visible error; the batch is
// left unchanged in both cases.
func (t *Tracker) Select(path string) (Selection, error) {
	if !Supported(path) {
		return Selection{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, path)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sel := range t.selection {
		if sel.Path == path {
			return Selection{}, fmt.Errorf("%w: %q", ErrDuplicateFile, path)
		}
	}

	sel := Selection{ID: uuid.New(), Path: path}
	t.selection = append(t.selection, sel)
	t.notifyLocked()
	return sel, nil
}

// Deselect removes one file from the batch by identifier. Reports
// whether anything was removed; an absent ID is a no-op.
func (t *Tracker) Deselect(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sel := range t.selection {
		if sel.ID == id {
			t.selection = append(t.selection[:i], t.selection[i+1:]...)
			t.notifyLocked()
			return true
		}
	}
	return false
}

// Start posts the selected files as one multipart batch.
//
// Fails fast with no network call on an empty selection or while a
// transfer is pending. The upload itself runs in the background; its
// progress and completion land via the tracker's callbacks.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.outcome == OutcomePending {
		t.mu.Unlock()
		return ErrTransferPending
	}
	if len(t.selection) == 0 {
		t.mu.Unlock()
		return ErrEmptySelection
	}

	paths := make([]string, len(t.selection))
	for i, sel := range t.selection {
		paths[i] = sel.Path
	}
	t.outcome = OutcomePending
	t.percent = 0
	t.lastError = ""
	t.notifyLocked()
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		count, err := t.uploader.Upload(ctx, paths, t.onProgress)
		t.onComplete(count, err)
	}()
	return nil
}

// onProgress folds one byte-progress notification into the bounded
// percentage. Notifications without a computable total are ignored, and
// the percentage never regresses within a transfer.
func (t *Tracker) onProgress(loaded, total int64) {
	if total <= 0 {
		return
	}
	pct := int(math.Round(float64(loaded) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome != OutcomePending || pct <= t.percent {
		return
	}
	t.percent = pct
	t.notifyLocked()
}

// onComplete resolves the transfer. Success clears the batch and
// triggers a registry refresh; failure keeps the selection so the user
// can retry without re-selecting, and surfaces the server's error text
// verbatim.
func (t *Tracker) onComplete(count int, err error) {
	t.mu.Lock()
	if err != nil {
		t.outcome = OutcomeFailed
		t.lastError = err.Error()
		t.notifyLocked()
		t.mu.Unlock()
		t.logger.Error("upload failed", "error", err)
		return
	}

	t.outcome = OutcomeSucceeded
	t.selection = nil
	t.percent = 0
	t.notifyLocked()
	t.mu.Unlock()

	t.logger.Info("upload complete", "files", count)
	if t.onSuccess != nil {
		t.onSuccess()
	}
}

// Clear discards the batch on explicit cancel. Rejected while a
// transfer is in flight (in-flight cancellation is unsupported; only
// pre-send deselection is).
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome == OutcomePending {
		return ErrTransferPending
	}
	t.selection = nil
	t.percent = 0
	t.outcome = OutcomeIdle
	t.lastError = ""
	t.notifyLocked()
	return nil
}

// Selected returns a copy of the queued files in selection order.
func (t *Tracker) Selected() []Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Selection, len(t.selection))
	copy(out, t.selection)
	return out
}

// Percent returns the bounded 0-100 progress of the current transfer.
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// Outcome returns the transfer's lifecycle state.
func (t *Tracker) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// LastError returns the server-provided error text of the most recent
// failure, empty otherwise.
func (t *Tracker) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

// Updates exposes coalesced change notifications.
func (t *Tracker) Updates() <-chan struct{} {
	return t.updates
}

// Wait blocks until any in-flight upload goroutine has finished. Used
// on teardown.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) notifyLocked() {
	select {
	case t.updates <- struct{}{}:
	default:
	}
}

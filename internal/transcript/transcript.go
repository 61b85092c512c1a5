// Package transcript folds the chat backend's pushed message events into
// the ordered conversation shown to the user.
//
// Responsibilities: own the transcript, apply the merge policy for
// streamed answer fragments, and echo submitted questions locally.
// Thread Safety: all state is mutex-owned; folds are serialized.
//
// The transcript is append-mostly: only the newest entry is ever mutated
// (appended-to or replaced). Every earlier entry is immutable once a
// newer one exists.
package transcript

import (
	"errors"
	"strings"
	"sync"

	"github.com/scribeapp/scribe/internal/log"
)

// ErrEmptyMessage rejects a submission that is empty after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Kind classifies a transcript entry or an incoming event.
type Kind string

// Closed set of entry kinds, matching the wire "type" discriminator.
const (
	KindQuestion   Kind = "question"
	KindProcessing Kind = "processing"
	KindPartial    Kind = "partial"
	KindFull       Kind = "full"
	KindAnswer     Kind = "answer"
)

// Origin identifies which side of the conversation produced an entry.
type Origin string

// Closed set of origins.
const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Message is one transcript entry.
//
// Text is mutable only while the entry is the newest and not yet
// finalized by a terminal event (KindFull, KindAnswer). References are
// empty on incomplete entries; only a terminal event carries them.
type Message struct {
	Kind       Kind
	Origin     Origin
	Text       string
	References []string
}

// Sender delivers raw user input to the chat transport.
// The transcript does not own the connection; a send failure is a
// transport concern and never corrupts the local transcript.
type Sender interface {
	Send(text string) error
}

// Reconciler owns the ordered transcript and folds incoming events
// into it one at a time.
type Reconciler struct {
	mu       sync.RWMutex
	messages []Message
	awaiting bool

	sender Sender
	logger log.Logger

	// updates carries coalesced change notifications for the
	// presentation layer. Buffered size 1, best-effort send.
	updates chan struct{}
}

// New creates a Reconciler. sender may be nil; submissions are then
// echoed locally but not transmitted (logged, not surfaced).
func New(sender Sender, logger log.Logger) *Reconciler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Reconciler{
		sender:  sender,
		logger:  logger,
		updates: make(chan struct{}, 1),
	}
}

// AppendUserMessage echoes a submitted question into the transcript and
// hands the raw text to the transport.
//
// Empty input (after trimming) is rejected locally with ErrEmptyMessage
// and no entry is created. A missing or failing transport does not fail
// the call: the local echo stands and the problem is logged.
func (r *Reconciler) AppendUserMessage(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	r.mu.Lock()
	r.messages = append(r.messages, Message{
		Kind:   KindQuestion,
		Origin: OriginUser,
		Text:   trimmed,
	})
	r.awaiting = true
	r.mu.Unlock()
	r.notify()

	if r.sender == nil {
		r.logger.Warn("no transport attached, question not sent", "len", len(trimmed))
		return nil
	}
	if err := r.sender.Send(trimmed); err != nil {
		r.logger.Error("sending question failed", "error", err)
	}
	return nil
}

// Fold incorporates one incoming event into the transcript.
//
// The rules are ordered and exhaustive over {last entry kind, event
// kind}; the precedence matters. A naive always-append duplicates
// processing placeholders, and a naive always-merge loses the boundary
// between turns.
func (r *Reconciler) Fold(ev Event) {
	msg := ev.message()

	r.mu.Lock()
	defer func() {
		r.mu.Unlock()
		r.notify()
	}()

	if msg.Origin == OriginAssistant {
		r.awaiting = false
	}

	// Rule 1: on an empty transcript the event becomes the sole entry.
	if len(r.messages) == 0 {
		r.messages = append(r.messages, msg)
		return
	}

	last := &r.messages[len(r.messages)-1]

	switch {
	// Rule 2: a processing placeholder is always its own entry.
	case msg.Kind == KindProcessing:
		r.messages = append(r.messages, msg)

	// Rule 3: an answer discards the processing placeholder wholesale.
	case last.Kind == KindProcessing && msg.Kind == KindAnswer:
		*last = msg

	// Rule 4: a finalized turn never accepts merges; start a new entry.
	case last.Kind == KindQuestion || last.Kind == KindFull:
		r.messages = append(r.messages, msg)

	// Rule 5: a full event terminates and overwrites whatever preceded it.
	case msg.Kind == KindFull:
		*last = msg

	// Rule 6: two non-terminal fragments merge by text concatenation.
	// References are not accumulated; only a terminal replacing event's
	// references survive.
	default:
		last.Text += msg.Text
	}
}

// Messages returns a copy of the transcript for safe concurrent reads.
func (r *Reconciler) Messages() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the number of transcript entries.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// Awaiting reports whether a question is outstanding with no assistant
// event received yet. Drives the typing indicator.
func (r *Reconciler) Awaiting() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.awaiting
}

// Updates exposes coalesced change notifications. Receivers that fall
// behind see one pending notification, never a backlog.
func (r *Reconciler) Updates() <-chan struct{} {
	return r.updates
}

func (r *Reconciler) notify() {
	select {
	case r.updates <- struct{}{}:
	default: // a notification is already pending
	}
}

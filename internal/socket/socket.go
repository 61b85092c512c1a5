// Package socket maintains the persistent websocket connection to the
// chat backend.
//
// Inbound frames are decoded into transcript events and delivered on a
// single buffered channel in arrival order; channel closure signals the
// end of the stream. Outbound user input is sent as raw text with no
// envelope. Reconnection and resume are deliberately not handled here:
// when the connection drops the event channel closes and the owner
// decides what to do.
package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/scribeapp/scribe/internal/log"
	"github.com/scribeapp/scribe/internal/transcript"
)

// eventBufferSize absorbs bursts of streamed fragments while the fold
// loop catches up. 100 strings is roughly 10KB in the typical case.
const eventBufferSize = 100

// ErrClosed reports a send on a closed connection.
var ErrClosed = errors.New("connection closed")

// Client is one chat backend connection.
type Client struct {
	conn   *websocket.Conn
	logger log.Logger

	events chan transcript.Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Compile-time interface verification.
var _ transcript.Sender = (*Client)(nil)

// Dial connects to the chat backend. The caller must run ReadLoop to
// start receiving events and Close on teardown.
func Dial(ctx context.Context, url string, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s (status %s): %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	return &Client{
		conn:   conn,
		logger: logger,
		events: make(chan transcript.Event, eventBufferSize),
		closed: make(chan struct{}),
	}, nil
}

// Events delivers decoded inbound events in arrival order. The channel
// is closed when the connection ends.
func (c *Client) Events() <-chan transcript.Event {
	return c.events
}

// ReadLoop pumps inbound frames into the event channel until the
// connection ends or ctx is canceled. It owns closing the channel.
//
// Frames that fail to decode are logged and skipped: a malformed frame
// must not kill the stream.
func (c *Client) ReadLoop(ctx context.Context) {
	defer close(c.events)

	// Unblock the pending read when ctx is canceled.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Info("chat stream ended", "error", err)
			}
			return
		}

		ev, err := transcript.DecodeEvent(data)
		if err != nil {
			c.logger.Warn("skipping malformed frame", "error", err, "len", len(data))
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// Send transmits raw user input. Safe for concurrent use.
func (c *Client) Send(text string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Close tears the connection down. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

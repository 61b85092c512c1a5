// Package app assembles the synchronization core: the chat socket with
// its transcript fold loop, the registry poller, and the transfer
// tracker, each owning its own state and running on its own goroutine.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/scribeapp/scribe/internal/config"
	"github.com/scribeapp/scribe/internal/indexer"
	"github.com/scribeapp/scribe/internal/log"
	"github.com/scribeapp/scribe/internal/registry"
	"github.com/scribeapp/scribe/internal/socket"
	"github.com/scribeapp/scribe/internal/transcript"
	"github.com/scribeapp/scribe/internal/transfer"
)

// App is the core application container.
//
// The three reconcilers are exclusive owners of their state; the only
// cross-component coupling is the transfer tracker's fire-and-forget
// poll trigger after a successful upload.
type App struct {
	Config *config.Config
	Logger log.Logger

	Transcript *transcript.Reconciler
	Registry   *registry.Reconciler
	Poller     *registry.Poller
	Transfer   *transfer.Tracker
	Indexer    *indexer.Client

	chat *socket.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects to the chat backend and wires all components. Call Run
// to start the event loops and Close on teardown.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	idx, err := indexer.New(cfg.IndexerURL, cfg.UserID, logger.With("component", "indexer"))
	if err != nil {
		return nil, fmt.Errorf("creating indexer client: %w", err)
	}

	chat, err := socket.Dial(ctx, cfg.ChatURL, logger.With("component", "socket"))
	if err != nil {
		return nil, fmt.Errorf("connecting to chat backend: %w", err)
	}

	reg := registry.New(logger.With("component", "registry"))
	poller := registry.NewPoller(idx, reg, cfg.PollInterval, logger.With("component", "poller"))

	return &App{
		Config:     cfg,
		Logger:     logger,
		Transcript: transcript.New(chat, logger.With("component", "transcript")),
		Registry:   reg,
		Poller:     poller,
		Transfer:   transfer.New(idx, poller.Trigger, logger.With("component", "transfer")),
		Indexer:    idx,
		chat:       chat,
	}, nil
}

// Run starts the socket read loop, the transcript fold loop, and the
// registry poller. It returns immediately; the loops stop when ctx is
// canceled or Close is called.
func (a *App) Run(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.chat.ReadLoop(ctx)
	}()

	// Fold loop: transcript events are processed strictly one at a
	// time, in arrival order. No two folds ever interleave.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for ev := range a.chat.Events() {
			a.Transcript.Fold(ev)
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Poller.Run(ctx)
	}()
}

// Close gracefully shuts the core down: stops the loops, closes the
// chat connection, and waits for any in-flight upload to settle.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	err := a.chat.Close()
	a.Transfer.Wait()
	a.wg.Wait()
	return err
}

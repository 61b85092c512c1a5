package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribeapp/scribe/internal/app"
	"github.com/scribeapp/scribe/internal/config"
	"github.com/scribeapp/scribe/internal/log"
	"github.com/scribeapp/scribe/internal/transcript"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.Run(ctx)
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	fmt.Printf("Connected to %s. Type a question, /quit to exit.\n", cfg.ChatURL)

	scanner := bufio.NewScanner(os.Stdin)
	printed := a.Transcript.Len()
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "/quit" {
			break
		}

		if err := a.Transcript.AppendUserMessage(line); err != nil {
			if errors.Is(err, transcript.ErrEmptyMessage) {
				continue
			}
			return err
		}
		printed = a.Transcript.Len() // skip the local echo

		// Block until the turn reaches a terminal entry, then print
		// everything that arrived after the question.
		for !turnSettled(a.Transcript, printed) {
			select {
			case <-a.Transcript.Updates():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, msg := range a.Transcript.Messages()[printed:] {
			printMessage(msg)
		}
		printed = a.Transcript.Len()
	}
	return scanner.Err()
}

// turnSettled reports whether an assistant entry newer than printed has
// reached a terminal kind.
func turnSettled(tr *transcript.Reconciler, printed int) bool {
	msgs := tr.Messages()
	if len(msgs) <= printed {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.Kind == transcript.KindAnswer || last.Kind == transcript.KindFull
}

func printMessage(msg transcript.Message) {
	fmt.Println(msg.Text)
	for _, ref := range msg.References {
		fmt.Printf("  source: %s\n", ref)
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribeapp/scribe/internal/transfer"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents to the indexer",
	Long: `Upload posts the given files to the indexer as one batch.

Supported formats: pdf, xls(x), doc(x), txt, md, csv, ppt(x).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	client, err := newIndexerClient()
	if err != nil {
		return err
	}

	tracker := transfer.New(client, nil, nil)
	for _, path := range args {
		if _, err := tracker.Select(path); err != nil {
			return err
		}
	}

	if err := tracker.Start(cmd.Context()); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		tracker.Wait()
		close(done)
	}()

	for {
		select {
		case <-tracker.Updates():
			fmt.Printf("\ruploading %3d%%", tracker.Percent())
		case <-done:
			fmt.Print("\r")
			if tracker.Outcome() == transfer.OutcomeFailed {
				return fmt.Errorf("upload failed: %s", tracker.LastError())
			}
			fmt.Printf("Uploaded %d file(s)\n", len(args))
			return nil
		}
	}
}

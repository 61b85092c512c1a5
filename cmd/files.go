package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeapp/scribe/internal/config"
	"github.com/scribeapp/scribe/internal/indexer"
	"github.com/scribeapp/scribe/internal/log"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the files known to the indexer",
	RunE:  runFilesList,
}

var filesRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Remove a file from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesRemove,
}

var filesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate indexing statistics",
	RunE:  runFilesStats,
}

func init() {
	filesCmd.AddCommand(filesRemoveCmd)
	filesCmd.AddCommand(filesStatsCmd)
	rootCmd.AddCommand(filesCmd)
}

// newIndexerClient builds a one-shot client from the loaded configuration.
func newIndexerClient() (*indexer.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	return indexer.New(cfg.IndexerURL, cfg.UserID, logger)
}

func runFilesList(cmd *cobra.Command, _ []string) error {
	client, err := newIndexerClient()
	if err != nil {
		return err
	}

	records, err := client.Files(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching file list: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No files indexed yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tINDEXED IN\tLAST UPDATED")
	for _, rec := range records {
		indexedIn := "-"
		if rec.IndexingSeconds != nil {
			indexedIn = fmt.Sprintf("%.2fs", *rec.IndexingSeconds)
		}
		updated := "-"
		if rec.LastUpdated > 0 {
			updated = time.Unix(rec.LastUpdated, 0).Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Name(), rec.Status, indexedIn, updated)
	}
	return w.Flush()
}

func runFilesRemove(cmd *cobra.Command, args []string) error {
	client, err := newIndexerClient()
	if err != nil {
		return err
	}

	if err := client.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("removing %q: %w", args[0], err)
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runFilesStats(cmd *cobra.Command, _ []string) error {
	client, err := newIndexerClient()
	if err != nil {
		return err
	}

	stats, err := client.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	fmt.Printf("Files indexed:   %d\n", stats.TotalFiles)
	fmt.Printf("Total time:      %.2fs\n", stats.TotalIndexingSeconds)
	fmt.Printf("Average time:    %.2fs\n", stats.AverageIndexingSeconds)
	return nil
}

// Package cmd contains the scribe CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe - chat with your indexed documents",
	Long: `Scribe is a terminal client for a local retrieval/LLM backend.

It keeps three views in sync: the streamed conversation transcript,
the registry of indexed documents, and the progress of document
uploads. Run scribe with no arguments to start a chat session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

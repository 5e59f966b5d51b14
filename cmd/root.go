// Package cmd implements the quill command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill — project-scoped AI chat backend",
	Long: `Quill serves a JSON API for project-scoped AI chat: projects hold
uploaded documents, conversations hold chat history, and the chat
endpoint relays the upstream model's output as a server-sent event
stream.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Package rerankd implements the rerankd command-line interface.
package rerankd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rerankd",
	Short: "Cross-encoder document reranking service",
	Long: `rerankd scores candidate documents against a question with a
cross-encoder reranking model and serves the results over HTTP.

The model loads lazily on the first request, binds to an accelerator when
one is available, and can be unloaded at runtime to reclaim memory.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

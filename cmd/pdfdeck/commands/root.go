// Package commands implements the pdfdeck CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "pdfdeck",
	Short: "pdfdeck - offline PDF page rendering tools",
	Long: `pdfdeck renders PDF documents to page images without going through
the API server: inspect a document's page count or rasterize every
page to disk at a chosen resolution.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

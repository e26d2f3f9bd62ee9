package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unfurl",
		Short: "Link preview resolution service for chat clients.",
		Long: `unfurl resolves URL previews on behalf of chat clients. Pasted links
are fetched under a shared concurrency gate, classified as pages or
images, and reduced to the compact metadata a client renders inline.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; UNFURL_* env vars override)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPreviewCmd())

	return cmd
}

// Execute is the main entry point. Cobra reports the failure itself, so
// the only job left here is the exit code.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

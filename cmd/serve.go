package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irclight/unfurl/internal/config"
	"github.com/irclight/unfurl/internal/server"
)

// newServeCmd creates and configures the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the preview service",
		Long: `Runs the HTTP preview service. Clients submit URLs over the REST API
and receive resolved metadata or image digests once the fetch completes.
The process drains in-flight requests on SIGINT or SIGTERM.`,
		RunE: runServeCommand,
	}
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := server.Build(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	return app.Run(cmd.Context())
}

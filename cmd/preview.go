package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/irclight/unfurl/internal/config"
	"github.com/irclight/unfurl/internal/preview"
	"github.com/irclight/unfurl/internal/server"
)

// previewOutput is the JSON document printed for a resolved preview. The
// raw image payload is elided; only its digest travels to stdout.
type previewOutput struct {
	RequestID  string            `json:"request_id"`
	URL        string            `json:"url"`
	Result     string            `json:"result"`
	Metadata   *preview.Metadata `json:"metadata,omitempty"`
	Image      *imageSummary     `json:"image,omitempty"`
	Error      string            `json:"error,omitempty"`
	Bytes      int64             `json:"bytes"`
	DurationMs int64             `json:"duration_ms"`
}

type imageSummary struct {
	ContentType string `json:"content_type"`
	Digest      string `json:"digest"`
	Size        int    `json:"size"`
}

// newPreviewCmd creates and configures the 'preview' subcommand.
func newPreviewCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "preview <url>",
		Short: "Resolves a single URL and prints the outcome",
		Long: `Fetches one URL through the same pipeline the service uses and prints
the outcome as JSON. Useful for checking what a client would render for
a link without standing up the HTTP API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreviewCommand(cmd, args[0], kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(preview.KindUnknown), "request origin: requested or unknown")
	return cmd
}

func runPreviewCommand(cmd *cobra.Command, rawURL, kind string) error {
	reqKind, err := parseKindFlag(kind)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(closeCtx)
	}()

	tk, err := app.Scheduler().Submit(rawURL, reqKind)
	if err != nil {
		return fmt.Errorf("submit preview: %w", err)
	}

	out, err := tk.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for outcome: %w", err)
	}

	doc := previewOutput{
		RequestID:  tk.ID().String(),
		URL:        out.URL,
		Result:     out.Result(),
		Metadata:   out.Metadata,
		Bytes:      out.Bytes,
		DurationMs: out.Duration.Milliseconds(),
	}
	if out.Image != nil {
		doc.Image = &imageSummary{
			ContentType: out.Image.ContentType,
			Digest:      out.Image.Digest,
			Size:        len(out.Image.Bytes),
		}
	}
	if out.Err != nil {
		doc.Error = out.Err.Error()
	}

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

func parseKindFlag(kind string) (preview.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "requested":
		return preview.KindRequested, nil
	case "", "unknown":
		return preview.KindUnknown, nil
	default:
		return "", fmt.Errorf("invalid kind %q", kind)
	}
}

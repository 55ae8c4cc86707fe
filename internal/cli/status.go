package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks if the stored API key is valid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, out io.Writer) error {
	cfg := resolveConfig()

	fmt.Fprintf(out, "Server:  %s\n", cfg.ServerURL)

	if cfg.APIKey == "" {
		fmt.Fprintln(out, "API Key: not configured")
		fmt.Fprintln(out, "\nRun 'folio login' to authenticate.")
		return nil
	}

	prefix := cfg.APIKey
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	fmt.Fprintf(out, "API Key: %s…\n", prefix)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id, err := client.New(cfg.ServerURL, cfg.APIKey).Me(ctx)
	var apiErr *client.APIError
	switch {
	case err == nil:
		fmt.Fprintf(out, "Status:  ✓ connected and authenticated as %s (key %q)\n", id.Email, id.KeyName)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		fmt.Fprintln(out, "Status:  ✗ invalid API key")
		fmt.Fprintln(out, "\nRun 'folio login' to re-authenticate.")
	case errors.As(err, &apiErr):
		fmt.Fprintf(out, "Status:  ✗ unexpected response (%d)\n", apiErr.StatusCode)
	default:
		fmt.Fprintf(out, "Status:  ✗ cannot reach server (%v)\n", err)
	}

	return nil
}

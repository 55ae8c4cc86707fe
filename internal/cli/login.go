package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/client"
)

const apiKeyPrefix = "folio_"

func newLoginCmd() *cobra.Command {
	var server, key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long:  "Opens a browser where the signed-in owner generates an API key for CLI access, then stores the pasted key. Pass --key to store a key created with 'folio keys create'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), server, key)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or "+DefaultServerURL+")")
	cmd.Flags().StringVar(&key, "key", "", "API key to store instead of prompting")

	return cmd
}

func runLogin(ctx context.Context, out io.Writer, in io.Reader, serverFlag, key string) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}
	serverURL = strings.TrimRight(serverURL, "/")

	if key == "" {
		authURL := serverURL + "/cli/auth"

		fmt.Fprintln(out, "Opening browser for authentication...")
		fmt.Fprintf(out, "If the browser doesn't open, visit: %s\n\n", authURL)

		if err := openBrowser(authURL); err != nil {
			fmt.Fprintf(os.Stderr, "Could not open browser: %v\n", err)
		}

		fmt.Fprint(out, "Paste your API key: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return fmt.Errorf("reading input: %w", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if err := validateAPIKey(key); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	id, err := client.New(serverURL, key).Me(ctx)
	if err != nil {
		return fmt.Errorf("verifying API key: %w", err)
	}

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	cfg.APIKey = key
	if serverFlag != "" {
		cfg.ServerURL = serverURL
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(out, "\n✓ API key saved. Logged in as %s.\n", id.Email)
	return nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if !strings.HasPrefix(key, apiKeyPrefix) {
		return fmt.Errorf("invalid API key format (should start with %s)", apiKeyPrefix)
	}
	return nil
}

// openBrowser starts the platform's URL handler. Replaced in tests.
var openBrowser = func(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

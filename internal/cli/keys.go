package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/auth"
)

// errNoOwner is returned by local owner commands when FOLIO_OWNER_EMAIL is unset.
var errNoOwner = errors.New("FOLIO_OWNER_EMAIL is not set")

// ownerConfig reads the owner configuration the way serve does.
func ownerConfig() (auth.Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return auth.Config{}, err
	}
	cfg := auth.ConfigFromEnv()
	if cfg.OwnerEmail == "" {
		return cfg, errNoOwner
	}
	return cfg, nil
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys in the local database",
		Long:  "Create, list and revoke the owner's API keys directly in the local database. Use this on the server host; elsewhere run 'folio login'.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create an API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runKeysCreate(cmd.OutOrStdout(), args[0])
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List API keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runKeysList(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Revoke an API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runKeysDelete(cmd.OutOrStdout(), args[0])
			},
		},
	)

	return cmd
}

func runKeysCreate(out io.Writer, name string) error {
	cfg, err := ownerConfig()
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	raw, key, err := auth.NewAPIKeyStore(database).Create(name, cfg.OwnerEmail)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, struct {
			Key string `json:"key"`
			*auth.APIKey
		}{raw, key})
	}
	fmt.Fprintf(out, "✓ Created key #%d (%s).\n\n  %s\n\nIt will not be shown again.\n", key.ID, key.Name, raw)
	return nil
}

func runKeysList(out io.Writer) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	keys, err := auth.NewAPIKeyStore(database).List()
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, keys)
	}
	return printKeyTable(out, keys)
}

func runKeysDelete(out io.Writer, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid key ID: %s", arg)
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	if err := auth.NewAPIKeyStore(database).Delete(id); err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, map[string]int64{"deleted": id})
	}
	fmt.Fprintf(out, "✓ Revoked key #%d.\n", id)
	return nil
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/auth"
)

func newEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll",
		Short: "Print a link to register the owner's passkey",
		Long:  "Issue a single-use link, valid for one hour, that registers a passkey for FOLIO_OWNER_EMAIL. Writes to the local database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnroll(cmd.OutOrStdout())
		},
	}
}

func runEnroll(out io.Writer) error {
	cfg, err := ownerConfig()
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	token, err := auth.NewTokenStore(database).Create(cfg.OwnerEmail, auth.PurposeEnroll)
	if err != nil {
		return err
	}

	link := cfg.EnrollURL(token)
	if isJSON() {
		return printJSON(out, map[string]string{"email": cfg.OwnerEmail, "url": link})
	}
	fmt.Fprintf(out, "Open this link within the hour to register a passkey for %s:\n\n  %s\n", cfg.OwnerEmail, link)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/comment"
)

// moderator is the part of the API client used for moderation.
type moderator interface {
	PinComment(ctx context.Context, id int64) (*comment.Comment, error)
	UnpinComment(ctx context.Context, id int64) (*comment.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

func newPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Pin a comment",
		Long:  "Pin a comment to the top of the comment section. Any other pinned comment is unpinned.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPinned(cmd.Context(), cmd.OutOrStdout(), newAPIClient(), args[0], true)
		},
	}
}

func newUnpinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpin <id>",
		Short: "Unpin a comment",
		Long:  "Return a pinned comment to the regular feed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPinned(cmd.Context(), cmd.OutOrStdout(), newAPIClient(), args[0], false)
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd.OutOrStdout(), newAPIClient(), args[0])
		},
	}
}

func parseCommentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid comment ID: %s", arg)
	}
	return id, nil
}

func runSetPinned(ctx context.Context, out io.Writer, m moderator, arg string, pinned bool) error {
	id, err := parseCommentID(arg)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var c *comment.Comment
	if pinned {
		c, err = m.PinComment(ctx, id)
	} else {
		c, err = m.UnpinComment(ctx, id)
	}
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, c)
	}
	if pinned {
		fmt.Fprintf(out, "✓ Pinned comment #%d.\n", c.ID)
	} else {
		fmt.Fprintf(out, "✓ Unpinned comment #%d.\n", c.ID)
	}
	printComment(out, c, time.Now())
	return nil
}

func runDelete(ctx context.Context, out io.Writer, m moderator, arg string) error {
	id, err := parseCommentID(arg)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := m.DeleteComment(ctx, id); err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, map[string]int64{"deleted": id})
	}
	fmt.Fprintf(out, "✓ Deleted comment #%d.\n", id)
	return nil
}

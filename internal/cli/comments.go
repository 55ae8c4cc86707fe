package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/widget"
)

func newCommentsCmd() *cobra.Command {
	var pinnedOnly bool

	cmd := &cobra.Command{
		Use:   "comments",
		Short: "List comments",
		Long:  "List the comment section as visitors see it: the pinned comment first, then the rest newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComments(cmd.Context(), cmd.OutOrStdout(), newAPIClient(), pinnedOnly)
		},
	}

	cmd.Flags().BoolVar(&pinnedOnly, "pinned", false, "show only the pinned comment")

	return cmd
}

// commentLister is the part of the API client used to read comments.
type commentLister interface {
	PinnedComment(ctx context.Context) (*comment.Comment, error)
	ListComments(ctx context.Context, pinned bool) ([]*comment.Comment, error)
}

func runComments(ctx context.Context, out io.Writer, c commentLister, pinnedOnly bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var state widget.State
	pinned, err := c.PinnedComment(ctx)
	switch {
	case errors.Is(err, comment.ErrNotFound):
	case err != nil:
		return fmt.Errorf("fetching pinned comment: %w", err)
	default:
		state.Pinned = pinned
	}

	if !pinnedOnly {
		if state.Feed, err = c.ListComments(ctx, false); err != nil {
			return fmt.Errorf("fetching comments: %w", err)
		}
	}

	ordered := state.Ordered()
	if isJSON() {
		return printJSON(out, ordered)
	}

	if pinnedOnly && state.Pinned == nil {
		fmt.Fprintln(out, "No pinned comment.")
		return nil
	}
	if !pinnedOnly {
		fmt.Fprintf(out, "Comments (%d)\n\n", state.Total())
	}
	printCommentList(out, ordered, time.Now())
	return nil
}

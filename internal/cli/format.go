package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wilberttgr/folio/internal/auth"
	"github.com/wilberttgr/folio/internal/comment"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCommentList prints comments one block per entry, pinned first as given.
func printCommentList(w io.Writer, comments []*comment.Comment, now time.Time) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "No comments yet.")
		return
	}

	for _, c := range comments {
		printComment(w, c, now)
		fmt.Fprintln(w)
	}
}

// printComment prints a single comment in text format.
func printComment(w io.Writer, c *comment.Comment, now time.Time) {
	marker := ""
	if c.IsPinned {
		marker = " [pinned]"
	}
	fmt.Fprintf(w, "#%d %s%s · %s\n", c.ID, c.UserName, marker, comment.FormatRelative(c.CreatedAt, now))
	fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(c.Content, "\n", "\n  "))
	if c.ProfileImage != nil {
		fmt.Fprintf(w, "  image: %s\n", *c.ProfileImage)
	}
}

// printKeyTable prints API keys as a formatted table.
func printKeyTable(out io.Writer, keys []auth.APIKey) error {
	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tPREFIX\tCREATED\tLAST USED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t----\t------\t-------\t---------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s…\t%s\t%s\n",
			k.ID, truncate(k.Name, 30), k.KeyPrefix, k.CreatedAt.Format("2006-01-02 15:04"), lastUsed); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d keys\n", len(keys))
	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

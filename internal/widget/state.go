// Package widget implements the comment section's synchronization client:
// it loads the pinned comment and the feed from a Backend, keeps the feed
// current from pushed change events, and submits new comments.
package widget

import (
	"encoding/json"
	"fmt"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/realtime"
)

// SubmitErrorMessage is the only error text shown to visitors.
const SubmitErrorMessage = "Failed to post comment. Please try again."

// State is a snapshot of the comment section.
type State struct {
	Pinned     *comment.Comment
	Feed       []*comment.Comment
	Error      string
	Submitting bool
}

// Ordered returns the comments in display order: the pinned comment first,
// then the feed.
func (s State) Ordered() []*comment.Comment {
	out := make([]*comment.Comment, 0, s.Total())
	if s.Pinned != nil {
		out = append(out, s.Pinned)
	}
	return append(out, s.Feed...)
}

// Total counts the feed plus the pinned comment.
func (s State) Total() int {
	if s.Pinned != nil {
		return len(s.Feed) + 1
	}
	return len(s.Feed)
}

// Reduce applies a change to feed and returns the new feed. The input slice
// is never modified.
func Reduce(feed []*comment.Comment, c realtime.Change) ([]*comment.Comment, error) {
	switch c.Type {
	case realtime.EventInsert:
		row, err := decode(c.New)
		if err != nil {
			return feed, err
		}
		out := make([]*comment.Comment, 0, len(feed)+1)
		out = append(out, row)
		return append(out, feed...), nil

	case realtime.EventUpdate:
		row, err := decode(c.New)
		if err != nil {
			return feed, err
		}
		out := make([]*comment.Comment, len(feed))
		for i, existing := range feed {
			if existing.ID == row.ID {
				out[i] = row
			} else {
				out[i] = existing
			}
		}
		return out, nil

	case realtime.EventDelete:
		row, err := decode(c.Old)
		if err != nil {
			return feed, err
		}
		out := make([]*comment.Comment, 0, len(feed))
		for _, existing := range feed {
			if existing.ID != row.ID {
				out = append(out, existing)
			}
		}
		return out, nil

	default:
		return feed, fmt.Errorf("unknown event type %q", c.Type)
	}
}

func decode(raw json.RawMessage) (*comment.Comment, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("change has no row")
	}
	var c comment.Comment
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding row: %w", err)
	}
	return &c, nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/widget"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the comment section live",
		Long:  "Load the comment section and reprint it whenever a comment is added, changed or removed. Stop with Ctrl-C.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), newAPIClient())
		},
	}
}

// watchPrinter prints a state only when the visible comments change.
type watchPrinter struct {
	out  io.Writer
	now  func() time.Time
	mu   sync.Mutex
	last string
}

func (p *watchPrinter) render(s widget.State) {
	shown := make([]*comment.Comment, 0, s.Total())
	if s.Pinned != nil {
		pinned := *s.Pinned
		pinned.IsPinned = true
		shown = append(shown, &pinned)
	}
	shown = append(shown, s.Feed...)

	key := renderKey(s.Pinned != nil, shown)

	p.mu.Lock()
	defer p.mu.Unlock()
	if key == p.last {
		return
	}
	p.last = key

	if isJSON() {
		if err := printJSON(p.out, shown); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		return
	}
	fmt.Fprintf(p.out, "── Comments (%d) · %s ──\n\n", s.Total(), p.now().Format("15:04:05"))
	printCommentList(p.out, shown, p.now())
}

// renderKey identifies what a render would print: the slot and every
// displayed field of each comment.
func renderKey(hasPinned bool, shown []*comment.Comment) string {
	var b strings.Builder
	for i, c := range shown {
		slot := "feed"
		if hasPinned && i == 0 {
			slot = "pinned"
		}
		img := ""
		if c.ProfileImage != nil {
			img = *c.ProfileImage
		}
		fmt.Fprintf(&b, "%s:%d:%q:%q:%q:%t:%d;", slot, c.ID, c.UserName, c.Content, img, c.IsPinned, c.CreatedAt.UnixNano())
	}
	return b.String()
}

func runWatch(ctx context.Context, out io.Writer, b widget.Backend) error {
	p := &watchPrinter{out: out, now: time.Now}
	w := widget.New(b, widget.WithRender(p.render))

	if err := w.Mount(ctx); err != nil {
		return fmt.Errorf("subscribing to comments: %w", err)
	}
	defer func() {
		if err := w.Unmount(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	<-ctx.Done()
	return nil
}

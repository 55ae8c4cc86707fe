package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/realtime"
)

// ErrSubmitFailed wraps any upload or insert failure during Submit.
var ErrSubmitFailed = errors.New(SubmitErrorMessage)

// FeedFilter selects the changes that drive the feed.
var FeedFilter = realtime.Filter{
	Table:  comment.Table,
	Column: "is_pinned",
	Op:     "eq",
	Value:  "false",
}

// Backend is the remote service the widget talks to.
type Backend interface {
	// PinnedComment returns the pinned comment or comment.ErrNotFound.
	PinnedComment(ctx context.Context) (*comment.Comment, error)
	// ListComments returns comments with the given pinned flag, newest first.
	ListComments(ctx context.Context, pinned bool) ([]*comment.Comment, error)
	InsertComment(ctx context.Context, d comment.Draft) (*comment.Comment, error)
	// UploadImage stores an image and returns its public URL.
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
	Subscribe(ctx context.Context, f realtime.Filter) (realtime.Stream, error)
}

// Image is a file attached to a submission.
type Image struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}

// Widget keeps a comment section in sync with a Backend.
type Widget struct {
	backend Backend
	render  func(State)

	mu        sync.Mutex
	state     State
	stream    realtime.Stream
	done      chan struct{}
	mounted   bool
	unmounted bool

	renderMu    sync.Mutex
	unmountOnce sync.Once
}

// Option configures a Widget.
type Option func(*Widget)

// WithRender sets a callback invoked with a fresh snapshot after every state
// change. Callbacks are serialized and must not call Unmount.
func WithRender(fn func(State)) Option {
	return func(w *Widget) {
		w.render = fn
	}
}

// New creates a widget backed by b.
func New(b Backend, opts ...Option) *Widget {
	w := &Widget{backend: b}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Mount loads the pinned comment and the feed, then subscribes to feed
// changes. Load failures are logged and leave the corresponding part empty.
// A subscription failure is returned; the loaded state is kept.
func (w *Widget) Mount(ctx context.Context) error {
	w.mu.Lock()
	if w.mounted {
		w.mu.Unlock()
		return fmt.Errorf("widget already mounted")
	}
	w.mounted = true
	w.mu.Unlock()

	var (
		pinned *comment.Comment
		feed   []*comment.Comment
		wg     conc.WaitGroup
	)
	wg.Go(func() {
		c, err := w.backend.PinnedComment(ctx)
		if err != nil {
			if !errors.Is(err, comment.ErrNotFound) {
				slog.Error("fetching pinned comment", "err", err)
			}
			return
		}
		pinned = c
	})
	wg.Go(func() {
		list, err := w.backend.ListComments(ctx, false)
		if err != nil {
			slog.Error("fetching comments", "err", err)
			return
		}
		feed = list
	})
	wg.Wait()

	w.update(func(s *State) {
		s.Pinned = pinned
		s.Feed = feed
	})

	stream, err := w.backend.Subscribe(ctx, FeedFilter)
	if err != nil {
		return fmt.Errorf("subscribing to comment changes: %w", err)
	}

	w.mu.Lock()
	if w.unmounted {
		w.mu.Unlock()
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("closing subscription", "err", cerr)
		}
		return nil
	}
	w.stream = stream
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.consume(stream, done)
	return nil
}

func (w *Widget) consume(stream realtime.Stream, done chan struct{}) {
	defer close(done)

	for c := range stream.Events() {
		w.mu.Lock()
		if w.unmounted {
			// Drain until the stream closes.
			w.mu.Unlock()
			continue
		}
		feed, err := Reduce(w.state.Feed, c)
		if err != nil {
			w.mu.Unlock()
			slog.Warn("applying comment change", "type", c.Type, "err", err)
			continue
		}
		w.state.Feed = feed
		w.mu.Unlock()

		w.emit()
	}

	slog.Debug("comment subscription ended")
}

// Submit uploads img (if any) and inserts the comment. On failure the state's
// Error is set to SubmitErrorMessage and an error wrapping ErrSubmitFailed is
// returned. An uploaded image is kept even when the insert fails.
func (w *Widget) Submit(ctx context.Context, d comment.Draft, img *Image) error {
	w.update(func(s *State) {
		s.Error = ""
		s.Submitting = true
	})

	err := w.submit(ctx, d, img)

	w.update(func(s *State) {
		s.Submitting = false
		if err != nil {
			s.Error = SubmitErrorMessage
		}
	})

	if err != nil {
		slog.Error("adding comment", "err", err)
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	return nil
}

func (w *Widget) submit(ctx context.Context, d comment.Draft, img *Image) error {
	d.ProfileImage = nil
	if img != nil {
		url, err := w.backend.UploadImage(ctx, img.Name, img.Data)
		if err != nil {
			return fmt.Errorf("uploading image: %w", err)
		}
		d.ProfileImage = &url
	}

	if _, err := w.backend.InsertComment(ctx, d); err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

// State returns a snapshot of the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Unmount closes the subscription. After it returns no further state changes
// or render callbacks happen. Calling it more than once is safe.
func (w *Widget) Unmount() error {
	var err error
	w.unmountOnce.Do(func() {
		w.mu.Lock()
		w.unmounted = true
		stream, done := w.stream, w.done
		w.mu.Unlock()

		if stream != nil {
			err = stream.Close()
			<-done
		}

		// Wait out a render already in flight.
		w.renderMu.Lock()
		defer w.renderMu.Unlock()
	})
	return err
}

func (w *Widget) update(fn func(*State)) {
	w.mu.Lock()
	if w.unmounted {
		w.mu.Unlock()
		return
	}
	fn(&w.state)
	w.mu.Unlock()

	w.emit()
}

func (w *Widget) snapshotLocked() State {
	st := w.state
	st.Feed = append([]*comment.Comment(nil), w.state.Feed...)
	return st
}

// emit renders the latest state. Renders are serialized, so the last one
// always reflects the newest state.
func (w *Widget) emit() {
	if w.render == nil {
		return
	}

	w.renderMu.Lock()
	defer w.renderMu.Unlock()

	w.mu.Lock()
	if w.unmounted {
		w.mu.Unlock()
		return
	}
	st := w.snapshotLocked()
	w.mu.Unlock()

	w.render(st)
}

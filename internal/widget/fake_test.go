package widget

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/realtime"
)

type fakeStream struct {
	events chan realtime.Change
	mu     sync.Mutex
	closes int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan realtime.Change, 16)}
}

func (s *fakeStream) Events() <-chan realtime.Change { return s.events }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes == 1 {
		close(s.events)
	}
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeBackend struct {
	mu sync.Mutex

	pinned    *comment.Comment
	feed      []*comment.Comment
	pinnedErr error
	listErr   error
	insertErr error
	uploadErr error
	subErr    error

	streams  []*fakeStream
	filters  []realtime.Filter
	inserted []comment.Draft
	uploads  []string
	calls    int
}

func (b *fakeBackend) PinnedComment(context.Context) (*comment.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.pinnedErr != nil {
		return nil, b.pinnedErr
	}
	if b.pinned == nil {
		return nil, comment.ErrNotFound
	}
	return b.pinned, nil
}

func (b *fakeBackend) ListComments(_ context.Context, pinned bool) ([]*comment.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.feed, nil
}

func (b *fakeBackend) InsertComment(_ context.Context, d comment.Draft) (*comment.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.insertErr != nil {
		return nil, b.insertErr
	}
	b.inserted = append(b.inserted, d)
	return &comment.Comment{ID: int64(len(b.inserted)), UserName: d.UserName, Content: d.Content, ProfileImage: d.ProfileImage}, nil
}

func (b *fakeBackend) UploadImage(_ context.Context, filename string, r io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	b.uploads = append(b.uploads, filename)
	return "https://cdn.example/profile-images/" + filename, nil
}

func (b *fakeBackend) Subscribe(_ context.Context, f realtime.Filter) (realtime.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.subErr != nil {
		return nil, b.subErr
	}
	s := newFakeStream()
	b.streams = append(b.streams, s)
	b.filters = append(b.filters, f)
	return s, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBackend) stream() *fakeStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

var errBoom = errors.New("boom")

func at(minutes int) time.Time {
	return time.Date(2026, 1, 1, 0, minutes, 0, 0, time.UTC)
}

func cm(id int64, content string, minutes int, pinned bool) *comment.Comment {
	return &comment.Comment{ID: id, UserName: "u", Content: content, IsPinned: pinned, CreatedAt: at(minutes)}
}

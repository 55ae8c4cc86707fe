package widget

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/realtime"
)

type renders struct {
	mu     sync.Mutex
	states []State
}

func (r *renders) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *renders) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func mount(t *testing.T, b *fakeBackend, opts ...Option) *Widget {
	t.Helper()
	w := New(b, opts...)
	require.NoError(t, w.Mount(context.Background()))
	t.Cleanup(func() { _ = w.Unmount() })
	return w
}

func waitFor(t *testing.T, w *Widget, cond func(State) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(w.State()) }, 2*time.Second, 5*time.Millisecond)
}

func TestMountSeedOrder(t *testing.T) {
	b := &fakeBackend{
		pinned: cm(1, "A", 0, true),
		feed:   []*comment.Comment{cm(3, "C", 2, false), cm(2, "B", 1, false)},
	}
	w := mount(t, b)

	st := w.State()
	assert.Equal(t, []int64{1, 3, 2}, ids(st.Ordered()))
	assert.Equal(t, 3, st.Total())

	require.Len(t, b.filters, 1)
	assert.Equal(t, FeedFilter, b.filters[0])
	assert.Equal(t, "is_pinned=eq.false", b.filters[0].Predicate())
}

func TestMountDegradesOnReadErrors(t *testing.T) {
	b := &fakeBackend{pinnedErr: errBoom, listErr: errBoom}
	w := mount(t, b)

	st := w.State()
	assert.Nil(t, st.Pinned)
	assert.Empty(t, st.Feed)
	assert.Empty(t, st.Error, "read failures are not shown to the visitor")
	assert.NotNil(t, b.stream(), "subscription still opened")
}

func TestMountSubscribeError(t *testing.T) {
	b := &fakeBackend{feed: []*comment.Comment{cm(1, "a", 1, false)}, subErr: errBoom}
	w := New(b)

	err := w.Mount(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, w.State().Feed, 1)
	assert.NoError(t, w.Unmount())
}

func TestMountTwice(t *testing.T) {
	w := mount(t, &fakeBackend{})
	assert.Error(t, w.Mount(context.Background()))
}

func TestInsertEventAppearsAtHeadOnce(t *testing.T) {
	b := &fakeBackend{feed: []*comment.Comment{cm(1, "old", 1, false)}}
	w := mount(t, b)

	b.stream().events <- change(t, realtime.EventInsert, cm(2, "new", 2, false), nil)
	waitFor(t, w, func(s State) bool { return len(s.Feed) == 2 })

	st := w.State()
	assert.Equal(t, []int64{2, 1}, ids(st.Feed))

	n := 0
	for _, c := range st.Ordered() {
		if c.ID == 2 {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestPinnedStaysAboveNewerComments(t *testing.T) {
	b := &fakeBackend{pinned: cm(1, "A", 0, true)}
	w := mount(t, b)

	b.stream().events <- change(t, realtime.EventInsert, cm(5, "newest", 50, false), nil)
	waitFor(t, w, func(s State) bool { return len(s.Feed) == 1 })

	assert.Equal(t, []int64{1, 5}, ids(w.State().Ordered()))
}

func TestUpdateAndDeleteEvents(t *testing.T) {
	b := &fakeBackend{feed: []*comment.Comment{cm(2, "b", 2, false), cm(1, "a", 1, false)}}
	w := mount(t, b)
	s := b.stream()

	s.events <- change(t, realtime.EventUpdate, cm(1, "a2", 1, false), cm(1, "a", 1, false))
	s.events <- change(t, realtime.EventDelete, nil, cm(42, "", 0, false))
	s.events <- change(t, realtime.EventDelete, nil, cm(2, "b", 2, false))

	waitFor(t, w, func(st State) bool { return len(st.Feed) == 1 })
	st := w.State()
	assert.Equal(t, int64(1), st.Feed[0].ID)
	assert.Equal(t, "a2", st.Feed[0].Content)
}

func TestMalformedEventIgnored(t *testing.T) {
	b := &fakeBackend{feed: []*comment.Comment{cm(1, "a", 1, false)}}
	w := mount(t, b)
	s := b.stream()

	s.events <- realtime.Change{Type: realtime.EventInsert, Table: comment.Table}
	s.events <- change(t, realtime.EventInsert, cm(2, "b", 2, false), nil)

	waitFor(t, w, func(st State) bool { return len(st.Feed) == 2 })
	assert.Equal(t, []int64{2, 1}, ids(w.State().Feed))
}

func TestUnmountClosesSubscriptionOnce(t *testing.T) {
	r := &renders{}
	b := &fakeBackend{}
	w := New(b, WithRender(r.record))
	require.NoError(t, w.Mount(context.Background()))
	s := b.stream()

	require.NoError(t, w.Unmount())
	require.NoError(t, w.Unmount())
	assert.Equal(t, 1, s.closeCount())
	assert.Len(t, b.streams, 1)

	before := r.count()
	stateBefore := w.State()

	require.NoError(t, w.Submit(context.Background(), comment.Draft{UserName: "late", Content: "x"}, nil))
	assert.Equal(t, before, r.count(), "no renders after unmount")
	assert.Equal(t, stateBefore, w.State(), "no state updates after unmount")
}

func TestUnmountBeforeMount(t *testing.T) {
	w := New(&fakeBackend{})
	assert.NoError(t, w.Unmount())
}

func TestRenderCallback(t *testing.T) {
	r := &renders{}
	b := &fakeBackend{pinned: cm(1, "A", 0, true)}
	mount(t, b, WithRender(r.record))

	require.Equal(t, 1, r.count(), "initial load renders once")

	b.stream().events <- change(t, realtime.EventInsert, cm(2, "b", 2, false), nil)
	require.Eventually(t, func() bool { return r.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	r.mu.Lock()
	last := r.states[len(r.states)-1]
	r.mu.Unlock()
	assert.Equal(t, []int64{1, 2}, ids(last.Ordered()))
}

func TestSubmitWithoutImage(t *testing.T) {
	b := &fakeBackend{}
	w := mount(t, b)

	require.NoError(t, w.Submit(context.Background(), comment.Draft{UserName: "Ana", Content: "hi"}, nil))

	require.Len(t, b.inserted, 1)
	assert.Nil(t, b.inserted[0].ProfileImage)
	assert.Empty(t, b.uploads)

	st := w.State()
	assert.False(t, st.Submitting)
	assert.Empty(t, st.Error)
	assert.Empty(t, st.Feed, "insert is shown only after its push event")
}

func TestSubmitWithImage(t *testing.T) {
	b := &fakeBackend{}
	w := mount(t, b)

	img := &Image{Name: "me.png", ContentType: "image/png", Size: 3, Data: bytes.NewReader([]byte("png"))}
	require.NoError(t, w.Submit(context.Background(), comment.Draft{UserName: "Ana", Content: "hi"}, img))

	require.Len(t, b.inserted, 1)
	require.NotNil(t, b.inserted[0].ProfileImage)
	assert.Equal(t, "https://cdn.example/profile-images/me.png", *b.inserted[0].ProfileImage)
}

func TestSubmitUploadFailureSkipsInsert(t *testing.T) {
	b := &fakeBackend{uploadErr: errBoom}
	w := mount(t, b)

	img := &Image{Name: "me.png", ContentType: "image/png", Size: 3, Data: bytes.NewReader([]byte("png"))}
	err := w.Submit(context.Background(), comment.Draft{UserName: "Ana", Content: "hi"}, img)

	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, b.inserted)
	assert.Equal(t, SubmitErrorMessage, w.State().Error)
	assert.False(t, w.State().Submitting)
}

func TestSubmitInsertFailure(t *testing.T) {
	b := &fakeBackend{insertErr: errBoom}
	w := mount(t, b)

	err := w.Submit(context.Background(), comment.Draft{UserName: "Ana", Content: "hi"}, nil)
	assert.True(t, errors.Is(err, ErrSubmitFailed))
	assert.Equal(t, "Failed to post comment. Please try again.", w.State().Error)

	// A later success clears the error.
	b.mu.Lock()
	b.insertErr = nil
	b.mu.Unlock()
	require.NoError(t, w.Submit(context.Background(), comment.Draft{UserName: "Ana", Content: "hi"}, nil))
	assert.Empty(t, w.State().Error)
}

func TestSubmitRendersSubmittingPhase(t *testing.T) {
	r := &renders{}
	b := &fakeBackend{}
	w := mount(t, b, WithRender(r.record))

	require.NoError(t, w.Submit(context.Background(), comment.Draft{UserName: "Ana", Content: "hi"}, nil))

	r.mu.Lock()
	defer r.mu.Unlock()
	require.GreaterOrEqual(t, len(r.states), 3)
	assert.True(t, r.states[len(r.states)-2].Submitting)
	assert.False(t, r.states[len(r.states)-1].Submitting)
}

package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/wilberttgr/folio/internal/comment"
)

var (
	// ErrIncomplete is returned when the name or message is blank.
	ErrIncomplete = errors.New("name and message are required")
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("a comment is already being posted")
	// ErrImageTooLarge is returned for images over comment.MaxImageSize.
	ErrImageTooLarge = comment.ErrImageTooLarge
	// ErrNotImage is returned for attachments that are not images.
	ErrNotImage = comment.ErrNotImage
)

// Phase is the form's submission phase.
type Phase int

const (
	Composing Phase = iota
	Submitting
)

func (p Phase) String() string {
	if p == Submitting {
		return "submitting"
	}
	return "composing"
}

// Submitter posts a comment. *Widget implements it.
type Submitter interface {
	Submit(ctx context.Context, d comment.Draft, img *Image) error
}

// Form holds the visitor's inputs and drives a submission.
type Form struct {
	submitter Submitter

	mu      sync.Mutex
	name    string
	message string
	image   *Image
	phase   Phase
}

// NewForm creates an empty form that submits through s.
func NewForm(s Submitter) *Form {
	return &Form{submitter: s}
}

// SetName sets the display name, truncated to comment.MaxNameLength runes.
func (f *Form) SetName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = truncate(name, comment.MaxNameLength)
}

// SetMessage sets the message, truncated to comment.MaxContentLength runes.
func (f *Form) SetMessage(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = truncate(message, comment.MaxContentLength)
}

// AttachImage validates and attaches an image. A rejected image clears any
// previous attachment.
func (f *Form) AttachImage(img Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := comment.CheckImage(img.Size, img.ContentType); err != nil {
		f.image = nil
		return err
	}
	f.image = &img
	return nil
}

// ClearImage removes the attached image.
func (f *Form) ClearImage() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.image = nil
}

// Name returns the current name input.
func (f *Form) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Message returns the current message input.
func (f *Form) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Image returns the attached image, or nil.
func (f *Form) Image() *Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image
}

// Phase returns the current phase.
func (f *Form) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Submit posts the form. Blank inputs are rejected with ErrIncomplete without
// contacting the backend. Otherwise the inputs are cleared, the submission
// runs, and the form returns to Composing whatever the outcome.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.phase == Submitting {
		f.mu.Unlock()
		return ErrBusy
	}
	if strings.TrimSpace(f.name) == "" || strings.TrimSpace(f.message) == "" {
		f.mu.Unlock()
		return ErrIncomplete
	}

	d := comment.Draft{UserName: f.name, Content: f.message}
	img := f.image
	f.name, f.message, f.image = "", "", nil
	f.phase = Submitting
	f.mu.Unlock()

	err := f.submitter.Submit(ctx, d, img)

	f.mu.Lock()
	f.phase = Composing
	f.mu.Unlock()

	return err
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

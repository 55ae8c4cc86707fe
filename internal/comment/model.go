// Package comment provides the portfolio comment model, its SQLite-backed
// repository and the validation rules shared by the server and clients.
package comment

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Table is the name change notifications carry for comment writes.
const Table = "portfolio_comments"

// Input limits.
const (
	MaxNameLength    = 15
	MaxContentLength = 200
	MaxImageSize     = 5 * 1024 * 1024
)

var (
	// ErrNotFound is returned when a comment does not exist.
	ErrNotFound = errors.New("comment not found")
	// ErrInvalid is returned for drafts that fail validation.
	ErrInvalid = errors.New("invalid comment")
	// ErrImageTooLarge is returned for images over MaxImageSize.
	ErrImageTooLarge = errors.New("File size must be less than 5MB. Please choose a smaller image.")
	// ErrNotImage is returned for files whose content type is not image/*.
	ErrNotImage = errors.New("Please select a valid image file.")
)

// Comment is a single entry in the public comment section.
type Comment struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"user_name"`
	Content      string    `json:"content"`
	ProfileImage *string   `json:"profile_image"`
	IsPinned     bool      `json:"is_pinned"`
	CreatedAt    time.Time `json:"created_at"`
}

// Draft is a comment as submitted by a visitor.
type Draft struct {
	UserName     string  `json:"user_name"`
	Content      string  `json:"content"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// Validate checks the draft against the form rules.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.UserName) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalid)
	}
	if utf8.RuneCountInString(d.UserName) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, MaxNameLength)
	}
	if utf8.RuneCountInString(d.Content) > MaxContentLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalid, MaxContentLength)
	}
	if d.ProfileImage != nil && *d.ProfileImage == "" {
		return fmt.Errorf("%w: empty profile image url", ErrInvalid)
	}
	return nil
}

// CheckImage applies the upload rules to a file's size and content type.
func CheckImage(size int64, contentType string) error {
	if size > MaxImageSize {
		return ErrImageTooLarge
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ErrNotImage
	}
	return nil
}

// FormatRelative renders t relative to now: "Just now", "5m ago", "3h ago",
// "2d ago", or a date such as "Jan 2, 2006" after a week.
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	minutes := int(now.Sub(t) / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/casdoor/oss"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ObjectName builds a unique object name "<unix millis>_<random>.<ext>",
// keeping the extension of filename.
func ObjectName(filename string, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(nameAlphabet, 11)
	if err != nil {
		return "", fmt.Errorf("generating object name: %w", err)
	}

	name := fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
	if ext := strings.ToLower(path.Ext(filename)); len(ext) > 1 {
		name += ext
	}
	return name, nil
}

// Uploader writes images into a bucket and returns their public URLs.
type Uploader struct {
	backend   oss.StorageInterface
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewUploader creates an uploader. When publicURL is empty, URLs come from the
// backend's GetURL.
func NewUploader(backend oss.StorageInterface, bucket, publicURL string) *Uploader {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Uploader{
		backend:   backend,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Upload stores r under a generated name and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := ObjectName(filename, u.now())
	if err != nil {
		return "", err
	}
	key := path.Join(u.bucket, name)

	if _, err := u.backend.Put(key, r); err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	return u.URL(key)
}

// URL returns the public URL of the object at key.
func (u *Uploader) URL(key string) (string, error) {
	if u.publicURL != "" {
		return u.publicURL + "/" + strings.TrimLeft(key, "/"), nil
	}
	url, err := u.backend.GetURL(key)
	if err != nil {
		return "", fmt.Errorf("resolving url for %s: %w", key, err)
	}
	return url, nil
}

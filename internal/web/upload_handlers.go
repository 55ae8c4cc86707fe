package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	"github.com/wilberttgr/folio/internal/comment"
)

// maxUploadBody leaves room for multipart framing around a maximum-size image.
const maxUploadBody = comment.MaxImageSize + 1024*1024

var errUploadsDisabled = errors.New("uploads are not configured")

// storeImage checks an uploaded image and writes it to storage.
// The content type is sniffed from the bytes, not taken from the client.
func (s *Server) storeImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", errUploadsDisabled
	}
	if fh.Size > comment.MaxImageSize {
		return "", comment.ErrImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing upload", "err", err)
		}
	}()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detecting content type: %w", err)
	}
	if err := comment.CheckImage(fh.Size, mtype.String()); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding upload: %w", err)
	}

	return s.uploader.Upload(ctx, fh.Filename, io.LimitReader(f, comment.MaxImageSize))
}

// apiUpload accepts a multipart "file" field and returns its public URL.
func (s *Server) apiUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			apiError(w, comment.ErrImageTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		apiError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("removing multipart files", "err", err)
		}
	}()

	_, fh, err := r.FormFile("file")
	if err != nil {
		apiError(w, "file is required", http.StatusBadRequest)
		return
	}

	url, err := s.storeImage(r.Context(), fh)
	switch {
	case errors.Is(err, comment.ErrImageTooLarge):
		apiError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, comment.ErrNotImage):
		apiError(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, errUploadsDisabled):
		apiError(w, err.Error(), http.StatusServiceUnavailable)
	case err != nil:
		slog.Error("storing upload", "filename", fh.Filename, "err", err)
		apiError(w, "upload failed", http.StatusInternalServerError)
	default:
		apiJSON(w, map[string]string{"url": url}, http.StatusCreated)
	}
}

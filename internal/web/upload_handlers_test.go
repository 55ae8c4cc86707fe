package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wilberttgr/folio/internal/comment"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func multipartRequest(t *testing.T, path string, fields map[string]string, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	r := httptest.NewRequest("POST", path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestAPIUploadImage(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, multipartRequest(t, "/api/uploads", nil, "file", "Avatar.PNG", pngHeader))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.URL, "/uploads/profile-images/") || !strings.HasSuffix(resp.URL, ".png") {
		t.Fatalf("url = %q", resp.URL)
	}

	stored := filepath.Join(env.uploadDir, strings.TrimPrefix(resp.URL, "/uploads/"))
	data, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Error("stored bytes differ from upload")
	}

	// The stored image is served back.
	w = httptest.NewRecorder()
	env.srv.ServeHTTP(w, httptest.NewRequest("GET", resp.URL, nil))
	if w.Code != http.StatusOK {
		t.Errorf("serving upload status = %d", w.Code)
	}
}

func TestAPIUploadRejects(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     int
	}{
		{"not an image", "notes.png", []byte("just some text"), http.StatusUnsupportedMediaType},
		{"too large", "big.png", append(append([]byte{}, pngHeader...), make([]byte, comment.MaxImageSize)...), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.srv.ServeHTTP(w, multipartRequest(t, "/api/uploads", nil, "file", tt.filename, tt.data))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, multipartRequest(t, "/api/uploads", map[string]string{"x": "y"}, "", "", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d, want 400", w.Code)
	}
}

func TestAPIUploadDisabled(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Uploader = nil
		o.UploadDir = ""
	})

	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, multipartRequest(t, "/api/uploads", nil, "file", "a.png", pngHeader))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

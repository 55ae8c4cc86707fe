package logging

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, true))
	return &buf
}

func TestNewDevMode(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug("test debug")
	log.Info("test info")

	out := buf.String()
	if !strings.Contains(out, "test debug") {
		t.Error("expected debug message visible in dev mode")
	}
	if strings.HasPrefix(out, "{") {
		t.Error("expected text output in dev mode")
	}
}

func TestNewProdMode(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("hidden")
	log.Info("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered in prod mode")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestRequestLogger(t *testing.T) {
	buf := captureDefault(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	RequestLogger(inner).ServeHTTP(rec, httptest.NewRequest("POST", "/api/comments", nil))

	out := buf.String()
	for _, want := range []string{"POST", "/api/comments", "201"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		buf := captureDefault(t)
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		RequestLogger(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

		if !strings.Contains(buf.String(), "level="+tt.level) {
			t.Errorf("status %d logged %q, want level %s", tt.status, buf.String(), tt.level)
		}
	}
}

func TestRequestLoggerSkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/static/app.js", "/uploads/profile-images/a.png", "/health"} {
		buf := captureDefault(t)
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		RequestLogger(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))

		if buf.Len() > 0 {
			t.Errorf("expected no log for %s, got %q", path, buf.String())
		}
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("expected error when underlying writer cannot hijack")
	}
	if _, ok := rw.Unwrap().(*httptest.ResponseRecorder); !ok {
		t.Error("Unwrap should return the recorder")
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/portfolio"
	"github.com/wilberttgr/folio/internal/realtime"
	"github.com/wilberttgr/folio/internal/widget"
)

var _ widget.Backend = (*Client)(nil)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestListComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/comments" {
			t.Errorf("path = %q, want /api/comments", r.URL.Path)
		}
		if got := r.URL.Query().Get("pinned"); got != "false" {
			t.Errorf("pinned = %q, want false", got)
		}
		writeJSON(t, w, http.StatusOK, []*comment.Comment{{ID: 1, UserName: "ana", Content: "hi"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	comments, err := c.ListComments(context.Background(), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(comments) != 1 || comments[0].UserName != "ana" {
		t.Errorf("comments = %+v", comments)
	}
}

func TestPinnedComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/comments/pinned" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, comment.Comment{ID: 7, IsPinned: true})
	}))
	defer srv.Close()

	cm, err := New(srv.URL, "").PinnedComment(context.Background())
	if err != nil {
		t.Fatalf("pinned: %v", err)
	}
	if cm.ID != 7 || !cm.IsPinned {
		t.Errorf("pinned = %+v", cm)
	}
}

func TestPinnedCommentNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]string{"error": "comment not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").PinnedComment(context.Background())
	if !errors.Is(err, comment.ErrNotFound) {
		t.Fatalf("err = %v, want comment.ErrNotFound", err)
	}
}

func TestInsertComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var d comment.Draft
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if d.UserName != "Budi" || d.Content != "Halo" {
			t.Errorf("draft = %+v", d)
		}
		writeJSON(t, w, http.StatusCreated, comment.Comment{ID: 3, UserName: d.UserName, Content: d.Content})
	}))
	defer srv.Close()

	cm, err := New(srv.URL, "").InsertComment(context.Background(), comment.Draft{UserName: "Budi", Content: "Halo"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if cm.ID != 3 {
		t.Errorf("id = %d, want 3", cm.ID)
	}
}

func TestUploadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/uploads" {
			t.Errorf("path = %q", r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "me.png" || string(data) != "png-bytes" {
			t.Errorf("upload = %s %q", hdr.Filename, data)
		}
		writeJSON(t, w, http.StatusCreated, map[string]string{"url": "/uploads/profile-images/1_abc.png"})
	}))
	defer srv.Close()

	url, err := New(srv.URL, "").UploadImage(context.Background(), "me.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "/uploads/profile-images/1_abc.png" {
		t.Errorf("url = %q", url)
	}
}

func TestUploadImageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusRequestEntityTooLarge, map[string]string{"error": comment.ErrImageTooLarge.Error()})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").UploadImage(context.Background(), "big.png", strings.NewReader("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Error() != comment.ErrImageTooLarge.Error() {
		t.Errorf("message = %q", apiErr.Error())
	}
}

func TestPinAndDeleteSendAPIKey(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer testkey" {
			t.Error("expected Bearer testkey")
		}
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPatch:
			var body map[string]bool
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			writeJSON(t, w, http.StatusOK, comment.Comment{ID: 5, IsPinned: body["is_pinned"]})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	ctx := context.Background()

	cm, err := c.PinComment(ctx, 5)
	if err != nil || !cm.IsPinned {
		t.Fatalf("pin = %+v, %v", cm, err)
	}
	cm, err = c.UnpinComment(ctx, 5)
	if err != nil || cm.IsPinned {
		t.Fatalf("unpin = %+v, %v", cm, err)
	}
	if err := c.DeleteComment(ctx, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{"PATCH /api/comments/5", "PATCH /api/comments/5", "DELETE /api/comments/5"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}))
	defer srv.Close()

	err := New(srv.URL, "bad").DeleteComment(context.Background(), 1)
	if err == nil || err.Error() != "unauthorized" {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").ListComments(context.Background(), false)
	if err == nil || err.Error() != "server error: Bad Gateway" {
		t.Fatalf("err = %v", err)
	}
}

func TestProjectsAndCertificates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects":
			writeJSON(t, w, http.StatusOK, []*portfolio.Project{{ID: 1, Slug: "folio"}})
		case "/api/projects/folio":
			writeJSON(t, w, http.StatusOK, portfolio.Project{ID: 1, Slug: "folio", Github: portfolio.PrivateGithub})
		case "/api/certificates":
			writeJSON(t, w, http.StatusOK, []*portfolio.Certificate{{ID: 1, Img: "c.png"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "")
	ctx := context.Background()

	projects, err := c.ListProjects(ctx)
	if err != nil || len(projects) != 1 {
		t.Fatalf("projects = %v, %v", projects, err)
	}
	p, err := c.GetProject(ctx, "folio")
	if err != nil || !p.IsPrivate() {
		t.Fatalf("project = %+v, %v", p, err)
	}
	certs, err := c.ListCertificates(ctx)
	if err != nil || len(certs) != 1 {
		t.Fatalf("certificates = %v, %v", certs, err)
	}
}

func TestRealtimeURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/realtime/v1", false},
		{"https://folio.example/", "wss://folio.example/realtime/v1", false},
		{"ftp://folio.example", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := New(tt.base, "").RealtimeURL()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("RealtimeURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	hub := realtime.NewHub()
	mux := http.NewServeMux()
	mux.Handle(RealtimePath, realtime.NewHandler(hub))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := New(srv.URL, "").Subscribe(ctx, widget.FeedFilter)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = stream.Close() }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	change, err := realtime.NewChange(realtime.EventInsert, comment.Table, comment.Comment{ID: 9, Content: "live"}, nil)
	if err != nil {
		t.Fatalf("new change: %v", err)
	}
	if err := hub.Publish(ctx, change); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-stream.Events():
		if got.Type != realtime.EventInsert {
			t.Errorf("type = %s, want INSERT", got.Type)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for change")
	}
}

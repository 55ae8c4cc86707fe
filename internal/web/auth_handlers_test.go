package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wilberttgr/folio/internal/auth"
)

func (e *testEnv) doWithSession(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	r.AddCookie(e.sessionCookie(t))
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, r)
	return w
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/login", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "folio enroll") {
		t.Error("expected enrollment hint when no passkeys exist")
	}

	w = env.doWithSession(t, "GET", "/login", "")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin" {
		t.Errorf("signed-in login = %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	c := env.sessionCookie(t)
	r := httptest.NewRequest("POST", "/logout", nil)
	r.AddCookie(c)
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, r)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}

	r = httptest.NewRequest("GET", "/admin", nil)
	r.AddCookie(c)
	w = httptest.NewRecorder()
	env.srv.ServeHTTP(w, r)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Errorf("admin after logout = %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestEnrollPage(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, "GET", "/enroll?token=bogus", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bogus token status = %d, want 400", w.Code)
	}

	token, err := env.srv.tokens.Create(ownerEmail, auth.PurposeEnroll)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	w := env.do(t, "GET", "/enroll?token="+token, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), ownerEmail) {
		t.Error("expected owner email on enroll page")
	}

	// Viewing the page does not use up the token.
	if _, err := env.srv.tokens.Peek(token, auth.PurposeEnroll); err != nil {
		t.Errorf("token consumed by page view: %v", err)
	}
}

func TestBeginRegistration(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, "POST", "/passkey/register/begin", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}

	stranger, err := env.srv.tokens.Create("stranger@example.com", auth.PurposeEnroll)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if w := env.do(t, "POST", "/passkey/register/begin?token="+stranger, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("non-owner token status = %d, want 401", w.Code)
	}

	token, err := env.srv.tokens.Create(ownerEmail, auth.PurposeEnroll)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	w := env.do(t, "POST", "/passkey/register/begin?token="+token, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Ceremony string          `json:"ceremony"`
		Options  json.RawMessage `json:"options"`
	}
	decodeBody(t, w.Body.String(), &resp)
	if resp.Ceremony == "" || !strings.Contains(string(resp.Options), "challenge") {
		t.Errorf("response = %s", w.Body.String())
	}

	w = env.doWithSession(t, "POST", "/passkey/register/begin", "")
	if w.Code != http.StatusOK {
		t.Errorf("owner session status = %d", w.Code)
	}
}

func TestPasskeyFinishWithoutCeremony(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, "POST", "/passkey/login/finish?ceremony=nope", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("login finish status = %d, want 400", w.Code)
	}
	if w := env.doWithSession(t, "POST", "/passkey/register/finish?ceremony=nope", ""); w.Code != http.StatusBadRequest {
		t.Errorf("register finish status = %d, want 400", w.Code)
	}
}

func TestBeginLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/passkey/login/begin", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ceremonyResponse
	decodeBody(t, w.Body.String(), &resp)
	if resp.Ceremony == "" {
		t.Error("expected ceremony id")
	}
	if _, ok := env.srv.ceremonies.Take(resp.Ceremony); !ok {
		t.Error("ceremony was not stored")
	}
}

func TestAdminRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/admin", "/admin/keys", "/cli/auth"} {
		w := env.do(t, "GET", path, "", nil)
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
			t.Errorf("%s = %d %q", path, w.Code, w.Header().Get("Location"))
		}
	}
}

func TestAdminModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.addComment(t, "Ana", "moderate me")

	w := env.doWithSession(t, "GET", "/admin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "moderate me") || !strings.Contains(w.Body.String(), ownerEmail) {
		t.Error("admin page missing comment or owner email")
	}

	w = env.doWithSession(t, "POST", fmt.Sprintf("/admin/comments/%d/pin", c.ID), "")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("pin status = %d", w.Code)
	}
	got, err := env.srv.comments.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsPinned {
		t.Error("expected comment pinned")
	}

	if w := env.doWithSession(t, "POST", fmt.Sprintf("/admin/comments/%d/explode", c.ID), ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", w.Code)
	}

	if w := env.doWithSession(t, "POST", fmt.Sprintf("/admin/comments/%d/delete", c.ID), ""); w.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.doWithSession(t, "POST", fmt.Sprintf("/admin/comments/%d/delete", c.ID), ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestAdminKeys(t *testing.T) {
	env := newTestEnv(t)

	w := env.doWithSession(t, "POST", "/admin/keys", `{"name":"deploy"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created apiKeyCreateResponse
	decodeBody(t, w.Body.String(), &created)
	if !strings.HasPrefix(created.Key, "folio_") || created.APIKey.Email != ownerEmail {
		t.Errorf("created = %+v", created)
	}

	// The new key works against owner endpoints.
	if w := env.do(t, "GET", "/api/me", created.Key, nil); w.Code != http.StatusOK {
		t.Errorf("me with new key status = %d", w.Code)
	}

	w = env.doWithSession(t, "GET", "/admin/keys", "")
	var keys []auth.APIKey
	decodeBody(t, w.Body.String(), &keys)
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}

	path := fmt.Sprintf("/admin/keys/%d", created.APIKey.ID)
	if w := env.doWithSession(t, "DELETE", path, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := env.doWithSession(t, "DELETE", path, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCLIAuthIssuesKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.doWithSession(t, "GET", "/cli/auth", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "folio_") {
		t.Error("expected raw key on page")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("key page must not be cached")
	}
}

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wilberttgr/folio/internal/auth"
)

type loginData struct {
	Error       string
	HasPasskeys bool
}

type enrollData struct {
	Token string
	Email string
}

func (s *Server) ownerHasPasskeys() bool {
	if s.cfg.OwnerEmail == "" {
		return false
	}
	creds, err := s.passkeys.List(s.cfg.OwnerEmail)
	if err != nil {
		slog.Error("listing passkeys", "err", err)
		return false
	}
	return len(creds) > 0
}

// handleLoginPage renders the passkey login page.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Validate(r); err == nil {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	s.render(w, "login.html", loginData{HasPasskeys: s.ownerHasPasskeys()})
}

// handleLogout destroys the session and returns to the home page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		slog.Error("destroying session", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleEnrollPage shows the passkey registration page for a one-time link.
func (s *Server) handleEnrollPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	email, err := s.tokens.Peek(token, auth.PurposeEnroll)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			slog.Error("checking enrollment token", "err", err)
		}
		s.renderStatus(w, "login.html", loginData{
			Error:       "Invalid or expired enrollment link.",
			HasPasskeys: s.ownerHasPasskeys(),
		}, http.StatusBadRequest)
		return
	}
	s.render(w, "enroll.html", enrollData{Token: token, Email: email})
}

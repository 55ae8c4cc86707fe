package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wilberttgr/folio/internal/auth"
	"github.com/wilberttgr/folio/internal/comment"
)

type adminData struct {
	Email    string
	Comments []*comment.Comment
	Keys     []auth.APIKey
	Passkeys []auth.StoredCredential
}

// handleAdmin renders the moderation page.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	email := s.sessionEmail(r)
	st := s.loadComments(r.Context())

	keys, err := s.apiKeys.List()
	if err != nil {
		slog.Error("listing api keys", "err", err)
	}
	creds, err := s.passkeys.List(email)
	if err != nil {
		slog.Error("listing passkeys", "err", err)
	}

	s.render(w, "admin.html", adminData{
		Email:    email,
		Comments: st.Ordered(),
		Keys:     keys,
		Passkeys: creds,
	})
}

// handleAdminComment applies a pin, unpin or delete from the admin page.
func (s *Server) handleAdminComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}

	switch r.PathValue("action") {
	case "pin":
		_, err = s.comments.Pin(r.Context(), id)
	case "unpin":
		_, err = s.comments.Unpin(r.Context(), id)
	case "delete":
		err = s.comments.Delete(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}

	if errors.Is(err, comment.ErrNotFound) {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("moderating comment", "id", id, "action", r.PathValue("action"), "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

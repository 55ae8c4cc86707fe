package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wilberttgr/folio/internal/auth"
	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/portfolio"
)

// maxJSONBody bounds API request bodies.
const maxJSONBody = 64 * 1024

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", r.PathValue("id"))
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// apiListComments returns comments filtered by ?pinned=, newest first.
func (s *Server) apiListComments(w http.ResponseWriter, r *http.Request) {
	pinned := false
	if v := r.URL.Query().Get("pinned"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apiError(w, "pinned must be true or false", http.StatusBadRequest)
			return
		}
		pinned = b
	}

	comments, err := s.comments.List(r.Context(), pinned)
	if err != nil {
		slog.Error("listing comments", "pinned", pinned, "err", err)
		apiError(w, "listing comments failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, comments, http.StatusOK)
}

func (s *Server) apiPinnedComment(w http.ResponseWriter, r *http.Request) {
	c, err := s.comments.Pinned(r.Context())
	if errors.Is(err, comment.ErrNotFound) {
		apiError(w, "no pinned comment", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("loading pinned comment", "err", err)
		apiError(w, "loading pinned comment failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, c, http.StatusOK)
}

// apiInsertComment stores a visitor comment. New comments are never pinned.
func (s *Server) apiInsertComment(w http.ResponseWriter, r *http.Request) {
	var d comment.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := s.comments.Add(r.Context(), d)
	if errors.Is(err, comment.ErrInvalid) {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("inserting comment", "err", err)
		apiError(w, "inserting comment failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, c, http.StatusCreated)
}

func (s *Server) apiUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body struct {
		IsPinned *bool `json:"is_pinned"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.IsPinned == nil {
		apiError(w, "is_pinned is required", http.StatusBadRequest)
		return
	}

	var c *comment.Comment
	if *body.IsPinned {
		c, err = s.comments.Pin(r.Context(), id)
	} else {
		c, err = s.comments.Unpin(r.Context(), id)
	}
	if errors.Is(err, comment.ErrNotFound) {
		apiError(w, "comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("updating comment", "id", id, "err", err)
		apiError(w, "updating comment failed", http.StatusInternalServerError)
		return
	}

	if id, ok := auth.IdentityFrom(r.Context()); ok {
		slog.Info("comment moderated", "id", c.ID, "pinned", c.IsPinned, "by", id.Email)
	}
	apiJSON(w, c, http.StatusOK)
}

func (s *Server) apiDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.comments.Delete(r.Context(), id)
	if errors.Is(err, comment.ErrNotFound) {
		apiError(w, "comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("deleting comment", "id", id, "err", err)
		apiError(w, "deleting comment failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		apiError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	apiJSON(w, id, http.StatusOK)
}

func (s *Server) apiProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.portfolio.Profile()
	if err != nil {
		slog.Error("loading profile", "err", err)
		apiError(w, "loading profile failed", http.StatusInternalServerError)
		return
	}
	stats, err := s.portfolio.Stats(s.now())
	if err != nil {
		slog.Error("computing stats", "err", err)
		apiError(w, "loading profile failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, struct {
		portfolio.Profile
		Stats portfolio.Stats `json:"stats"`
	}{p, stats}, http.StatusOK)
}

func (s *Server) apiListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.portfolio.Projects()
	if err != nil {
		slog.Error("listing projects", "err", err)
		apiError(w, "listing projects failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, projects, http.StatusOK)
}

func (s *Server) apiGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.portfolio.Project(r.PathValue("id"))
	if errors.Is(err, portfolio.ErrNotFound) {
		apiError(w, "project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("loading project", "ref", r.PathValue("id"), "err", err)
		apiError(w, "loading project failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

func (s *Server) apiListCertificates(w http.ResponseWriter, r *http.Request) {
	certs, err := s.portfolio.Certificates()
	if err != nil {
		slog.Error("listing certificates", "err", err)
		apiError(w, "listing certificates failed", http.StatusInternalServerError)
		return
	}
	apiJSON(w, certs, http.StatusOK)
}

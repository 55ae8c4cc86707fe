package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wilberttgr/folio/internal/auth"
)

type apiKeyCreateResponse struct {
	Key    string       `json:"key"` // raw key, shown once
	APIKey *auth.APIKey `json:"api_key"`
}

func (s *Server) sessionEmail(r *http.Request) string {
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		return id.Email
	}
	return ""
}

// handleCreateKey generates a new API key for the signed-in owner.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = "API Key"
	}

	raw, key, err := s.apiKeys.Create(name, s.sessionEmail(r))
	if err != nil {
		slog.Error("creating api key", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	apiJSON(w, apiKeyCreateResponse{Key: raw, APIKey: key}, http.StatusCreated)
}

// handleListKeys returns all API keys without their raw values.
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.apiKeys.List()
	if err != nil {
		slog.Error("listing api keys", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	apiJSON(w, keys, http.StatusOK)
}

// handleDeleteKey revokes an API key.
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.apiKeys.Delete(id)
	if errors.Is(err, auth.ErrKeyNotFound) {
		apiError(w, "key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("deleting api key", "id", id, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

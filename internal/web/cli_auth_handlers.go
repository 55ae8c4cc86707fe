package web

import (
	"log/slog"
	"net/http"
)

type cliAuthData struct {
	APIKey string
}

// handleCLIAuth issues an API key for the command-line client to the
// signed-in owner and shows it once.
func (s *Server) handleCLIAuth(w http.ResponseWriter, r *http.Request) {
	raw, _, err := s.apiKeys.Create("CLI", s.sessionEmail(r))
	if err != nil {
		slog.Error("creating api key", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	s.render(w, "cli_auth.html", cliAuthData{APIKey: raw})
}

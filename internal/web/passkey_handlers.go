package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/wilberttgr/folio/internal/auth"
)

type ceremonyResponse struct {
	Ceremony string      `json:"ceremony"`
	Options  interface{} `json:"options"`
}

// registrant resolves who is registering a passkey: the signed-in owner, or
// the holder of an enrollment token issued to the owner.
func (s *Server) registrant(r *http.Request) (string, error) {
	if email, err := s.sessions.Validate(r); err == nil && s.cfg.IsOwner(email) {
		return s.cfg.OwnerEmail, nil
	}
	email, err := s.tokens.Peek(r.URL.Query().Get("token"), auth.PurposeEnroll)
	if err != nil {
		return "", err
	}
	if !s.cfg.IsOwner(email) {
		return "", auth.ErrInvalidToken
	}
	return s.cfg.OwnerEmail, nil
}

// handleBeginRegistration starts passkey registration.
func (s *Server) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	email, err := s.registrant(r)
	if err != nil {
		apiError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	owner, err := s.passkeys.LoadOwner(email)
	if err != nil {
		slog.Error("loading credentials", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	exclude := make([]protocol.CredentialDescriptor, len(owner.WebAuthnCredentials()))
	for i, c := range owner.WebAuthnCredentials() {
		exclude[i] = c.Descriptor()
	}

	creation, session, err := s.wan.BeginRegistration(owner,
		webauthn.WithExclusions(exclude),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		slog.Error("beginning registration", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	id, err := s.ceremonies.Put(session)
	if err != nil {
		slog.Error("storing ceremony", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	apiJSON(w, ceremonyResponse{Ceremony: id, Options: creation}, http.StatusOK)
}

// handleFinishRegistration stores the new passkey. An enrollment token is
// consumed and the owner is signed in.
func (s *Server) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	email, err := s.registrant(r)
	if err != nil {
		apiError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, ok := s.ceremonies.Take(r.URL.Query().Get("ceremony"))
	if !ok {
		apiError(w, "no registration in progress", http.StatusBadRequest)
		return
	}

	owner, err := s.passkeys.LoadOwner(email)
	if err != nil {
		slog.Error("loading credentials", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	credential, err := s.wan.FinishRegistration(owner, *session, r)
	if err != nil {
		slog.Warn("finishing registration", "err", err)
		apiError(w, "registration failed", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}
	if err := s.passkeys.Save(email, name, credential); err != nil {
		slog.Error("saving credential", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if token := r.URL.Query().Get("token"); token != "" {
		if _, err := s.tokens.Consume(token, auth.PurposeEnroll); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
			slog.Error("consuming enrollment token", "err", err)
		}
	}
	if err := s.sessions.Create(w, email); err != nil {
		slog.Error("creating session", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("passkey registered", "email", email, "name", name)
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleBeginLogin starts a discoverable passkey login.
func (s *Server) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, session, err := s.wan.BeginDiscoverableLogin()
	if err != nil {
		slog.Error("beginning passkey login", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	id, err := s.ceremonies.Put(session)
	if err != nil {
		slog.Error("storing ceremony", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	apiJSON(w, ceremonyResponse{Ceremony: id, Options: assertion}, http.StatusOK)
}

// handleFinishLogin completes passkey login and creates a session.
func (s *Server) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ceremonies.Take(r.URL.Query().Get("ceremony"))
	if !ok {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}

	resolve := func(rawID, userHandle []byte) (webauthn.User, error) {
		owner, err := s.passkeys.LoadOwner(s.cfg.OwnerEmail)
		if err != nil {
			return nil, err
		}
		if s.cfg.OwnerEmail == "" || !owner.MatchesHandle(userHandle) {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		return owner, nil
	}

	if _, _, err := s.wan.FinishPasskeyLogin(resolve, *session, r); err != nil {
		slog.Warn("finishing passkey login", "err", err)
		apiError(w, "login failed", http.StatusUnauthorized)
		return
	}

	if err := s.sessions.Create(w, s.cfg.OwnerEmail); err != nil {
		slog.Error("creating session", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("login success", "email", s.cfg.OwnerEmail, "method", "passkey")
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

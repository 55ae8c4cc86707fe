// Package web provides the HTTP server for the portfolio pages, the comment
// API, the realtime change endpoint and the owner's admin pages.
package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"golang.org/x/time/rate"

	"github.com/wilberttgr/folio/internal/auth"
	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/logging"
	"github.com/wilberttgr/folio/internal/portfolio"
	"github.com/wilberttgr/folio/internal/realtime"
	"github.com/wilberttgr/folio/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// RealtimePath is where the change stream is served.
const RealtimePath = "/realtime/v1"

// Options configures a Server.
type Options struct {
	DB     *sql.DB
	Auth   auth.Config
	Broker realtime.Broker

	// Uploader stores comment images. Nil disables uploads.
	Uploader *storage.Uploader
	// UploadDir, when set, is served at /uploads/.
	UploadDir string

	// WriteLimit and WriteBurst bound public writes per client IP.
	WriteLimit rate.Limit
	WriteBurst int
}

// Server is the folio HTTP server.
type Server struct {
	cfg        auth.Config
	comments   *comment.Repository
	portfolio  *portfolio.Service
	broker     realtime.Broker
	uploader   *storage.Uploader
	sessions   *auth.SessionStore
	apiKeys    *auth.APIKeyStore
	tokens     *auth.TokenStore
	passkeys   *auth.PasskeyStore
	ceremonies *auth.Ceremonies
	wan        *webauthn.WebAuthn
	writes     *visitorLimiter
	templates  *template.Template
	mux        *http.ServeMux
	now        func() time.Time
}

// NewServer creates a server from opts. A nil Broker gets an in-process hub.
func NewServer(opts Options) (*Server, error) {
	if opts.DB == nil {
		return nil, errors.New("database is required")
	}
	if opts.Broker == nil {
		opts.Broker = realtime.NewHub()
	}
	if opts.WriteLimit == 0 {
		opts.WriteLimit = rate.Every(10 * time.Second)
	}
	if opts.WriteBurst == 0 {
		opts.WriteBurst = 5
	}

	wan, err := opts.Auth.WebAuthn()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        opts.Auth,
		comments:   comment.NewRepository(opts.DB, opts.Broker),
		portfolio:  portfolio.NewService(portfolio.NewRepository(opts.DB)),
		broker:     opts.Broker,
		uploader:   opts.Uploader,
		sessions:   auth.NewSessionStore(opts.DB, opts.Auth.SecureCookies()),
		apiKeys:    auth.NewAPIKeyStore(opts.DB),
		tokens:     auth.NewTokenStore(opts.DB),
		passkeys:   auth.NewPasskeyStore(opts.DB),
		ceremonies: auth.NewCeremonies(),
		wan:        wan,
		writes:     newVisitorLimiter(opts.WriteLimit, opts.WriteBurst),
		mux:        http.NewServeMux(),
		now:        time.Now,
	}

	s.templates, err = template.New("").Funcs(s.funcMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static sub-fs: %w", err)
	}

	s.routes(http.FileServer(http.FS(staticContent)), opts.UploadDir)
	return s, nil
}

func (s *Server) routes(static http.Handler, uploadDir string) {
	owner := func(h http.HandlerFunc) http.Handler { return auth.RequireAPIKey(s.apiKeys, h) }
	admin := func(h http.HandlerFunc) http.Handler { return auth.RequireSession(s.sessions, h) }

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", static))
	if uploadDir != "" {
		s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /project/{id}", s.handleProject)
	s.mux.HandleFunc("GET /comments", s.handleCommentSection)
	s.mux.HandleFunc("POST /comments", s.limitWrites(s.handleCommentPost))

	// Comment API
	s.mux.HandleFunc("GET /api/comments", s.apiListComments)
	s.mux.HandleFunc("GET /api/comments/pinned", s.apiPinnedComment)
	s.mux.HandleFunc("POST /api/comments", s.limitWrites(s.apiInsertComment))
	s.mux.Handle("PATCH /api/comments/{id}", owner(s.apiUpdateComment))
	s.mux.Handle("DELETE /api/comments/{id}", owner(s.apiDeleteComment))
	s.mux.HandleFunc("POST /api/uploads", s.limitWrites(s.apiUpload))

	// Portfolio API
	s.mux.HandleFunc("GET /api/profile", s.apiProfile)
	s.mux.HandleFunc("GET /api/projects", s.apiListProjects)
	s.mux.HandleFunc("GET /api/projects/{id}", s.apiGetProject)
	s.mux.HandleFunc("GET /api/certificates", s.apiListCertificates)
	s.mux.Handle("GET /api/me", owner(s.apiMe))

	// Change stream
	s.mux.Handle("GET "+RealtimePath, realtime.NewHandler(s.broker))

	// Owner
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /enroll", s.handleEnrollPage)
	s.mux.HandleFunc("POST /passkey/login/begin", s.handleBeginLogin)
	s.mux.HandleFunc("POST /passkey/login/finish", s.handleFinishLogin)
	s.mux.HandleFunc("POST /passkey/register/begin", s.handleBeginRegistration)
	s.mux.HandleFunc("POST /passkey/register/finish", s.handleFinishRegistration)

	s.mux.Handle("GET /admin", admin(s.handleAdmin))
	s.mux.Handle("POST /admin/comments/{id}/{action}", admin(s.handleAdminComment))
	s.mux.Handle("GET /admin/keys", admin(s.handleListKeys))
	s.mux.Handle("POST /admin/keys", admin(s.handleCreateKey))
	s.mux.Handle("DELETE /admin/keys/{id}", admin(s.handleDeleteKey))
	s.mux.Handle("GET /cli/auth", admin(s.handleCLIAuth))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestLogger(s)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	s.renderStatus(w, name, data, http.StatusOK)
}

func (s *Server) renderStatus(w http.ResponseWriter, name string, data interface{}, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("rendering template", "template", name, "err", err)
	}
}

// ownerName is the profile's name, or the site name when the profile
// cannot be read.
func (s *Server) ownerName() string {
	p, err := s.portfolio.Profile()
	if err != nil || strings.TrimSpace(p.Name) == "" {
		if err != nil {
			slog.Error("loading profile", "err", err)
		}
		return s.cfg.SiteName
	}
	return p.Name
}

func (s *Server) funcMap() template.FuncMap {
	return template.FuncMap{
		"relTime":  func(t time.Time) string { return comment.FormatRelative(t, s.now()) },
		"techIcon": portfolio.TechIcon,
		"deref": func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		},
		"ownerName": s.ownerName,
		"initial": func(name string) string {
			for _, r := range name {
				return string(r)
			}
			return "?"
		},
	}
}

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/nav"
	"github.com/wilberttgr/folio/internal/portfolio"
	"github.com/wilberttgr/folio/internal/widget"
)

type commentSection struct {
	State      widget.State
	Realtime   string
	MaxName    int
	MaxContent int
}

type homeData struct {
	Profile      portfolio.Profile
	Stats        portfolio.Stats
	Projects     []*portfolio.Project
	Certificates []*portfolio.Certificate
	Nav          nav.Bar
	Comments     commentSection
	IsOwner      bool
}

type projectData struct {
	Nav           nav.Bar
	Project       *portfolio.Project
	PrivateTitle  string
	PrivateNotice string
}

// loadComments builds the comment section state. Read failures are logged
// and render as an empty section.
func (s *Server) loadComments(ctx context.Context) widget.State {
	var st widget.State

	pinned, err := s.comments.Pinned(ctx)
	switch {
	case err == nil:
		st.Pinned = pinned
	case !errors.Is(err, comment.ErrNotFound):
		slog.Error("loading pinned comment", "err", err)
	}

	feed, err := s.comments.List(ctx, false)
	if err != nil {
		slog.Error("loading comments", "err", err)
		feed = nil
	}
	st.Feed = feed
	return st
}

var feedStreamURL = RealtimePath + "?" + url.Values{
	"table":  {widget.FeedFilter.Table},
	"filter": {widget.FeedFilter.Predicate()},
}.Encode()

func (s *Server) commentSection(r *http.Request) commentSection {
	return commentSection{
		State:      s.loadComments(r.Context()),
		Realtime:   feedStreamURL,
		MaxName:    comment.MaxNameLength,
		MaxContent: comment.MaxContentLength,
	}
}

// homeData loads the single-page portfolio with section highlighted.
func (s *Server) homeData(r *http.Request, section string) (homeData, error) {
	profile, err := s.portfolio.Profile()
	if err != nil {
		return homeData{}, err
	}
	stats, err := s.portfolio.Stats(s.now())
	if err != nil {
		return homeData{}, err
	}
	projects, err := s.portfolio.Projects()
	if err != nil {
		return homeData{}, err
	}
	certs, err := s.portfolio.Certificates()
	if err != nil {
		return homeData{}, err
	}

	tracker := nav.NewTracker()
	tracker.Select(section)

	email, sessionErr := s.sessions.Validate(r)
	return homeData{
		Profile:      profile,
		Stats:        stats,
		Projects:     projects,
		Certificates: certs,
		Nav:          tracker.Bar(profile.Name),
		Comments:     s.commentSection(r),
		IsOwner:      sessionErr == nil && s.cfg.IsOwner(email),
	}, nil
}

// handleHome renders the single-page portfolio.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data, err := s.homeData(r, nav.DefaultSectionID)
	if err != nil {
		slog.Error("loading home page", "err", err)
		http.Error(w, "Error loading page", http.StatusInternalServerError)
		return
	}
	s.render(w, "home.html", data)
}

// handleProject renders a project's detail page by ID or slug.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.portfolio.Project(r.PathValue("id"))
	if errors.Is(err, portfolio.ErrNotFound) {
		s.renderStatus(w, "notfound.html", nil, http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("loading project", "ref", r.PathValue("id"), "err", err)
		http.Error(w, "Error loading project", http.StatusInternalServerError)
		return
	}

	tracker := nav.NewTracker()
	tracker.Select("Portofolio")

	s.render(w, "project.html", projectData{
		Nav:           tracker.Bar(s.ownerName()),
		Project:       p,
		PrivateTitle:  portfolio.PrivateNoticeTitle,
		PrivateNotice: portfolio.PrivateNoticeText,
	})
}

// handleCommentSection renders the comment section fragment.
func (s *Server) handleCommentSection(w http.ResponseWriter, r *http.Request) {
	s.render(w, "comments", s.commentSection(r))
}

// handleCommentPost accepts the no-script comment form. Inputs are never
// echoed back: a failed post clears the form like a successful one.
func (s *Server) handleCommentPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.commentFailed(w, r, comment.ErrImageTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		slog.Warn("parsing comment form", "err", err)
		s.commentFailed(w, r, widget.SubmitErrorMessage, http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				slog.Warn("removing multipart files", "err", err)
			}
		}()
	}

	d := comment.Draft{
		UserName: strings.TrimSpace(r.FormValue("user_name")),
		Content:  strings.TrimSpace(r.FormValue("content")),
	}
	if d.UserName == "" || d.Content == "" {
		http.Redirect(w, r, "/#Contact", http.StatusSeeOther)
		return
	}

	if _, fh, err := r.FormFile("image"); err == nil {
		imgURL, err := s.storeImage(r.Context(), fh)
		switch {
		case errors.Is(err, comment.ErrImageTooLarge), errors.Is(err, comment.ErrNotImage):
			s.commentFailed(w, r, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			slog.Error("storing comment image", "err", err)
			s.commentFailed(w, r, widget.SubmitErrorMessage, http.StatusInternalServerError)
			return
		}
		d.ProfileImage = &imgURL
	}

	if _, err := s.comments.Add(r.Context(), d); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, comment.ErrInvalid) {
			status = http.StatusBadRequest
		} else {
			slog.Error("adding comment", "err", err)
		}
		s.commentFailed(w, r, widget.SubmitErrorMessage, status)
		return
	}

	http.Redirect(w, r, "/#Contact", http.StatusSeeOther)
}

func (s *Server) commentFailed(w http.ResponseWriter, r *http.Request, msg string, status int) {
	data, err := s.homeData(r, "Contact")
	if err != nil {
		slog.Error("loading home page", "err", err)
		http.Error(w, msg, status)
		return
	}
	data.Comments.State.Error = msg
	s.renderStatus(w, "home.html", data, status)
}

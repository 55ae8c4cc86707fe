// Package client provides an HTTP and WebSocket client for the folio API.
// It implements widget.Backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wilberttgr/folio/internal/comment"
	"github.com/wilberttgr/folio/internal/portfolio"
	"github.com/wilberttgr/folio/internal/realtime"
)

// RealtimePath is the change-stream endpoint relative to the server URL.
const RealtimePath = "/realtime/v1"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error: %s", http.StatusText(e.StatusCode))
}

// Client is an HTTP client for the folio API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// PinnedComment returns the pinned comment, or comment.ErrNotFound.
func (c *Client) PinnedComment(ctx context.Context) (*comment.Comment, error) {
	var cm comment.Comment
	err := c.get(ctx, "/api/comments/pinned", &cm)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, comment.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// ListComments returns comments with the given pinned flag, newest first.
func (c *Client) ListComments(ctx context.Context, pinned bool) ([]*comment.Comment, error) {
	var comments []*comment.Comment
	if err := c.get(ctx, fmt.Sprintf("/api/comments?pinned=%t", pinned), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// InsertComment posts a new comment.
func (c *Client) InsertComment(ctx context.Context, d comment.Draft) (*comment.Comment, error) {
	var cm comment.Comment
	if err := c.send(ctx, http.MethodPost, "/api/comments", d, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// UploadImage uploads an image and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finishing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("upload response has no url")
	}
	return resp.URL, nil
}

// Subscribe opens a change stream for f.
func (c *Client) Subscribe(ctx context.Context, f realtime.Filter) (realtime.Stream, error) {
	endpoint, err := c.RealtimeURL()
	if err != nil {
		return nil, err
	}
	stream, err := realtime.Dial(ctx, endpoint, f, nil)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// RealtimeURL returns the WebSocket URL of the change stream.
func (c *Client) RealtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL + RealtimePath)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// PinComment pins a comment, unpinning any other. Requires an API key.
func (c *Client) PinComment(ctx context.Context, id int64) (*comment.Comment, error) {
	return c.setPinned(ctx, id, true)
}

// UnpinComment unpins a comment. Requires an API key.
func (c *Client) UnpinComment(ctx context.Context, id int64) (*comment.Comment, error) {
	return c.setPinned(ctx, id, false)
}

func (c *Client) setPinned(ctx context.Context, id int64, pinned bool) (*comment.Comment, error) {
	body := map[string]bool{"is_pinned": pinned}
	var cm comment.Comment
	if err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/api/comments/%d", id), body, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// DeleteComment removes a comment. Requires an API key.
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+fmt.Sprintf("/api/comments/%d", id), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]*portfolio.Project, error) {
	var projects []*portfolio.Project
	if err := c.get(ctx, "/api/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns a project by ID or slug.
func (c *Client) GetProject(ctx context.Context, ref string) (*portfolio.Project, error) {
	var p portfolio.Project
	if err := c.get(ctx, "/api/projects/"+url.PathEscape(ref), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCertificates returns all certificates.
func (c *Client) ListCertificates(ctx context.Context) ([]*portfolio.Certificate, error) {
	var certs []*portfolio.Certificate
	if err := c.get(ctx, "/api/certificates", &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// Identity is the owner behind an API key.
type Identity struct {
	Email   string `json:"email"`
	KeyName string `json:"key_name"`
}

// Me returns the identity of the configured API key.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.get(ctx, "/api/me", &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// send performs a request with a JSON body and decodes the response.
func (c *Client) send(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "err", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

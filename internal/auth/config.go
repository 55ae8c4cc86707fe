// Package auth authenticates the site owner: passkey sessions for the admin
// pages, API keys for the moderation endpoints, and one-time enrollment links
// for registering a passkey.
package auth

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Config holds authentication configuration.
type Config struct {
	OwnerEmail string
	DevMode    bool
	BaseURL    string // e.g. http://localhost:8080
	SiteName   string
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		OwnerEmail: strings.ToLower(strings.TrimSpace(os.Getenv("FOLIO_OWNER_EMAIL"))),
		DevMode:    os.Getenv("FOLIO_DEV_MODE") == "true",
		BaseURL:    strings.TrimRight(envOrDefault("FOLIO_BASE_URL", "http://localhost:8080"), "/"),
		SiteName:   envOrDefault("FOLIO_SITE_NAME", "Folio"),
	}
}

// IsOwner reports whether email belongs to the configured owner.
func (c Config) IsOwner(email string) bool {
	return c.OwnerEmail != "" && strings.EqualFold(strings.TrimSpace(email), c.OwnerEmail)
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// EnrollURL returns the link that redeems an enrollment token.
func (c Config) EnrollURL(token string) string {
	return c.BaseURL + "/enroll?token=" + url.QueryEscape(token)
}

// WebAuthn builds the relying party from the base URL.
func (c Config) WebAuthn() (*webauthn.WebAuthn, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("base URL %q has no host", c.BaseURL)
	}

	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: c.SiteName,
		RPID:          u.Hostname(),
		RPOrigins:     []string{u.Scheme + "://" + u.Host},
	})
	if err != nil {
		return nil, fmt.Errorf("creating webauthn: %w", err)
	}
	return w, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

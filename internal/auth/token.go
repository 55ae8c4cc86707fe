package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// PurposeEnroll marks a token that lets its holder register a passkey.
const PurposeEnroll = "enroll"

const enrollExpiry = time.Hour

// ErrInvalidToken is returned for unknown, used, expired or mismatched tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenStore manages one-time tokens in SQLite.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, now: time.Now}
}

// Create issues a single-use token for email. Returns the raw token.
func (s *TokenStore) Create(email, purpose string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO auth_tokens (token, email, purpose, expires_at) VALUES (?, ?, ?, ?)",
		token, email, purpose, s.now().Add(enrollExpiry),
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Peek returns the email a token was issued for without consuming it.
func (s *TokenStore) Peek(token, purpose string) (string, error) {
	var email, p string
	var used int
	var expiresAt time.Time

	err := s.db.QueryRow(
		"SELECT email, purpose, used, expires_at FROM auth_tokens WHERE token = ?",
		token,
	).Scan(&email, &p, &used, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}

	if used != 0 || p != purpose || s.now().After(expiresAt) {
		return "", ErrInvalidToken
	}
	return email, nil
}

// Consume validates a token and marks it used.
func (s *TokenStore) Consume(token, purpose string) (string, error) {
	email, err := s.Peek(token, purpose)
	if err != nil {
		return "", err
	}

	result, err := s.db.Exec(
		"UPDATE auth_tokens SET used = 1 WHERE token = ? AND used = 0",
		token,
	)
	if err != nil {
		return "", fmt.Errorf("marking token used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return "", ErrInvalidToken
	}

	return email, nil
}

// Cleanup removes expired tokens.
func (s *TokenStore) Cleanup() error {
	if _, err := s.db.Exec(
		"DELETE FROM auth_tokens WHERE expires_at < ?",
		s.now(),
	); err != nil {
		return fmt.Errorf("cleaning up tokens: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package auth

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ErrCredentialNotFound is returned when deleting an unknown passkey.
var ErrCredentialNotFound = errors.New("credential not found")

// Owner implements webauthn.User for the site owner.
type Owner struct {
	email       string
	credentials []webauthn.Credential
}

// NewOwner creates an Owner for email holding credentials.
func NewOwner(email string, credentials []webauthn.Credential) *Owner {
	return &Owner{email: email, credentials: credentials}
}

// WebAuthnID is stable per email.
func (o *Owner) WebAuthnID() []byte {
	h := sha256.Sum256([]byte(o.email))
	return h[:]
}

// MatchesHandle reports whether a discoverable login's user handle is this owner.
func (o *Owner) MatchesHandle(handle []byte) bool {
	return bytes.Equal(o.WebAuthnID(), handle)
}

func (o *Owner) WebAuthnName() string                       { return o.email }
func (o *Owner) WebAuthnDisplayName() string                { return o.email }
func (o *Owner) WebAuthnCredentials() []webauthn.Credential { return o.credentials }

// Email returns the owner's email.
func (o *Owner) Email() string { return o.email }

// StoredCredential is a passkey credential with metadata.
type StoredCredential struct {
	ID         string
	Email      string
	Name       string
	Credential webauthn.Credential
	CreatedAt  time.Time
}

// PasskeyStore manages passkey credentials in SQLite.
type PasskeyStore struct {
	db *sql.DB
}

// NewPasskeyStore creates a passkey store.
func NewPasskeyStore(db *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: db}
}

// Save stores a new passkey credential.
func (s *PasskeyStore) Save(email, name string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO passkey_credentials (id, email, name, credential_json) VALUES (?, ?, ?, ?)",
		hex.EncodeToString(cred.ID), email, name, string(data),
	); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

// List returns the credentials registered for email.
func (s *PasskeyStore) List(email string) ([]StoredCredential, error) {
	rows, err := s.db.Query(
		"SELECT id, email, name, credential_json, created_at FROM passkey_credentials WHERE email = ? ORDER BY created_at",
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("closing rows", "err", err)
		}
	}()

	var result []StoredCredential
	for rows.Next() {
		var sc StoredCredential
		var data string
		if err := rows.Scan(&sc.ID, &sc.Email, &sc.Name, &data, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential: %w", err)
		}
		result = append(result, sc)
	}

	return result, rows.Err()
}

// LoadOwner returns email as a webauthn user with its stored credentials.
func (s *PasskeyStore) LoadOwner(email string) (*Owner, error) {
	stored, err := s.List(email)
	if err != nil {
		return nil, err
	}

	creds := make([]webauthn.Credential, len(stored))
	for i, sc := range stored {
		creds[i] = sc.Credential
	}
	return NewOwner(email, creds), nil
}

// Delete removes a credential by ID.
func (s *PasskeyStore) Delete(id, email string) error {
	result, err := s.db.Exec(
		"DELETE FROM passkey_credentials WHERE id = ? AND email = ?",
		id, email,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

const ceremonyTTL = 5 * time.Minute

type ceremony struct {
	data    *webauthn.SessionData
	expires time.Time
}

// Ceremonies holds in-flight WebAuthn session data keyed by an opaque ID.
type Ceremonies struct {
	mu      sync.Mutex
	pending map[string]ceremony
}

// NewCeremonies creates an empty ceremony store.
func NewCeremonies() *Ceremonies {
	return &Ceremonies{pending: make(map[string]ceremony)}
}

// Put stores data and returns the ID to hand back to the browser.
func (c *Ceremonies) Put(data *webauthn.SessionData) (string, error) {
	id, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating ceremony id: %w", err)
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.pending {
		if now.After(v.expires) {
			delete(c.pending, k)
		}
	}
	c.pending[id] = ceremony{data: data, expires: now.Add(ceremonyTTL)}
	return id, nil
}

// Take removes and returns the data for id. Each ID can be taken once.
func (c *Ceremonies) Take(id string) (*webauthn.SessionData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.pending[id]
	if !ok {
		return nil, false
	}
	delete(c.pending, id)
	if time.Now().After(v.expires) {
		return nil, false
	}
	return v.data, true
}

package cli

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wilberttgr/folio/internal/auth"
	"github.com/wilberttgr/folio/internal/db"
)

func TestEnrollPrintsLink(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "folio.db")
	t.Setenv("FOLIO_OWNER_EMAIL", "Owner@Example.com")
	t.Setenv("FOLIO_BASE_URL", "https://folio.example/")

	out, err := executeCommand("enroll", "--db", dbPath)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	idx := strings.Index(out, "https://folio.example/enroll?token=")
	if idx < 0 {
		t.Fatalf("output missing enroll link: %q", out)
	}
	link, err := url.Parse(strings.TrimSpace(out[idx:]))
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	token := link.Query().Get("token")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeDB(database)

	email, err := auth.NewTokenStore(database).Peek(token, auth.PurposeEnroll)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if email != testOwner {
		t.Errorf("email = %q, want %q", email, testOwner)
	}
}

func TestEnrollRequiresOwner(t *testing.T) {
	t.Setenv("FOLIO_OWNER_EMAIL", "")

	_, err := executeCommand("enroll", "--db", filepath.Join(t.TempDir(), "folio.db"))
	if !errors.Is(err, errNoOwner) {
		t.Fatalf("err = %v, want errNoOwner", err)
	}
}

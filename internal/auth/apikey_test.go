package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestAPIKeyCreateAndValidate(t *testing.T) {
	store := NewAPIKeyStore(openTestDB(t))

	raw, key, err := store.Create("laptop", "owner@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		t.Errorf("raw key %q missing prefix", raw)
	}
	if !strings.HasPrefix(raw, key.KeyPrefix) {
		t.Errorf("key prefix %q does not match raw key", key.KeyPrefix)
	}

	id, err := store.Validate(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Email != "owner@example.com" || id.KeyName != "laptop" {
		t.Errorf("identity = %+v", id)
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	if keys[0].LastUsedAt == nil {
		t.Error("expected last_used_at after validate")
	}
}

func TestAPIKeyValidateUnknown(t *testing.T) {
	store := NewAPIKeyStore(openTestDB(t))

	for _, raw := range []string{"", "hf_abc", apiKeyPrefix + "deadbeef"} {
		id, err := store.Validate(raw)
		if err != nil {
			t.Fatalf("validate %q: %v", raw, err)
		}
		if id != nil {
			t.Errorf("validate %q = %+v, want nil", raw, id)
		}
	}
}

func TestAPIKeyCreateRequiresName(t *testing.T) {
	store := NewAPIKeyStore(openTestDB(t))
	if _, _, err := store.Create("  ", "owner@example.com"); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestAPIKeyDelete(t *testing.T) {
	store := NewAPIKeyStore(openTestDB(t))

	raw, key, err := store.Create("ci", "owner@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(key.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if id, _ := store.Validate(raw); id != nil {
		t.Error("deleted key still validates")
	}
	if err := store.Delete(key.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("second delete err = %v, want ErrKeyNotFound", err)
	}
}

func TestAPIKeyListEmpty(t *testing.T) {
	keys, err := NewAPIKeyStore(openTestDB(t)).List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if keys == nil || len(keys) != 0 {
		t.Errorf("keys = %v, want empty slice", keys)
	}
}

package voices

import (
	"errors"
	"os"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"alice", "alice"},
		{"  Alice Smith  ", "Alice_Smith"},
		{"a/b\\c", "a_b_c"},
		{"__x__", "x"},
		{"///", ""},
	}
	for _, c := range cases {
		if got := SanitizeName(c.in); got != c.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestUpsertGetDelete(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	p, err := r.Upsert("alice", []byte("RIFFsample"), "ev-123")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.Name != "alice" || p.ProviderVoiceID != "ev-123" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := os.Stat(p.ReferenceWAV); err != nil {
		t.Fatalf("reference wav missing: %v", err)
	}

	got, err := r.Get("alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReferenceWAV != p.ReferenceWAV {
		t.Fatalf("mismatched reference path")
	}

	if err := r.Delete("alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestRegistryReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	first, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := first.Upsert("bob", []byte("RIFFsample"), ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("reload registry: %v", err)
	}
	p, err := second.Get("bob")
	if err != nil {
		t.Fatalf("expected bob after reload, got %v", err)
	}
	if p.Name != "bob" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if len(second.List()) != 1 {
		t.Fatalf("expected one profile, got %d", len(second.List()))
	}
}

func TestGetUnknown(t *testing.T) {
	dir := t.TempDir()
	r, _ := NewRegistry(dir)
	if _, err := r.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

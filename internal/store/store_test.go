package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knitpm/knit/internal/hashing"
)

func TestStoreBytesIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	h1, err := s.StoreBytes([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != hashing.HashBytes([]byte("payload")) {
		t.Fatal("StoreBytes returned a hash that doesn't match HashBytes")
	}
	if !s.Contains(h1) {
		t.Fatal("Contains should report true after StoreBytes")
	}

	path, ok := s.GetPath(h1)
	if !ok {
		t.Fatal("GetPath should succeed for a stored hash")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("stored content = %q, want %q", data, "payload")
	}

	// Storing the same bytes again must not error and must return the same hash.
	h2, err := s.StoreBytes([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("StoreBytes is not idempotent")
	}
}

func TestStoreFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.txt")
	if err := os.WriteFile(src, []byte("file contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatal(err)
	}

	hash, err := s.StoreFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Contains(hash) {
		t.Fatal("Contains should report true after StoreFile")
	}
}

func TestLinkFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatal(err)
	}

	hash, err := s.StoreBytes([]byte("linked content"))
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "materialized", "out.txt")
	if err := s.LinkFile(hash, dest); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "linked content" {
		t.Fatalf("linked content = %q, want %q", data, "linked content")
	}

	// Linking over a pre-existing file at dest must succeed, replacing it.
	if err := os.WriteFile(dest, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkFile(hash, dest); err != nil {
		t.Fatal(err)
	}
	data2, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data2) != "linked content" {
		t.Fatalf("re-linked content = %q, want %q", data2, "linked content")
	}
}

func TestStoreLayoutUsesHashPrefixDir(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hash, err := s.StoreBytes([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	path, ok := s.GetPath(hash)
	if !ok {
		t.Fatal("expected GetPath to succeed")
	}
	want := filepath.Join(s.Root(), "files", hash[:2], hash)
	if path != want {
		t.Fatalf("object path = %q, want %q", path, want)
	}
}

func TestLinkFileMissingHash(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.LinkFile("deadbeef", filepath.Join(t.TempDir(), "out")); err == nil {
		t.Fatal("expected an error linking a hash that was never stored")
	}
}

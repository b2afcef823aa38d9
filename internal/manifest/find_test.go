package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type stubToolchain struct {
	dump  []byte
	calls int
	err   error
}

func (s *stubToolchain) DumpPackage(ctx context.Context, dir string) ([]byte, error) {
	s.calls++
	return s.dump, s.err
}

func TestFindManifestPrefersNative(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, NativeManifestFilename), []byte(`
[package]
name = "native"
version = "1.0.0"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := &stubToolchain{}
	m, kind, err := FindManifest(context.Background(), dir, tc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if kind != Native {
		t.Fatalf("kind = %v, want Native", kind)
	}
	if m.Name != "native" {
		t.Fatalf("Name = %q", m.Name)
	}
	if tc.calls != 0 {
		t.Fatal("toolchain should not be invoked when a native manifest exists")
	}
}

func TestFindManifestFallsBackToForeign(t *testing.T) {
	dir := t.TempDir()
	tc := &stubToolchain{dump: []byte(`{"name": "foreign-pkg"}`)}

	cachePath := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenForeignCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	m, kind, err := FindManifest(context.Background(), dir, tc, cache)
	if err != nil {
		t.Fatal(err)
	}
	if kind != Foreign {
		t.Fatalf("kind = %v, want Foreign", kind)
	}
	if m.Name != "foreign-pkg" {
		t.Fatalf("Name = %q", m.Name)
	}
	if tc.calls != 1 {
		t.Fatalf("toolchain calls = %d, want 1", tc.calls)
	}

	// A second lookup with identical dump-package output should hit the
	// cache for the parse, even though the toolchain subprocess still runs.
	m2, _, err := FindManifest(context.Background(), dir, tc, cache)
	if err != nil {
		t.Fatal(err)
	}
	if m2.Name != "foreign-pkg" {
		t.Fatalf("second call Name = %q", m2.Name)
	}
}

func TestFindManifestNoManifestAtAll(t *testing.T) {
	dir := t.TempDir()
	_, _, err := FindManifest(context.Background(), dir, nil, nil)
	if err == nil {
		t.Fatal("expected an error when no toolchain and no native manifest are available")
	}
}

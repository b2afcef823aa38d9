package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knitpm/knit/internal/cache"
)

func TestConfig2Dir(t *testing.T) {
	if got := config2dir(cache.Debug); got != "debug" {
		t.Fatalf("expected %q, got %q", "debug", got)
	}
	if got := config2dir(cache.Release); got != "release" {
		t.Fatalf("expected %q, got %q", "release", got)
	}
}

func TestNewBuildCmdRequiresTarget(t *testing.T) {
	cmd := newBuildCmd()
	flag := cmd.Flags().Lookup("target")
	if flag == nil {
		t.Fatal("expected a --target flag")
	}
	if got := cmd.Flags().Lookup("configuration").DefValue; got != "debug" {
		t.Fatalf("expected --configuration to default to debug, got %q", got)
	}
}

func TestComputeFingerprintIsStableOverSameInputs(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "Sources"), 0o755); err != nil {
		t.Fatal(err)
	}
	a, err := computeFingerprint(dir, "missing-target", "", cache.Debug, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := computeFingerprint(dir, "missing-target", "", cache.Debug, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("expected the same fingerprint for identical inputs, got %q and %q", a.Fingerprint, b.Fingerprint)
	}
}

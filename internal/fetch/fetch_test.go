package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchPathSymlinksAndChecksums(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(2)
	tasks := []Task{
		{
			Source: Source{Kind: SourcePath, Name: "dep1", URL: src},
			Dest:   filepath.Join(dir, "dest"),
		},
	}

	results, errs := f.FetchAll(context.Background(), tasks, nil)
	if errs[0] != nil {
		t.Fatalf("unexpected error: %v", errs[0])
	}
	if results[0].Checksum == "" {
		t.Fatal("expected a non-empty checksum")
	}

	info, err := os.Lstat(tasks[0].Dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected destination to be a symlink")
	}
}

func TestFetchAllProgressAndOrder(t *testing.T) {
	dir := t.TempDir()
	srcA := filepath.Join(dir, "a")
	srcB := filepath.Join(dir, "b")
	for _, d := range []string{srcA, srcB} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	var states []ProgressState
	progress := func(name string, state ProgressState, message string) {
		states = append(states, state)
	}

	f := NewFetcher(2)
	tasks := []Task{
		{Source: Source{Kind: SourcePath, Name: "a", URL: srcA}, Dest: filepath.Join(dir, "out-a")},
		{Source: Source{Kind: SourcePath, Name: "b", URL: srcB}, Dest: filepath.Join(dir, "out-b")},
	}
	results, errs := f.FetchAll(context.Background(), tasks, progress)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
	}
	if results[0].Name != "a" || results[1].Name != "b" {
		t.Fatal("results must preserve input order")
	}
	if len(states) != 4 {
		t.Fatalf("expected 4 progress notifications, got %d", len(states))
	}
}

func TestFetchRegistryNotImplemented(t *testing.T) {
	f := NewFetcher(1)
	tasks := []Task{{Source: Source{Kind: SourceRegistry, Name: "reg"}, Dest: t.TempDir()}}
	_, errs := f.FetchAll(context.Background(), tasks, nil)
	if errs[0] == nil {
		t.Fatal("expected an error for registry source")
	}
	var niErr *NotImplementedError
	if ok := asNotImplemented(errs[0], &niErr); !ok {
		t.Fatalf("expected *NotImplementedError, got %T: %v", errs[0], errs[0])
	}
}

func asNotImplemented(err error, target **NotImplementedError) bool {
	if ni, ok := err.(*NotImplementedError); ok {
		*target = ni
		return true
	}
	return false
}

func TestParseTagVersion(t *testing.T) {
	if _, ok := parseTagVersion("v1.2.3"); !ok {
		t.Error("expected v1.2.3 to parse as semver")
	}
	if _, ok := parseTagVersion("release-1"); ok {
		t.Error("expected release-1 to not parse as semver")
	}
}

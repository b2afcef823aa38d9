package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/knitpm/knit/internal/manifest"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.NativeManifestFilename), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadReturnsErrNotAWorkspaceWithoutWorkspaceBlock(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "solo"
version = "1.0.0"
`)
	_, err := Load(context.Background(), dir, nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !isNotAWorkspace(err) {
		t.Fatalf("expected ErrNotAWorkspace, got %v", err)
	}
}

func isNotAWorkspace(err error) bool {
	for err != nil {
		if err == ErrNotAWorkspace {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestLoadDiscoversMembersAndInheritsSharedDeps(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "root"
version = "0.0.0"

[workspace]
members = ["packages/*"]

[workspace.dependencies]
net = "^1.0"
`)
	writeManifest(t, filepath.Join(dir, "packages", "core"), `[package]
name = "core"
version = "1.0.0"

[dependencies]
net = {}
`)
	writeManifest(t, filepath.Join(dir, "packages", "cli"), `[package]
name = "cli"
version = "1.0.0"

[dependencies]
core = { path = "../core" }
`)

	members, err := Load(context.Background(), dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d: %+v", len(members), members)
	}

	var core, cli *manifest.Member
	for i := range members {
		switch members[i].Name {
		case "core":
			core = &members[i]
		case "cli":
			cli = &members[i]
		}
	}
	if core == nil || cli == nil {
		t.Fatalf("expected both core and cli members, got %+v", members)
	}

	dep, ok := core.Manifest.Dependencies["net"]
	if !ok {
		t.Fatal("expected core to carry a net dependency")
	}
	if dep.Kind == manifest.SourceWorkspaceInherited {
		t.Fatal("expected the inherited dependency to be resolved from shared dependencies")
	}

	// cli depends on core, so core must precede cli in the returned order.
	coreIdx, cliIdx := -1, -1
	for i, m := range members {
		if m.Name == "core" {
			coreIdx = i
		}
		if m.Name == "cli" {
			cliIdx = i
		}
	}
	if coreIdx > cliIdx {
		t.Fatalf("expected core before cli, got order %+v", members)
	}
}

func TestLoadDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "root"
version = "0.0.0"

[workspace]
members = ["packages/*"]
`)
	writeManifest(t, filepath.Join(dir, "packages", "a"), `[package]
name = "a"
version = "1.0.0"

[dependencies]
b = { path = "../b" }
`)
	writeManifest(t, filepath.Join(dir, "packages", "b"), `[package]
name = "b"
version = "1.0.0"

[dependencies]
a = { path = "../a" }
`)

	_, err := Load(context.Background(), dir, nil, nil)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("expected *CycleError, got %#v", err)
	}
}

func TestExpandMembersExcludesMatchedPaths(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "packages", "keep"), `[package]
name = "keep"
version = "1.0.0"
`)
	writeManifest(t, filepath.Join(dir, "packages", "skip"), `[package]
name = "skip"
version = "1.0.0"
`)

	out, err := expandMembers(dir, []string{"packages/*"}, []string{"packages/skip"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || filepath.Base(out[0]) != "keep" {
		t.Fatalf("expected only packages/keep, got %v", out)
	}
}

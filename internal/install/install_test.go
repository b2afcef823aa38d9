package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/knitpm/knit/internal/lockfile"
	"github.com/knitpm/knit/internal/manifest"
	"github.com/knitpm/knit/internal/resolver"
	"github.com/knitpm/knit/internal/semver"
)

func TestPhaseStringCoversEveryPhase(t *testing.T) {
	phases := []Phase{
		PhaseReadManifest, PhaseDecidePosture, PhaseResolve,
		PhaseFetch, PhaseMaterialize, PhaseWriteLockfile,
	}
	seen := make(map[string]bool)
	for _, p := range phases {
		s := p.String()
		if s == "unknown" || s == "" {
			t.Fatalf("phase %d has no name", p)
		}
		if seen[s] {
			t.Fatalf("duplicate phase name %q", s)
		}
		seen[s] = true
	}
}

func TestRequirementForPrefersTagPinOverWildcard(t *testing.T) {
	dep := manifest.Dependency{Kind: manifest.SourceGit, GitURL: "https://example.com/x.git", Tag: "v1.2.3"}
	req := requirementFor(dep)
	v := semver.MustParse("1.2.3")
	if !req.Matches(v) {
		t.Fatalf("expected pinned requirement to match 1.2.3, got %q", req.String())
	}
	if req.Matches(semver.MustParse("1.2.4")) {
		t.Fatalf("expected pinned requirement to reject 1.2.4, got %q", req.String())
	}
}

func TestRequirementForFallsBackToManifestRequirement(t *testing.T) {
	want, err := semver.ParseVersionReq("^2.0")
	if err != nil {
		t.Fatal(err)
	}
	dep := manifest.Dependency{Kind: manifest.SourceRegistry, Requirement: want}
	got := requirementFor(dep)
	if got.String() != want.String() {
		t.Fatalf("got %q, want %q", got.String(), want.String())
	}
}

func TestParseReqMapSkipsUnparseableEntries(t *testing.T) {
	out := parseReqMap(map[string]string{
		"good": "^1.0",
		"bad":  "not a version req!!",
	})
	if _, ok := out["good"]; !ok {
		t.Fatal("expected \"good\" to parse")
	}
	if _, ok := out["bad"]; ok {
		t.Fatal("expected \"bad\" to be skipped")
	}
}

func TestParseReqMapNilOnEmptyInput(t *testing.T) {
	if out := parseReqMap(nil); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}

func TestHintsFromLockfileParsesEachVersion(t *testing.T) {
	l := &lockfile.Lockfile{Packages: []lockfile.LockedPackage{
		{Name: "net", Version: "1.0.0"},
		{Name: "io", Version: "not-a-version"},
	}}
	hints := hintsFromLockfile(l)
	if _, ok := hints["net"]; !ok {
		t.Fatal("expected a hint for net")
	}
	if _, ok := hints["io"]; ok {
		t.Fatal("expected no hint for an unparseable locked version")
	}
}

func TestHintsFromLockfileNilOnNilLockfile(t *testing.T) {
	if hints := hintsFromLockfile(nil); hints != nil {
		t.Fatalf("expected nil, got %v", hints)
	}
}

func TestPathDependenciesExtractsOnlyPathKind(t *testing.T) {
	root := manifest.Manifest{Dependencies: map[string]manifest.Dependency{
		"local": {Kind: manifest.SourcePath, Path: "../local"},
		"net":   {Kind: manifest.SourceGit, GitURL: "https://example.com/net.git"},
	}}
	out := pathDependencies(root)
	if out["local"] != "../local" {
		t.Fatalf("expected local path dependency, got %v", out)
	}
	if _, ok := out["net"]; ok {
		t.Fatal("expected git dependency to be excluded")
	}
}

func TestResolutionFromLockfileCarriesEveryPackage(t *testing.T) {
	l := &lockfile.Lockfile{Packages: []lockfile.LockedPackage{
		{Name: "net", Version: "1.0.0"},
		{Name: "io", Version: "2.1.0"},
	}}
	res, err := resolutionFromLockfile(l)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(res.Decisions))
	}
	if d := res.Decisions["net"]; d.Reason != resolver.ReasonLockedHint {
		t.Fatalf("expected ReasonLockedHint, got %v", d.Reason)
	}
}

func TestResolutionFromLockfileRejectsUnparseableVersion(t *testing.T) {
	l := &lockfile.Lockfile{Packages: []lockfile.LockedPackage{{Name: "net", Version: "garbage"}}}
	if _, err := resolutionFromLockfile(l); err == nil {
		t.Fatal("expected an error for an unparseable locked version")
	}
}

func TestLockfileFromExcludesRootAndFillsFromProvider(t *testing.T) {
	v := semver.MustParse("1.0.0")
	res := &resolver.Resolution{Decisions: map[string]resolver.Decision{
		resolver.Root: {Name: resolver.Root, Version: semver.New(0, 0, 0), Reason: resolver.ReasonRoot},
		"net":         {Name: "net", Version: v, Reason: resolver.ReasonHighestCompatible},
	}}

	provider := newKnowledgeProvider(context.Background())
	provider.registerRemote("net", "https://example.com/net.git")

	out := lockfileFrom(res, provider, nil)
	if len(out.Packages) != 1 {
		t.Fatalf("expected exactly 1 locked package (root excluded), got %d", len(out.Packages))
	}
	pkg := out.Packages[0]
	if pkg.Name != "net" || pkg.GitURL != "https://example.com/net.git" {
		t.Fatalf("unexpected locked package: %+v", pkg)
	}
}

func TestFrozenWithoutLockfileError(t *testing.T) {
	err := &FrozenWithoutLockfile{}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

// TestInstallResolvesFetchesAndLocksGitDependency exercises the full
// pipeline end to end against a local git remote (a bare repo on disk,
// addressed by filesystem path) so the test needs no network access: git
// itself treats a local path exactly like any other remote for both
// ls-remote and clone.
func TestInstallResolvesFetchesAndLocksGitDependency(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	remoteDir := t.TempDir()
	initGitRepo(t, remoteDir, `[package]
name = "leaf"
version = "1.0.0"
`, "v1.0.0")

	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, "knit.toml"), []byte(`[package]
name = "root"
version = "0.1.0"

[dependencies]
leaf = { git = "`+remoteDir+`" }
`), 0o644); err != nil {
		t.Fatal(err)
	}

	inst, err := New(Options{
		ProjectDir: projectDir,
		StoreRoot:  t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := inst.Install(context.Background())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if _, ok := result.Resolution.Decisions["leaf"]; !ok {
		t.Fatal("expected leaf to be resolved")
	}

	checkoutLink := filepath.Join(projectDir, ".build", "checkouts", "leaf")
	info, err := os.Lstat(checkoutLink)
	if err != nil {
		t.Fatalf("expected a materialized checkout: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected checkout to be a symlink")
	}

	lockPath := filepath.Join(projectDir, "knit.lock")
	lock, err := lockfile.Load(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if lock == nil {
		t.Fatal("expected a lockfile to be written")
	}
	if _, ok := lock.ByName("leaf"); !ok {
		t.Fatal("expected leaf in the written lockfile")
	}
}

// TestInstallResolveExceedsMaxIterationsOnNeverConvergingChain drives
// resolveIteratively's discovery loop to exhaustion: each package in the
// chain depends on the git remote of the next, so every iteration's fetch
// only ever reveals exactly one more not-yet-fetched package. A chain longer
// than maxIterations therefore never converges, and the Installer must
// report *MaxIterationsExceeded (spec.md §4.E/§8) rather than loop forever.
func TestInstallResolveExceedsMaxIterationsOnNeverConvergingChain(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	const chainDepth = maxIterations + 5
	dirs := make([]string, chainDepth)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}

	for i := 0; i < chainDepth; i++ {
		manifestContents := fmt.Sprintf(`[package]
name = "pkg%d"
version = "1.0.0"
`, i)
		if i+1 < chainDepth {
			manifestContents += fmt.Sprintf(`
[dependencies]
pkg%d = { git = %q }
`, i+1, dirs[i+1])
		}
		initGitRepo(t, dirs[i], manifestContents, "v1.0.0")
	}

	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, "knit.toml"), []byte(`[package]
name = "root"
version = "0.1.0"

[dependencies]
pkg0 = { git = "`+dirs[0]+`" }
`), 0o644); err != nil {
		t.Fatal(err)
	}

	inst, err := New(Options{
		ProjectDir: projectDir,
		StoreRoot:  t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = inst.Install(context.Background())
	if err == nil {
		t.Fatal("expected installation to fail once the chain outruns maxIterations")
	}

	var exceeded *MaxIterationsExceeded
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected a *MaxIterationsExceeded, got %T: %v", err, err)
	}
	if exceeded.Iterations != maxIterations {
		t.Fatalf("expected %d iterations recorded, got %d", maxIterations, exceeded.Iterations)
	}
}

func initGitRepo(t *testing.T, dir, manifestContents, tag string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "knit.toml"), []byte(manifestContents), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "knit.toml")
	run("commit", "-q", "-m", "initial")
	run("tag", tag)
}

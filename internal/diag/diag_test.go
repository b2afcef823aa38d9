package diag

import (
	"strings"
	"testing"

	"github.com/knitpm/knit/internal/cache"
	"github.com/knitpm/knit/internal/install"
	"github.com/knitpm/knit/internal/resolver"
)

func TestFormatNoMatchingVersionListsAvailable(t *testing.T) {
	err := &resolver.NoMatchingVersion{Package: "net", Requirement: "^2.0", Available: []string{"1.0.0", "1.1.0"}}
	got := Format(err)
	if !strings.Contains(got, "net") || !strings.Contains(got, "1.0.0") {
		t.Fatalf("expected the formatted message to name the package and versions, got %q", got)
	}
}

func TestFormatPackageNotFoundWithoutSuggestions(t *testing.T) {
	got := Format(&resolver.PackageNotFound{Package: "ghost"})
	if !strings.Contains(got, "ghost") {
		t.Fatalf("expected the package name in the message, got %q", got)
	}
}

func TestFormatPackageNotFoundWithSuggestions(t *testing.T) {
	got := Format(&resolver.PackageNotFound{Package: "ghost", Suggestions: []string{"ghast"}})
	if !strings.Contains(got, "ghast") {
		t.Fatalf("expected the suggestion in the message, got %q", got)
	}
}

func TestFormatVersionConflictHidesDerivationWithoutVerbose(t *testing.T) {
	err := &resolver.VersionConflict{Package: "gamma"}
	got := Format(err)
	if !strings.Contains(got, "gamma") {
		t.Fatalf("expected the package name, got %q", got)
	}
	if strings.Contains(got, "\n  ") {
		t.Fatalf("expected no derivation tree without verbose mode, got %q", got)
	}
}

func TestFormatCacheMiss(t *testing.T) {
	got := Format(&cache.CacheMiss{Fingerprint: "abc123"})
	if !strings.Contains(got, "abc123") {
		t.Fatalf("expected the fingerprint in the message, got %q", got)
	}
}

func TestFormatFrozenWithoutLockfileSuggestsFix(t *testing.T) {
	got := Format(&install.FrozenWithoutLockfile{})
	if !strings.Contains(got, "--frozen") {
		t.Fatalf("expected a suggestion mentioning --frozen, got %q", got)
	}
}

func TestFormatNilErrorIsEmpty(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Fatalf("expected an empty string for a nil error, got %q", got)
	}
}

func TestFormatUnrecognizedErrorFallsBackToErrorString(t *testing.T) {
	err := errPlain("something went wrong")
	if got := Format(err); got != err.Error() {
		t.Fatalf("expected fallback to Error(), got %q", got)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

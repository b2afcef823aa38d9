package platform

import (
	"context"
	"os"
	"runtime"
	"testing"
	"time"
)

func TestTripleUsesRuntimeGOOSAndGOARCH(t *testing.T) {
	want := runtime.GOOS + "-" + runtime.GOARCH
	if got := Triple(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestToolchainVersionProbesExecutable(t *testing.T) {
	tc := Toolchain{Executable: "echo", VersionArgs: []string{"1.2.3"}}
	got, err := tc.Version(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.2.3" {
		t.Fatalf("expected %q, got %q", "1.2.3", got)
	}
}

func TestToolchainVersionWrapsSubprocessFailure(t *testing.T) {
	tc := Toolchain{Executable: "definitely-not-a-real-executable-xyz"}
	if _, err := tc.Version(context.Background()); err == nil {
		t.Fatal("expected an error for a nonexistent executable")
	}
}

func TestShouldCheckForUpdateDisabledByCI(t *testing.T) {
	os.Setenv("CI", "1")
	defer os.Unsetenv("CI")

	if ShouldCheckForUpdate(time.Now(), time.Time{}) {
		t.Fatal("expected CI=1 to disable the update check")
	}
}

func TestShouldCheckForUpdateDisabledByNoUpdateCheck(t *testing.T) {
	os.Setenv("NO_UPDATE_CHECK", "1")
	defer os.Unsetenv("NO_UPDATE_CHECK")

	if ShouldCheckForUpdate(time.Now(), time.Time{}) {
		t.Fatal("expected NO_UPDATE_CHECK=1 to disable the update check")
	}
}

func TestShouldCheckForUpdateAlwaysTrueWhenNeverChecked(t *testing.T) {
	if !ShouldCheckForUpdate(time.Now(), time.Time{}) {
		t.Fatal("expected a zero lastCheck to always trigger a check")
	}
}

func TestShouldCheckForUpdateThrottlesWithinInterval(t *testing.T) {
	now := time.Now()
	last := now.Add(-time.Hour)
	if ShouldCheckForUpdate(now, last) {
		t.Fatal("expected an update check within the interval to be throttled")
	}
}

func TestShouldCheckForUpdateFiresAfterInterval(t *testing.T) {
	now := time.Now()
	last := now.Add(-UpdateCheckInterval - time.Minute)
	if !ShouldCheckForUpdate(now, last) {
		t.Fatal("expected an update check to fire after the interval elapses")
	}
}

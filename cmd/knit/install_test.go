package main

import "testing"

func TestNewInstallCmdFlags(t *testing.T) {
	cmd := newInstallCmd()
	for _, name := range []string{"project-dir", "store-root", "toolchain", "concurrency", "lowest", "frozen"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected a --%s flag", name)
		}
	}
}

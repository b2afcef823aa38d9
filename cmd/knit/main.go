// Command knit is a thin CLI wiring layer over this module's library
// packages: it resolves and fetches a project's dependencies (install) and
// drives the fingerprint/cache around a foreign toolchain's build step
// (build). It is not a feature surface of its own — spec.md's Non-goals
// name it explicitly as "a thin wiring layer to exercise the library end to
// end."
//
// Grounded on the teacher's cmd/dep/main.go top-level dispatch (a root
// Config driving a small set of subcommands) re-expressed with
// distribution-distribution's cobra-based registry/root.go shape, since
// cobra is already a direct dependency of this module and gives
// flag/subcommand wiring the corpus otherwise hand-rolls.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/knitpm/knit/internal/diag"
	"github.com/knitpm/knit/internal/klog"
)

var (
	logLevel  string
	logFormat string
	verbose   bool
)

// rootCmd is the main command for the 'knit' binary.
var rootCmd = &cobra.Command{
	Use:           "knit",
	Short:         "knit manages dependencies and build artifacts for a package",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := klog.Init(klog.Options{Level: logLevel, Format: klog.Format(logFormat)}); err != nil {
			return err
		}
		diag.Init(diag.Options{Verbose: verbose})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "include full derivation traces in error output")

	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newBuildCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, diag.Format(err))
		os.Exit(1)
	}
}

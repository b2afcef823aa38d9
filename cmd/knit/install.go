package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/knitpm/knit/internal/install"
	"github.com/knitpm/knit/internal/klog"
	"github.com/knitpm/knit/internal/manifest"
	"github.com/knitpm/knit/internal/platform"
	"github.com/knitpm/knit/internal/resolver"
)

func newInstallCmd() *cobra.Command {
	var (
		projectDir  string
		storeRoot   string
		toolchain   string
		concurrency int
		lowest      bool
		frozen      bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "resolve, fetch, and lock this project's dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := projectDir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}

			root := storeRoot
			if root == "" {
				cacheDir, err := os.UserCacheDir()
				if err != nil {
					return err
				}
				root = filepath.Join(cacheDir, "knit")
			}

			cache, err := manifest.OpenForeignCache(filepath.Join(root, "manifest-cache.db"))
			if err != nil {
				return err
			}
			defer cache.Close()

			strategy := resolver.Highest
			if lowest {
				strategy = resolver.Lowest
			}
			posture := install.Normal
			if frozen {
				posture = install.Frozen
			}

			inst, err := install.New(install.Options{
				ProjectDir:    dir,
				StoreRoot:     root,
				Toolchain:     platform.Toolchain{Executable: toolchain},
				ManifestCache: cache,
				Concurrency:   concurrency,
				Strategy:      strategy,
				Posture:       posture,
				Progress: func(phase install.Phase, message string) {
					entry := klog.With(nil).WithField("phase", phase.String())
					if message != "" {
						entry.Info(message)
					} else {
						entry.Info("starting phase")
					}
				},
			})
			if err != nil {
				return err
			}

			result, err := inst.Install(cmd.Context())
			if err != nil {
				return err
			}

			klog.With(nil).Infof("resolved %d packages", len(result.Resolution.Decisions))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "project-dir", "", "project root (default: current directory)")
	cmd.Flags().StringVar(&storeRoot, "store-root", "", "Global Store root (default: the platform user-cache directory)")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "foreign toolchain executable, for projects with no native knit.toml")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum simultaneous fetches (default: hardware parallelism, floored at 8)")
	cmd.Flags().BoolVar(&lowest, "lowest", false, "resolve the lowest compatible version of every dependency")
	cmd.Flags().BoolVar(&frozen, "frozen", false, "install exactly what knit.lock records without re-resolving; fail if knit.lock is missing")

	return cmd
}

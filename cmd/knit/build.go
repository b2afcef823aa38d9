package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knitpm/knit/internal/cache"
	"github.com/knitpm/knit/internal/klog"
	"github.com/knitpm/knit/internal/manifest"
	"github.com/knitpm/knit/internal/platform"
)

func newBuildCmd() *cobra.Command {
	var (
		projectDir string
		storeRoot  string
		target     string
		toolchain  string
		buildArgs  []string
		outputDir  string
		configStr  string
		flags      []string
		remoteURL  string
		remoteAuth string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "build a target, reusing a cached artifact when its fingerprint matches",
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

			config := cache.Debug
			if strings.EqualFold(configStr, "release") {
				config = cache.Release
			}

			fp, err := computeFingerprint(dir, target, toolchain, config, flags)
			if err != nil {
				return err
			}
			log := klog.With(nil).WithField("fingerprint", fp.Fingerprint)

			local, err := cache.OpenLocal(root)
			if err != nil {
				return err
			}

			dest := outputDir
			if dest == "" {
				dest = filepath.Join(dir, ".build", config2dir(config), target)
			}

			if local.Contains(fp.Fingerprint) {
				log.Info("local cache hit")
				return local.Restore(fp.Fingerprint, dest)
			}

			var remote *cache.Remote
			if remoteURL != "" {
				remote = cache.NewRemote(remoteURL)
				if remoteAuth != "" {
					remote = remote.WithAuth(remoteAuth)
				}
				if err := remote.Pull(cmd.Context(), fp.Fingerprint, dest); err == nil {
					log.Info("remote cache hit")
					return local.Store(fp.Fingerprint, dest)
				}
			}

			log.Info("cache miss, invoking toolchain")
			tc := platform.Toolchain{Executable: toolchain}
			if err := runToolchainBuild(cmd.Context(), tc, dir, target, configStr, buildArgs); err != nil {
				return err
			}

			if err := local.Store(fp.Fingerprint, dest); err != nil {
				return err
			}
			if remote != nil {
				info := cache.ArtifactInfo{Package: target, Platform: platform.Triple()}
				if err := remote.Push(cmd.Context(), fp.Fingerprint, dest, info); err != nil {
					log.WithError(err).Warn("failed to push artifact to remote cache")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "project-dir", "", "project root (default: current directory)")
	cmd.Flags().StringVar(&storeRoot, "store-root", "", "artifact cache root (default: the platform user-cache directory)")
	cmd.Flags().StringVar(&target, "target", "", "target name to build")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "foreign toolchain executable")
	cmd.Flags().StringArrayVar(&buildArgs, "toolchain-arg", nil, "extra argument forwarded to the toolchain's build invocation")
	cmd.Flags().StringVar(&outputDir, "output", "", "where the built artifact is restored/stored (default: .build/<config>/<target>)")
	cmd.Flags().StringVar(&configStr, "configuration", "debug", "build configuration (debug, release)")
	cmd.Flags().StringArrayVar(&flags, "flag", nil, "compiler flag to include in the build fingerprint")
	cmd.Flags().StringVar(&remoteURL, "remote-cache", "", "optional remote artifact cache base URL")
	cmd.Flags().StringVar(&remoteAuth, "remote-cache-token", "", "bearer token for the remote artifact cache")
	cmd.MarkFlagRequired("target")

	return cmd
}

func config2dir(c cache.Configuration) string {
	return string(c)
}

func computeFingerprint(projectDir, target, toolchain string, config cache.Configuration, flags []string) (cache.BuildFingerprint, error) {
	sourceHash, err := cache.HashTargetSources(projectDir, target)
	if err != nil {
		return cache.BuildFingerprint{}, err
	}

	manifestPath := filepath.Join(projectDir, manifest.NativeManifestFilename)
	if _, err := os.Stat(manifestPath); err != nil {
		manifestPath = ""
	}
	manifestHash, err := cache.HashManifestFile(manifestPath)
	if err != nil {
		return cache.BuildFingerprint{}, err
	}

	lockfilePath := filepath.Join(projectDir, "knit.lock")
	m, _, depErr := manifest.FindManifest(context.Background(), projectDir, nil, nil)
	var names []string
	if depErr == nil {
		for name := range m.Dependencies {
			names = append(names, name)
		}
	}
	depsHash, err := cache.HashLockfileOrNames(lockfilePath, names)
	if err != nil {
		return cache.BuildFingerprint{}, err
	}

	tc := platform.Toolchain{Executable: toolchain}
	version, err := tc.Version(context.Background())
	if err != nil {
		version = "unknown"
	}

	return cache.ComputeFingerprint(sourceHash, manifestHash, depsHash, version, platform.Triple(), config, flags), nil
}

func runToolchainBuild(ctx context.Context, tc platform.Toolchain, dir, target, config string, extra []string) error {
	args := append([]string{"build", "--target", target, "--configuration", config}, extra...)
	return tc.Run(ctx, dir, args...)
}

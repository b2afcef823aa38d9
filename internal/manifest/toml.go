package manifest

import (
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/knitpm/knit/internal/semver"
)

// ParseNative parses a native TOML manifest per spec.md §6: `[package]`,
// `[dependencies]`, `[dev-dependencies]`, `[[target]]`, `[overrides]`,
// `[constraints]`, `[workspace]`, `[workspace.dependencies]`, and
// `[workspace.package]`.
//
// Grounded in the teacher's toml.go, which queries a *toml.TomlTree rather
// than unmarshaling into a fixed struct — necessary here too, since a
// dependency value is either a bare version string or a table (spec.md §6),
// a shape encoding/json-style struct tags can't express directly.
func ParseNative(data []byte) (Manifest, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "manifest: parse TOML")
	}

	var m Manifest
	if pkg, ok := tree.Get("package").(*toml.TomlTree); ok {
		if name, ok := pkg.Get("name").(string); ok {
			m.Name = name
		}
		if v, ok := pkg.Get("version").(string); ok {
			ver, err := semver.Parse(v)
			if err != nil {
				return Manifest{}, errors.Wrapf(err, "manifest: package.version %q", v)
			}
			m.Version = ver
		}
		if tv, ok := pkg.Get("toolsVersion").(string); ok {
			m.MinToolsVersion = tv
		}
	}

	if m.Dependencies, err = parseDepsTable(tree, "dependencies"); err != nil {
		return Manifest{}, err
	}
	if m.DevDependencies, err = parseDepsTable(tree, "dev-dependencies"); err != nil {
		return Manifest{}, err
	}
	m.Overrides = parseStringMap(tree, "overrides")
	m.Constraints = parseStringMap(tree, "constraints")

	if m.Targets, err = parseTargets(tree); err != nil {
		return Manifest{}, err
	}
	if m.Workspace, err = parseWorkspace(tree); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

func parseDepsTable(tree *toml.TomlTree, key string) (map[string]Dependency, error) {
	sub, ok := tree.Get(key).(*toml.TomlTree)
	if !ok {
		return nil, nil
	}
	out := make(map[string]Dependency, len(sub.Keys()))
	for _, name := range sub.Keys() {
		dep, err := parseOneDependency(name, sub.Get(name))
		if err != nil {
			return nil, errors.Wrapf(err, "manifest: %s.%s", key, name)
		}
		out[name] = dep
	}
	return out, nil
}

func parseOneDependency(name string, raw interface{}) (Dependency, error) {
	dep := Dependency{Name: name}

	switch v := raw.(type) {
	case string:
		req, err := semver.ParseVersionReq(v)
		if err != nil {
			return Dependency{}, err
		}
		dep.Requirement = req
		dep.Kind = SourceRegistry
		return dep, nil

	case *toml.TomlTree:
		hasSource := false
		if s, ok := v.Get("version").(string); ok {
			req, err := semver.ParseVersionReq(s)
			if err != nil {
				return Dependency{}, err
			}
			dep.Requirement = req
			dep.Kind = SourceRegistry
			hasSource = true
		}
		if s, ok := v.Get("git").(string); ok {
			dep.GitURL = s
			dep.Kind = SourceGit
			hasSource = true
		}
		if s, ok := v.Get("branch").(string); ok {
			dep.Branch = s
		}
		if s, ok := v.Get("tag").(string); ok {
			dep.Tag = s
		}
		if s, ok := v.Get("revision").(string); ok {
			dep.Revision = s
		}
		if s, ok := v.Get("path").(string); ok {
			dep.Path = s
			dep.Kind = SourcePath
			hasSource = true
		}
		if arr, ok := v.Get("features").([]interface{}); ok {
			for _, f := range arr {
				if fs, ok := f.(string); ok {
					dep.Features = append(dep.Features, fs)
				}
			}
		}
		if b, ok := v.Get("optional").(bool); ok {
			dep.Optional = b
		}
		if !hasSource {
			dep.Kind = SourceWorkspaceInherited
		}
		return dep, nil

	default:
		// Absent or malformed entry: treat as workspace-inherited, per
		// spec.md §3's "detected by the absence of all source fields".
		dep.Kind = SourceWorkspaceInherited
		return dep, nil
	}
}

func parseStringMap(tree *toml.TomlTree, key string) map[string]string {
	sub, ok := tree.Get(key).(*toml.TomlTree)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(sub.Keys()))
	for _, k := range sub.Keys() {
		if s, ok := sub.Get(k).(string); ok {
			out[k] = s
		}
	}
	return out
}

func parseStringSlice(tree *toml.TomlTree, key string) []string {
	raw, ok := tree.Get(key).([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseTargets(tree *toml.TomlTree) ([]Target, error) {
	raw, ok := tree.Get("target").([]*toml.TomlTree)
	if !ok {
		return nil, nil
	}
	out := make([]Target, 0, len(raw))
	for _, t := range raw {
		target := Target{}
		if s, ok := t.Get("name").(string); ok {
			target.Name = s
		}
		if s, ok := t.Get("type").(string); ok {
			target.Kind = parseTargetKind(s)
		}
		if s, ok := t.Get("path").(string); ok {
			target.SourcePath = s
		}
		target.Deps = parseStringSlice(t, "deps")
		target.Resources = parseStringSlice(t, "resources")
		out = append(out, target)
	}
	return out, nil
}

func parseTargetKind(s string) TargetKind {
	switch s {
	case "library":
		return TargetLibrary
	case "test":
		return TargetTest
	case "plugin":
		return TargetPlugin
	case "system-library":
		return TargetSystemLibrary
	case "binary":
		return TargetBinary
	default:
		return TargetExecutable
	}
}

func parseWorkspace(tree *toml.TomlTree) (*Workspace, error) {
	ws, ok := tree.Get("workspace").(*toml.TomlTree)
	if !ok {
		return nil, nil
	}

	w := &Workspace{
		Members: parseStringSlice(ws, "members"),
		Exclude: parseStringSlice(ws, "exclude"),
	}

	if deps, err := parseDepsTable(ws, "dependencies"); err != nil {
		return nil, err
	} else {
		w.SharedDependencies = deps
	}

	if pkg, ok := ws.Get("package").(*toml.TomlTree); ok {
		if v, ok := pkg.Get("version").(string); ok {
			ver, err := semver.Parse(v)
			if err != nil {
				return nil, errors.Wrapf(err, "manifest: workspace.package.version %q", v)
			}
			w.DefaultVersion = ver
		}
	}

	return w, nil
}

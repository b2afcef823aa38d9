package manifest

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// foreignDump is the shape of `<toolchain> package dump-package`'s JSON
// output that this system actually reads (spec.md §6). Every other field in
// the real output is ignored but must not cause json.Unmarshal to fail,
// which is why this only names the fields consumed and nothing else.
type foreignDump struct {
	Name        string `json:"name"`
	ToolsVersion struct {
		Version string `json:"_version"`
	} `json:"toolsVersion"`
	Dependencies []foreignDependency `json:"dependencies"`
	Targets      []foreignTarget     `json:"targets"`
}

type foreignDependency struct {
	SourceControl []struct {
		Identity string `json:"identity"`
		Location struct {
			Remote []struct {
				URLString string `json:"urlString"`
			} `json:"remote"`
		} `json:"location"`
	} `json:"sourceControl"`
}

type foreignTarget struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Path         string `json:"path"`
	Dependencies []struct {
		ByName []string `json:"byName"`
	} `json:"dependencies"`
}

// ParseForeign converts a foreign toolchain's `dump-package` JSON into a
// Manifest, per spec.md §6: only `name`, `toolsVersion._version`,
// `dependencies[].sourceControl[].identity`,
// `dependencies[].sourceControl[].location.remote[].urlString`, and
// `targets[].{name,type,path,dependencies[].byName[0]}` are read; everything
// else is ignored. A dependency with more than one remote uses the first,
// per spec.md §9's documented "first wins" behavior.
func ParseForeign(data []byte) (Manifest, error) {
	var dump foreignDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return Manifest{}, errors.Wrap(err, "manifest: parse foreign dump-package JSON")
	}

	m := Manifest{
		Name:            dump.Name,
		MinToolsVersion: dump.ToolsVersion.Version,
		Dependencies:    make(map[string]Dependency, len(dump.Dependencies)),
	}

	for _, fd := range dump.Dependencies {
		for _, sc := range fd.SourceControl {
			if len(sc.Location.Remote) == 0 {
				continue
			}
			dep := Dependency{
				Name:   sc.Identity,
				Kind:   SourceGit,
				GitURL: sc.Location.Remote[0].URLString,
			}
			m.Dependencies[dep.Name] = dep
		}
	}

	m.Targets = make([]Target, 0, len(dump.Targets))
	for _, ft := range dump.Targets {
		target := Target{
			Name:       ft.Name,
			Kind:       parseTargetKind(ft.Type),
			SourcePath: ft.Path,
		}
		for _, d := range ft.Dependencies {
			if len(d.ByName) > 0 && d.ByName[0] != "" {
				target.Deps = append(target.Deps, d.ByName[0])
			}
		}
		m.Targets = append(m.Targets, target)
	}

	return m, nil
}

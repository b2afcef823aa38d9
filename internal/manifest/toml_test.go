package manifest

import "testing"

const sampleManifest = `
[package]
name = "widget"
version = "1.2.3"
toolsVersion = "5.9"

[dependencies]
logging = "^1.4"

[dependencies.net]
git = "https://example.com/net.git"
branch = "main"
features = ["tls"]

[dependencies.local-util]
path = "../local-util"

[dev-dependencies]
test-kit = "~2.0"

[overrides]
logging = "1.5.0"

[constraints]
net = ">=2.0"

[[target]]
name = "widget"
type = "executable"
path = "Sources/widget"
deps = ["logging", "net"]

[[target]]
name = "widget-tests"
type = "test"
path = "Tests/widgetTests"
deps = ["widget"]

[workspace]
members = ["packages/*"]
exclude = ["packages/experimental"]

[workspace.package]
version = "0.1.0"

[workspace.dependencies]
shared = "^3.0"
`

func TestParseNativeBasics(t *testing.T) {
	m, err := ParseNative([]byte(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	if m.Name != "widget" {
		t.Fatalf("Name = %q, want widget", m.Name)
	}
	if m.Version.String() != "1.2.3" {
		t.Fatalf("Version = %q, want 1.2.3", m.Version.String())
	}
	if m.MinToolsVersion != "5.9" {
		t.Fatalf("MinToolsVersion = %q, want 5.9", m.MinToolsVersion)
	}

	logging, ok := m.Dependencies["logging"]
	if !ok || logging.Kind != SourceRegistry || logging.Requirement.String() != "^1.4" {
		t.Fatalf("logging dependency = %+v", logging)
	}

	net, ok := m.Dependencies["net"]
	if !ok || net.Kind != SourceGit || net.GitURL != "https://example.com/net.git" || net.Branch != "main" {
		t.Fatalf("net dependency = %+v", net)
	}
	if len(net.Features) != 1 || net.Features[0] != "tls" {
		t.Fatalf("net.Features = %v", net.Features)
	}

	localUtil, ok := m.Dependencies["local-util"]
	if !ok || localUtil.Kind != SourcePath || localUtil.Path != "../local-util" {
		t.Fatalf("local-util dependency = %+v", localUtil)
	}

	testKit, ok := m.DevDependencies["test-kit"]
	if !ok || testKit.Requirement.String() != "~2.0" {
		t.Fatalf("test-kit dev-dependency = %+v", testKit)
	}

	if m.Overrides["logging"] != "1.5.0" {
		t.Fatalf("Overrides[logging] = %q", m.Overrides["logging"])
	}
	if m.Constraints["net"] != ">=2.0" {
		t.Fatalf("Constraints[net] = %q", m.Constraints["net"])
	}

	if len(m.Targets) != 2 {
		t.Fatalf("len(Targets) = %d, want 2", len(m.Targets))
	}
	if m.Targets[0].Name != "widget" || m.Targets[0].Kind != TargetExecutable {
		t.Fatalf("Targets[0] = %+v", m.Targets[0])
	}
	if m.Targets[1].Kind != TargetTest {
		t.Fatalf("Targets[1].Kind = %v, want TargetTest", m.Targets[1].Kind)
	}

	if m.Workspace == nil {
		t.Fatal("Workspace = nil, want non-nil")
	}
	if len(m.Workspace.Members) != 1 || m.Workspace.Members[0] != "packages/*" {
		t.Fatalf("Workspace.Members = %v", m.Workspace.Members)
	}
	if len(m.Workspace.Exclude) != 1 || m.Workspace.Exclude[0] != "packages/experimental" {
		t.Fatalf("Workspace.Exclude = %v", m.Workspace.Exclude)
	}
	if m.Workspace.DefaultVersion.String() != "0.1.0" {
		t.Fatalf("Workspace.DefaultVersion = %q", m.Workspace.DefaultVersion.String())
	}
	shared, ok := m.Workspace.SharedDependencies["shared"]
	if !ok || shared.Requirement.String() != "^3.0" {
		t.Fatalf("Workspace.SharedDependencies[shared] = %+v", shared)
	}
}

func TestParseNativeWorkspaceInheritedDependency(t *testing.T) {
	const manifest = `
[package]
name = "member"
version = "1.0.0"

[dependencies.shared]
`
	m, err := ParseNative([]byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	shared, ok := m.Dependencies["shared"]
	if !ok {
		t.Fatal("shared dependency missing")
	}
	if shared.Kind != SourceWorkspaceInherited {
		t.Fatalf("Kind = %v, want SourceWorkspaceInherited", shared.Kind)
	}
}

func TestParseNativeMinimalManifest(t *testing.T) {
	const manifest = `
[package]
name = "bare"
version = "0.0.1"
`
	m, err := ParseNative([]byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "bare" || len(m.Dependencies) != 0 || m.Workspace != nil {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

package install

import (
	"context"
	"sync"

	"github.com/knitpm/knit/internal/fetch"
	"github.com/knitpm/knit/internal/resolver"
	"github.com/knitpm/knit/internal/semver"
)

// knowledgeProvider implements resolver.PackageProvider over whatever the
// Installer has learned so far: a name only has known versions once some
// already-parsed manifest named it as a git dependency (this ecosystem has
// no package-index lookup — spec.md's Non-goals exclude "the package-index
// web search client" — so a name's remote is always discovered inline from
// a dependent's own manifest, the way a Cargo/npm-style git dependency
// carries its URL with it rather than resolving it through a registry).
//
// Versions does real (but read-only) network I/O via fetch.ListRemoteTags,
// since listing tags doesn't require a full checkout and spec.md treats it
// as a lightweight, separate operation. DependenciesOf never does I/O: it
// only ever answers from a cache the Installer populates between Resolve
// attempts, returning resolver.ErrNotFetched when it has nothing yet so the
// installer's retry loop knows to fetch and try again rather than treating
// the package as broken.
type knowledgeProvider struct {
	ctx context.Context

	mu sync.Mutex

	remotes       map[string]string                       // name -> git remote URL
	versionsCache map[string][]semver.Version
	tagsCache     map[string]map[string]fetch.Tag         // name -> version string -> originating Tag
	deps          map[string]map[string]semver.VersionReq // "name@version" -> deps
	results       map[string]fetch.Result                 // "name@version" -> fetch outcome
}

func newKnowledgeProvider(ctx context.Context) *knowledgeProvider {
	return &knowledgeProvider{
		ctx:           ctx,
		remotes:       make(map[string]string),
		versionsCache: make(map[string][]semver.Version),
		tagsCache:     make(map[string]map[string]fetch.Tag),
		deps:          make(map[string]map[string]semver.VersionReq),
		results:       make(map[string]fetch.Result),
	}
}

// registerRemote records (or confirms) name's git remote. Idempotent:
// re-registering the same URL is a no-op; the first registration for a
// name wins if conflicting URLs are ever offered, and a later, different URL
// is ignored without an error.
func (p *knowledgeProvider) registerRemote(name, url string) (added bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.remotes[name]; ok {
		return false
	}
	p.remotes[name] = url
	return true
}

func (p *knowledgeProvider) remoteFor(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	url, ok := p.remotes[name]
	return url, ok
}

func (p *knowledgeProvider) Versions(name string) ([]semver.Version, error) {
	p.mu.Lock()
	if v, ok := p.versionsCache[name]; ok {
		p.mu.Unlock()
		return v, nil
	}
	url, ok := p.remotes[name]
	p.mu.Unlock()
	if !ok {
		return nil, nil
	}

	tags, err := fetch.ListRemoteTags(p.ctx, url)
	if err != nil {
		return nil, err
	}
	versions := make([]semver.Version, 0, len(tags))
	byVersion := make(map[string]fetch.Tag, len(tags))
	for _, t := range tags {
		if t.IsSemver {
			versions = append(versions, t.Version)
			byVersion[t.Version.String()] = t
		}
	}

	p.mu.Lock()
	p.versionsCache[name] = versions
	p.tagsCache[name] = byVersion
	p.mu.Unlock()
	return versions, nil
}

// tagFor returns the remote tag that resolved to name@v, so the Installer
// knows what ref to check out.
func (p *knowledgeProvider) tagFor(name string, v semver.Version) (fetch.Tag, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tagsCache[name][v.String()]
	return t, ok
}

func depsKey(name string, v semver.Version) string { return name + "@" + v.String() }

func (p *knowledgeProvider) DependenciesOf(name string, v semver.Version) (map[string]semver.VersionReq, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.deps[depsKey(name, v)]
	if !ok {
		return nil, resolver.ErrNotFetched
	}
	return d, nil
}

// recordDependencies caches name@v's dependency requirements once the
// Installer has fetched and parsed that checkout's manifest, unblocking
// the next Resolve attempt.
func (p *knowledgeProvider) recordDependencies(name string, v semver.Version, deps map[string]semver.VersionReq) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deps[depsKey(name, v)] = deps
}

// depsFor returns the cached dependency requirements for name@v, if any, for
// callers (lockfile assembly) that want them without going through the
// resolver.PackageProvider DependenciesOf error-signaling contract.
func (p *knowledgeProvider) depsFor(name string, v semver.Version) (map[string]semver.VersionReq, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.deps[depsKey(name, v)]
	return d, ok
}

func (p *knowledgeProvider) hasDependencies(name string, v semver.Version) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.deps[depsKey(name, v)]
	return ok
}

// recordResult caches the outcome of fetching name@v, so the Installer can
// assemble lockfile entries (revision, checksum) without re-fetching.
func (p *knowledgeProvider) recordResult(name string, v semver.Version, result fetch.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[depsKey(name, v)] = result
}

func (p *knowledgeProvider) resultFor(name string, v semver.Version) (fetch.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.results[depsKey(name, v)]
	return r, ok
}

// Package manifest names the package-manifest shape referenced by
// spec.md §6. The loader that decodes it, the JSON value type it decodes
// through, and the package manager that consumes it are explicitly
// out-of-scope external collaborators (spec.md §1) — this package exists
// only so other packages can depend on the shape by name.
package manifest

// Dependency is one {url, hash} entry under dependencies, devDependencies,
// or zig_dependencies.
type Dependency struct {
	URL  string
	Hash string
}

// Manifest is the package-description file's field set, per spec.md §6.
// No decoding logic lives here — Loader.Load is the seam an out-of-scope
// JSON-backed implementation plugs into.
type Manifest struct {
	Name            string
	Version         string
	Description     string
	Author          string
	License         string
	Main            string
	Exports         map[string]string
	Dependencies    map[string]Dependency
	DevDependencies map[string]Dependency
	ZigDependencies map[string]Dependency
	Scripts         map[string]string
	Repository      string
}

// Loader loads a Manifest from its on-disk path. The package manager and
// JSON decoding behind a concrete implementation are out of scope here.
type Loader interface {
	Load(path string) (*Manifest, error)
}

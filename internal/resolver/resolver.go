// Package resolver implements module loading, caching, and import-cycle
// detection for .zs source files, per spec.md §4.3. It loads a module by
// path, parses it, extracts its exports table, and memoizes by canonical
// path exactly once per resolver lifetime.
package resolver

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/zigscript-lang/zsc/internal/ast"
	"github.com/zigscript-lang/zsc/internal/parser"
)

// ExportKind tags what a module's exported symbol refers to.
type ExportKind int

const (
	ExportFunction ExportKind = iota
	ExportStruct
	ExportEnum
)

// Export is one entry of a Module's exports table.
type Export struct {
	Kind ExportKind
	Decl *ast.Stmt
}

// Module is the resolver's record for one loaded source file: its
// canonical path, the source buffer (which the AST's string slices alias
// into, so it must outlive the Module), the parsed AST, and its exports.
type Module struct {
	CanonicalPath string
	Source        string
	AST           *ast.Module
	Exports       map[string]Export
	Virtual       bool // true for built-in modules with no backing file
}

// builtinModules lists the fixed virtual module names of spec.md §4.3
// step 1, along with the symbol names they export. These have no AST —
// they are host-provided and referenced by name only.
var builtinModules = map[string][]string{
	"console": {"log"},
	"http":    {"get", "post"},
	"fs":      {"readFile", "writeFile"},
	"timers":  {"setTimeout", "clearTimeout"},
	"promise": {"await"},
}

// Error kinds for the resolver, per spec.md §7's "Module" taxonomy.
var (
	ErrModuleNotFound    = fmt.Errorf("module not found")
	ErrCircularDependency = fmt.Errorf("circular dependency")
)

// ResolveError wraps one of the sentinel errors above with the module
// reference that triggered it.
type ResolveError struct {
	Ref   string
	cause error
}

func (e *ResolveError) Error() string { return fmt.Sprintf("%s: %s", e.cause, e.Ref) }
func (e *ResolveError) Unwrap() error { return e.cause }

// Resolver loads and caches modules by canonical path. It is safe for
// concurrent use; the module map and loading stack are guarded by a mutex,
// matching the cache-coherence contract tested in spec.md §8 even though
// the driver itself runs single-threaded today.
type Resolver struct {
	fs          afero.Fs
	searchPaths []string

	mu      sync.RWMutex
	modules map[string]*Module
	loading map[string]bool
	order   []string // loading stack, for cycle diagnostics

	log *logrus.Entry
}

// New constructs a Resolver reading through fs, with the default search
// path order of spec.md §4.3: stdlib, examples, then the current directory.
func New(fs afero.Fs, log *logrus.Entry) *Resolver {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Resolver{
		fs:          fs,
		searchPaths: []string{"stdlib", "examples", "."},
		modules:     map[string]*Module{},
		loading:     map[string]bool{},
		log:         log,
	}
}

// AddSearchPath appends p to the ordered list of directories tried when a
// module reference isn't a relative or built-in path.
func (r *Resolver) AddSearchPath(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchPaths = append(r.searchPaths, p)
}

// GetModule returns the cached Module for a canonical path, if loaded.
func (r *Resolver) GetModule(canonicalPath string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[canonicalPath]
	return m, ok
}

// GetExport looks up a single exported symbol by module reference and
// name among the already-loaded modules: an exact canonical-path match
// first, then the first cached path ending in ref or ref+".zs". It never
// loads a module.
func (r *Resolver) GetExport(ref, name string) (Export, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[ref]
	if !ok {
		// try resolving via the suffix-match rule used by the checker
		// (spec.md §4.4): {name, name.zs, examples/name, examples/name.zs}.
		for path, mod := range r.modules {
			if strings.HasSuffix(path, ref) || strings.HasSuffix(path, ref+".zs") {
				m = mod
				ok = true
				break
			}
		}
	}
	if !ok {
		return Export{}, false
	}
	e, found := m.Exports[name]
	return e, found
}

// LoadModule resolves ref (optionally relative to relativeTo) to a
// canonical path, loading and caching it if needed. Cycle detection walks
// the resolver's loading stack (spec.md §4.3 step 4).
func (r *Resolver) LoadModule(ref, relativeTo string) (*Module, error) {
	if syms, ok := builtinModules[ref]; ok {
		return r.virtualModule(ref, syms), nil
	}

	path, err := r.findFile(ref, relativeTo)
	if err != nil {
		return nil, &ResolveError{Ref: ref, cause: ErrModuleNotFound}
	}
	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = path
	}

	r.mu.Lock()
	if m, ok := r.modules[canonical]; ok {
		r.mu.Unlock()
		return m, nil
	}
	if r.loading[canonical] {
		r.mu.Unlock()
		return nil, &ResolveError{Ref: ref, cause: ErrCircularDependency}
	}
	r.loading[canonical] = true
	r.order = append(r.order, canonical)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.loading, canonical)
		if n := len(r.order); n > 0 && r.order[n-1] == canonical {
			r.order = r.order[:n-1]
		}
		r.mu.Unlock()
	}()

	src, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, &ResolveError{Ref: ref, cause: ErrModuleNotFound}
	}

	r.log.WithField("module", canonical).Debug("parsing module")
	arena := ast.NewArena()
	p := parser.New(string(src), arena)
	modAST, perr := p.ParseModule(canonical)
	if perr != nil {
		return nil, fmt.Errorf("parsing %s: %w", canonical, perr)
	}

	m := &Module{
		CanonicalPath: canonical,
		Source:        string(src),
		AST:           modAST,
		Exports:       extractExports(modAST),
	}

	r.mu.Lock()
	r.modules[canonical] = m
	r.mu.Unlock()
	return m, nil
}

func (r *Resolver) virtualModule(name string, symbols []string) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[name]; ok {
		return m
	}
	exports := make(map[string]Export, len(symbols))
	for _, s := range symbols {
		exports[s] = Export{Kind: ExportFunction}
	}
	m := &Module{CanonicalPath: name, Exports: exports, Virtual: true}
	r.modules[name] = m
	return m
}

// findFile implements spec.md §4.3 step 2: try the directory of
// relativeTo, then each search path, then the current directory; for each
// base try extensions [".zs", ""].
func (r *Resolver) findFile(ref, relativeTo string) (string, error) {
	var bases []string
	if relativeTo != "" {
		bases = append(bases, filepath.Dir(relativeTo))
	}
	r.mu.RLock()
	bases = append(bases, r.searchPaths...)
	r.mu.RUnlock()
	bases = append(bases, ".")

	hasExt := filepath.Ext(ref) != ""
	exts := []string{".zs", ""}
	if hasExt {
		exts = []string{""}
	}

	for _, base := range bases {
		for _, ext := range exts {
			candidate := filepath.Join(base, ref+ext)
			if exists, _ := afero.Exists(r.fs, candidate); exists {
				return candidate, nil
			}
		}
	}
	return "", ErrModuleNotFound
}

// extractExports walks a Module AST's top-level statements and collects
// every is_export function/struct/enum, per spec.md §4.3 step 5.
func extractExports(mod *ast.Module) map[string]Export {
	exports := map[string]Export{}
	for _, stmt := range mod.Stmts {
		switch stmt.Kind {
		case ast.FnDecl:
			if stmt.IsExport || stmt.Name == "main" {
				exports[stmt.Name] = Export{Kind: ExportFunction, Decl: stmt}
			}
		case ast.StructDecl:
			if stmt.IsExport {
				exports[stmt.Name] = Export{Kind: ExportStruct, Decl: stmt}
			}
		case ast.EnumDecl:
			if stmt.IsExport {
				exports[stmt.Name] = Export{Kind: ExportEnum, Decl: stmt}
			}
		}
	}
	return exports
}

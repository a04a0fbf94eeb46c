// Package driver ties the lexer, parser, module resolver, type checker,
// and WAT codegen together for one source file, per spec.md §2 and §4.6.
// It creates the per-compilation arena, resolver, checker, and codegen
// values as locals of one call; it has no explicit teardown step.
package driver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/zigscript-lang/zsc/internal/ast"
	"github.com/zigscript-lang/zsc/internal/checker"
	"github.com/zigscript-lang/zsc/internal/codegen"
	"github.com/zigscript-lang/zsc/internal/config"
	"github.com/zigscript-lang/zsc/internal/parser"
	"github.com/zigscript-lang/zsc/internal/resolver"
)

// Result is what one successful Compile call produces.
type Result struct {
	CompilationID string
	OutputPath    string
	WAT           string
}

// Compile runs the full pipeline for the source file at path: parse, walk
// its import graph, type-check the whole graph, generate WAT, and write
// the result to disk (or cfg's explicit output path).
//
// Every returned error is wrapped in a CompileError carrying the
// compilation id, so callers (the CLI, tests) can correlate a failure
// with the logrus fields emitted for it.
func Compile(path string, cfg *config.CompilerConfig, log *logrus.Entry) (*Result, error) {
	if cfg == nil {
		cfg = config.NewCompilerConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	compilationID := uuid.New().String()
	log = log.WithField("compilation_id", compilationID)

	fail := func(phase string, err error) (*Result, error) {
		wrapped := &CompileError{CompilationID: compilationID, Phase: phase, cause: err}
		log.WithField("phase", phase).WithError(err).Error("compilation failed")
		return nil, wrapped
	}

	root, chk, res, phase, err := checkGraph(path, cfg, log)
	if err != nil {
		return fail(phase, err)
	}

	gen := codegen.NewWithHeapStart(chk, log, cfg.HeapStart())
	wat, err := gen.GenerateWithResolver(root, res)
	if err != nil {
		return fail("codegen", err)
	}
	log.WithField("bytes", len(wat)).Debug("generated WAT")

	out := cfg.OutputPath()
	if out == "" {
		out = defaultOutputPath(path)
	}
	if err := writeOutput(cfg, out, wat); err != nil {
		return fail("write", err)
	}

	return &Result{CompilationID: compilationID, OutputPath: out, WAT: wat}, nil
}

// Check runs the pipeline through the type checker only — parse, resolve,
// check — without generating or writing WAT. It backs the `check`
// subcommand, per spec.md §6.
func Check(path string, cfg *config.CompilerConfig, log *logrus.Entry) (string, error) {
	if cfg == nil {
		cfg = config.NewCompilerConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	compilationID := uuid.New().String()
	log = log.WithField("compilation_id", compilationID)

	_, _, _, phase, err := checkGraph(path, cfg, log)
	if err != nil {
		wrapped := &CompileError{CompilationID: compilationID, Phase: phase, cause: err}
		log.WithField("phase", phase).WithError(err).Error("check failed")
		return compilationID, wrapped
	}
	return compilationID, nil
}

// checkGraph runs parse, import-graph resolution, and type checking,
// shared by Compile and Check. On error it also reports which phase
// failed, so callers can wrap it in their own CompileError.
func checkGraph(
	path string,
	cfg *config.CompilerConfig,
	log *logrus.Entry,
) (root *ast.Module, chk *checker.Checker, res *resolver.Resolver, phase string, err error) {
	src, err := readSource(cfg, path)
	if err != nil {
		return nil, nil, nil, "read", err
	}

	arena := ast.NewArena()
	p := parser.New(src, arena)
	root, err = p.ParseModule(path)
	if err != nil {
		return nil, nil, nil, "parse", err
	}
	log.WithField("path", path).Debug("parsed root module")

	res = resolver.New(cfg.FileSystem(), log)
	for _, sp := range cfg.SearchPaths() {
		res.AddSearchPath(sp)
	}

	if err := walkImportGraph(root, path, res, map[string]bool{}); err != nil {
		return nil, nil, nil, "resolve", err
	}

	chk = checker.New(log)
	if err := chk.CheckModuleWithImports(root, res); err != nil {
		return nil, nil, nil, "check", err
	}
	log.Debug("type check passed")

	return root, chk, res, "", nil
}

// walkImportGraph recursively resolves every import_stmt reachable from
// mod, starting at sourcePath, detecting cycles via a driver-owned
// visiting stack (distinct from the resolver's own in-flight loading
// guard, which only protects a single LoadModule call from reentrancy).
func walkImportGraph(mod *ast.Module, sourcePath string, res *resolver.Resolver, visiting map[string]bool) error {
	canonical, err := filepath.Abs(sourcePath)
	if err != nil {
		canonical = sourcePath
	}
	if visiting[canonical] {
		return fmt.Errorf("%w: %s", resolver.ErrCircularDependency, canonical)
	}
	visiting[canonical] = true
	defer delete(visiting, canonical)

	for _, stmt := range mod.Stmts {
		if stmt.Kind != ast.ImportStmt {
			continue
		}
		m, err := res.LoadModule(stmt.ModulePath, sourcePath)
		if err != nil {
			return err
		}
		if m.Virtual {
			continue
		}
		if visiting[m.CanonicalPath] {
			return fmt.Errorf("%w: %s", resolver.ErrCircularDependency, m.CanonicalPath)
		}
		if err := walkImportGraph(m.AST, m.CanonicalPath, res, visiting); err != nil {
			return err
		}
	}
	return nil
}

// defaultOutputPath strips a trailing ".zs" and appends ".wat", per
// spec.md §6.
func defaultOutputPath(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, ".zs")
	return base + ".wat"
}

func readSource(cfg *config.CompilerConfig, path string) (string, error) {
	data, err := afero.ReadFile(cfg.FileSystem(), path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func writeOutput(cfg *config.CompilerConfig, outPath, wat string) error {
	if err := afero.WriteFile(cfg.FileSystem(), outPath, []byte(wat), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

// Package codegen lowers a checked Module AST to WebAssembly text (WAT),
// per spec.md §4.5. It owns a linear-memory bump allocator, a lambda
// function table, and a per-function local-index map; none of it survives
// past one Generate call.
package codegen

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zigscript-lang/zsc/internal/ast"
	"github.com/zigscript-lang/zsc/internal/checker"
	"github.com/zigscript-lang/zsc/internal/resolver"
	"github.com/zigscript-lang/zsc/internal/types"
)

// defaultHeapStart is the first address the bump allocator hands out when
// the caller doesn't override it via config.WithHeapStart. Addresses below
// it are reserved: 0-4095 as a null-check region (optional(T)'s "absent"
// sentinel is 0, never a valid heap address), 4096-8191 as early-string
// scratch.
const defaultHeapStart = 8192

// hostImport is one entry of the fixed prologue import set of spec.md §6.
// Every module carries all ten regardless of what the source references;
// codegen binds them under a "nexus_" WAT id so user extern_fn_decls
// (which bind their own chosen id to a host module/name pair) never
// collide with them.
type hostImport struct {
	WatName string
	Module  string
	Name    string
	Params  []string
	Result  string
}

var fixedHostImports = []hostImport{
	{"nexus_js_console_log", "env", "js_console_log", []string{"i32", "i32"}, ""},
	{"nexus_json_decode", "std", "json_decode", []string{"i32", "i32"}, "i32"},
	{"nexus_json_encode", "std", "json_encode", []string{"i32"}, "i32"},
	{"nexus_http_get", "std", "http_get", []string{"i32", "i32"}, "i32"},
	{"nexus_http_post", "std", "http_post", []string{"i32", "i32", "i32", "i32"}, "i32"},
	{"nexus_fs_read_file", "std", "fs_read_file", []string{"i32", "i32"}, "i32"},
	{"nexus_fs_write_file", "std", "fs_write_file", []string{"i32", "i32", "i32", "i32"}, "i32"},
	{"nexus_set_timeout", "std", "set_timeout", []string{"i32", "i32"}, "i32"},
	{"nexus_clear_timeout", "std", "clear_timeout", []string{"i32"}, ""},
	{"nexus_promise_await", "std", "promise_await", []string{"i32"}, "i32"},
}

type localVar struct {
	Name string
	Type *types.Type
}

type lambdaFunc struct {
	Name  string
	Arity int
	Text  string
}

type funcUnit struct {
	name     string
	params   []ast.Param
	ret      *types.Type
	isAsync  bool
	isExport bool
	body     *ast.Stmt
}

// Generator lowers one checked Module to WAT. Construct one per
// compilation; it is not safe for concurrent or repeated use.
type Generator struct {
	chk *checker.Checker
	log *logrus.Entry

	heapNext int

	// needsHeapGlobal is set once a push() call is lowered: push can grow
	// an array past its reserved capacity, which the compile-time bump
	// allocator can't size in advance, so it falls back to a runtime
	// $heap_next global (emitted only when actually needed).
	needsHeapGlobal bool

	out          *strings.Builder
	locals       map[string]localVar
	paramNames   map[string]bool
	localOrder   []string
	localCounter int
	labelCounter int

	lambdas       []lambdaFunc
	lambdaArities map[int]bool

	loopLabels []loopLabelPair
}

// loopLabelPair is the enclosing loop's break/continue targets, pushed by
// lowerWhileStmt/lowerForStmt so a nested BreakStmt/ContinueStmt resolves
// to the right block/loop label instead of a fixed name.
type loopLabelPair struct {
	Break    string
	Continue string
}

// New constructs a Generator bound to the already-checked Checker, so
// codegen can query resolved expression types, struct layouts, and
// function signatures without re-deriving them. The bump allocator starts
// at defaultHeapStart; use NewWithHeapStart to honor config.WithHeapStart.
func New(chk *checker.Checker, log *logrus.Entry) *Generator {
	return NewWithHeapStart(chk, log, defaultHeapStart)
}

// NewWithHeapStart is New, but the bump allocator's first address is
// heapStart instead of defaultHeapStart — wired from
// config.CompilerConfig.HeapStart() by the driver.
func NewWithHeapStart(chk *checker.Checker, log *logrus.Entry, heapStart int) *Generator {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Generator{
		chk:           chk,
		log:           log,
		heapNext:      heapStart,
		lambdaArities: map[int]bool{},
	}
}

// Generate lowers root with no imported bodies to inline.
func (g *Generator) Generate(root *ast.Module) (string, error) {
	return g.generate(root, nil)
}

// GenerateWithResolver additionally inlines the bodies of imported
// functions referenced by root's import_stmts, per spec.md §2.
func (g *Generator) GenerateWithResolver(root *ast.Module, res *resolver.Resolver) (string, error) {
	return g.generate(root, res)
}

func (g *Generator) generate(root *ast.Module, res *resolver.Resolver) (string, error) {
	g.log.WithField("heap_start", g.heapNext).Debug("codegen: starting module lowering")

	var units []funcUnit
	var externs []*ast.Stmt
	seen := map[string]bool{}

	addFn := func(s *ast.Stmt, nameOverride string) {
		name := s.Name
		if nameOverride != "" {
			name = nameOverride
		}
		if seen[name] {
			return
		}
		seen[name] = true
		sig, _ := g.chk.FuncSignature(name)
		units = append(units, funcUnit{
			name:     name,
			params:   s.Params,
			ret:      sig.Ret,
			isAsync:  s.IsAsync,
			isExport: s.IsExport || name == "main",
			body:     s.Body,
		})
	}

	for _, stmt := range root.Stmts {
		switch stmt.Kind {
		case ast.FnDecl:
			addFn(stmt, "")
		case ast.ExternFnDecl:
			externs = append(externs, stmt)
		case ast.StructDecl:
			for _, m := range stmt.Methods {
				addFn(m, stmt.Name+"_"+m.Name)
			}
		case ast.ImportStmt:
			if res == nil {
				continue
			}
			for _, sym := range stmt.Symbols {
				export, ok := res.GetExport(stmt.ModulePath, sym)
				if !ok || export.Decl == nil || export.Kind != resolver.ExportFunction {
					continue
				}
				addFn(export.Decl, "")
			}
		}
	}

	var body strings.Builder
	body.WriteString("(module\n")
	body.WriteString("  (memory (import \"env\" \"memory\") 1)\n")
	for _, hi := range fixedHostImports {
		body.WriteString(renderImport(hi))
	}
	for _, ext := range externs {
		sig, _ := g.chk.FuncSignature(ext.Name)
		body.WriteString(renderImport(hostImport{
			WatName: ext.Name,
			Module:  ext.HostModule,
			Name:    ext.HostName,
			Params:  wasmTypes(sig.Params),
			Result:  resultWasmType(sig.Ret),
		}))
	}

	g.log.WithField("count", len(units)).Debug("codegen: lowering functions")
	for _, u := range units {
		text, err := g.lowerFunc(u)
		if err != nil {
			g.log.WithField("func", u.name).WithError(err).Debug("codegen: lowering failed")
			return "", err
		}
		body.WriteString(text)
	}

	for _, lf := range g.lambdas {
		body.WriteString(lf.Text)
	}

	if len(g.lambdas) > 0 {
		arities := sortedArities(g.lambdaArities)
		for _, k := range arities {
			body.WriteString(fmt.Sprintf("  (type $lambda_type_%d (func%s (result i32)))\n", k, strings.Repeat(" (param i32)", k)))
		}
		body.WriteString(fmt.Sprintf("  (table %d funcref)\n", len(g.lambdas)))
		body.WriteString("  (elem (i32.const 0)")
		for _, lf := range g.lambdas {
			body.WriteString(" $" + lf.Name)
		}
		body.WriteString(")\n")
	}

	if g.needsHeapGlobal {
		body.WriteString(fmt.Sprintf("  (global $heap_next (mut i32) (i32.const %d))\n", g.heapNext))
	}

	body.WriteString(")\n")
	g.log.WithField("heap_end", g.heapNext).Debug("codegen: module lowering complete")
	return body.String(), nil
}

func sortedArities(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func renderImport(hi hostImport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  (func $%s (import %q %q)", hi.WatName, hi.Module, hi.Name))
	for _, p := range hi.Params {
		sb.WriteString(" (param " + p + ")")
	}
	if hi.Result != "" {
		sb.WriteString(" (result " + hi.Result + ")")
	}
	sb.WriteString(")\n")
	return sb.String()
}

func wasmTypes(ts []*types.Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = wasmType(t)
	}
	return out
}

func resultWasmType(t *types.Type) string {
	if isVoid(t) {
		return ""
	}
	return wasmType(t)
}

func isVoid(t *types.Type) bool {
	return t == nil || (t.Tag == types.TagPrimitive && t.Primitive == types.Void)
}

// wasmType picks this language's runtime representation for t: numeric
// primitives map directly, everything else (string, bytes, array, map,
// struct, enum, optional, result, promise, function) is an i32 handle
// into linear memory or the function table.
func wasmType(t *types.Type) string {
	if t != nil && t.Tag == types.TagPrimitive {
		switch t.Primitive {
		case types.I64, types.U64:
			return "i64"
		case types.F64:
			return "f64"
		}
	}
	return "i32"
}

func (g *Generator) typePrefix(t *types.Type) string { return wasmType(t) }

func (g *Generator) isF64(t *types.Type) bool {
	return t != nil && t.Tag == types.TagPrimitive && t.Primitive == types.F64
}

// --- bump allocator ---

func align4(n int) int { return (n + 3) &^ 3 }

func (g *Generator) alloc(n int) int {
	addr := align4(g.heapNext)
	g.heapNext = addr + n
	return addr
}

// --- locals ---

func (g *Generator) addLocal(name string, t *types.Type) {
	if g.paramNames[name] {
		return
	}
	if _, ok := g.locals[name]; ok {
		return
	}
	g.locals[name] = localVar{Name: name, Type: t}
	g.localOrder = append(g.localOrder, name)
}

func (g *Generator) freshLocal(prefix string, t *types.Type) string {
	name := fmt.Sprintf("__%s%d", prefix, g.localCounter)
	g.localCounter++
	g.addLocal(name, t)
	return name
}

func (g *Generator) freshLabel(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, g.labelCounter)
	g.labelCounter++
	return name
}

func (g *Generator) localType(name string) *types.Type {
	if lv, ok := g.locals[name]; ok {
		return lv.Type
	}
	return types.Prim(types.Void)
}

func (g *Generator) emit(s string) { g.out.WriteString(s) }

func (g *Generator) emitf(format string, args ...interface{}) {
	fmt.Fprintf(g.out, format, args...)
}

// --- functions ---

func (g *Generator) lowerFunc(u funcUnit) (string, error) {
	g.out = &strings.Builder{}
	g.locals = map[string]localVar{}
	g.paramNames = map[string]bool{}
	g.localOrder = nil

	sig, _ := g.chk.FuncSignature(u.name)
	for i, p := range u.params {
		t := types.Prim(types.Void)
		if i < len(sig.Params) {
			t = sig.Params[i]
		}
		g.locals[p.Name] = localVar{Name: p.Name, Type: t}
		g.paramNames[p.Name] = true
	}

	if u.body != nil {
		for _, stmt := range u.body.Stmts {
			if err := g.lowerStmt(stmt); err != nil {
				return "", err
			}
		}
	}
	bodyText := g.out.String()

	var sb strings.Builder
	sb.WriteString("  (func $" + u.name)
	if u.isExport {
		sb.WriteString(fmt.Sprintf(" (export %q)", u.name))
	}
	for _, p := range u.params {
		sb.WriteString(fmt.Sprintf(" (param $%s %s)", p.Name, wasmType(g.locals[p.Name].Type)))
	}
	ret := u.ret
	if u.isAsync {
		ret = types.Prim(types.I32) // async functions return a promise id
	}
	if !isVoid(ret) {
		sb.WriteString(" (result " + wasmType(ret) + ")")
	}
	sb.WriteString("\n")
	for _, name := range g.localOrder {
		sb.WriteString(fmt.Sprintf("    (local $%s %s)\n", name, wasmType(g.locals[name].Type)))
	}
	sb.WriteString(bodyText)
	sb.WriteString("  )\n")
	return sb.String(), nil
}

// --- statements ---

func (g *Generator) lowerStmt(s *ast.Stmt) error {
	switch s.Kind {
	case ast.ExprStmt:
		if err := g.lowerExpr(s.Expr); err != nil {
			return err
		}
		if t, ok := g.chk.ExprType(s.Expr); ok && !isVoid(t) {
			g.emit("    drop\n")
		}
		return nil
	case ast.LetDecl:
		return g.lowerLetDecl(s)
	case ast.ReturnStmt:
		if s.Value != nil {
			if err := g.lowerExpr(s.Value); err != nil {
				return err
			}
		}
		g.emit("    return\n")
		return nil
	case ast.IfStmt:
		return g.lowerIfStmt(s)
	case ast.Block:
		for _, stmt := range s.Stmts {
			if err := g.lowerStmt(stmt); err != nil {
				return err
			}
		}
		return nil
	case ast.ForStmt:
		return g.lowerForStmt(s)
	case ast.WhileStmt:
		return g.lowerWhileStmt(s)
	case ast.BreakStmt:
		if len(g.loopLabels) == 0 {
			return &GenError{Kind: InvalidCode, Line: s.Loc.Line, Col: s.Loc.Col, Context: "break outside loop"}
		}
		g.emitf("    br $%s\n", g.loopLabels[len(g.loopLabels)-1].Break)
		return nil
	case ast.ContinueStmt:
		if len(g.loopLabels) == 0 {
			return &GenError{Kind: InvalidCode, Line: s.Loc.Line, Col: s.Loc.Col, Context: "continue outside loop"}
		}
		g.emitf("    br $%s\n", g.loopLabels[len(g.loopLabels)-1].Continue)
		return nil
	case ast.ImportStmt, ast.FnDecl, ast.ExternFnDecl, ast.StructDecl, ast.EnumDecl:
		return nil
	}
	return &GenError{Kind: InvalidCode, Line: s.Loc.Line, Col: s.Loc.Col, Context: "unhandled statement"}
}

func (g *Generator) lowerLetDecl(s *ast.Stmt) error {
	t, _ := g.chk.ExprType(s.Init)
	if t == nil {
		t = types.Prim(types.Void)
	}
	g.addLocal(s.Name, t)
	if s.Init != nil {
		if err := g.lowerExpr(s.Init); err != nil {
			return err
		}
		g.emitf("    local.set $%s\n", s.Name)
	}
	return nil
}

func (g *Generator) lowerIfStmt(s *ast.Stmt) error {
	if err := g.lowerExpr(s.Cond); err != nil {
		return err
	}
	g.emit("    (if\n      (then\n")
	if err := g.lowerStmt(s.Then); err != nil {
		return err
	}
	g.emit("      )\n")
	if s.Els != nil {
		g.emit("      (else\n")
		if err := g.lowerStmt(s.Els); err != nil {
			return err
		}
		g.emit("      )\n")
	}
	g.emit("    )\n")
	return nil
}

func (g *Generator) lowerWhileStmt(s *ast.Stmt) error {
	cont := g.freshLabel("while_continue_")
	brk := g.freshLabel("while_break_")
	g.emitf("    (block $%s\n      (loop $%s\n", brk, cont)
	if err := g.lowerExpr(s.Cond); err != nil {
		return err
	}
	g.emit("        i32.eqz\n        br_if $" + brk + "\n")
	g.loopLabels = append(g.loopLabels, loopLabelPair{Break: brk, Continue: cont})
	err := g.lowerStmt(s.Then)
	g.loopLabels = g.loopLabels[:len(g.loopLabels)-1]
	if err != nil {
		return err
	}
	g.emitf("        br $%s\n      )\n    )\n", cont)
	return nil
}

func (g *Generator) lowerForStmt(s *ast.Stmt) error {
	iterType, _ := g.chk.ExprType(s.Iterable)
	var elemType *types.Type
	if iterType != nil && iterType.Tag == types.TagArray {
		elemType = iterType.Of
	} else {
		elemType = types.Prim(types.I32)
	}

	arrLocal := g.freshLocal("for_arr", types.Prim(types.I32))
	idxLocal := g.freshLocal("for_idx", types.Prim(types.I32))
	lenLocal := g.freshLocal("for_len", types.Prim(types.I32))
	g.addLocal(s.IterName, elemType)

	if err := g.lowerExpr(s.Iterable); err != nil {
		return err
	}
	g.emitf("    local.set $%s\n", arrLocal)
	g.emitf("    local.get $%s\n    i32.load\n    local.set $%s\n", arrLocal, lenLocal)
	g.emitf("    i32.const 0\n    local.set $%s\n", idxLocal)

	cont := g.freshLabel("for_continue_")
	brk := g.freshLabel("for_break_")
	contInner := g.freshLabel("for_continue_inner_")
	g.emitf("    (block $%s\n      (loop $%s\n", brk, cont)
	g.emitf("        local.get $%s\n        local.get $%s\n        i32.ge_s\n        br_if $%s\n", idxLocal, lenLocal, brk)
	g.emitf("        local.get $%s\n        i32.const 8\n        i32.add\n        local.get $%s\n        i32.const 4\n        i32.mul\n        i32.add\n        i32.load\n        local.set $%s\n", arrLocal, idxLocal, s.IterName)
	// The body runs inside its own block so `continue` (br to this block's
	// label) falls through to the index increment below instead of jumping
	// back to the loop header and re-running the same index forever.
	g.emitf("        (block $%s\n", contInner)
	g.loopLabels = append(g.loopLabels, loopLabelPair{Break: brk, Continue: contInner})
	err := g.lowerStmt(s.Then)
	g.loopLabels = g.loopLabels[:len(g.loopLabels)-1]
	if err != nil {
		return err
	}
	g.emit("        )\n")
	g.emitf("        local.get $%s\n        i32.const 1\n        i32.add\n        local.set $%s\n", idxLocal, idxLocal)
	g.emitf("        br $%s\n      )\n    )\n", cont)
	return nil
}

// --- expressions ---

func (g *Generator) lowerExpr(e *ast.Expr) error {
	switch e.Kind {
	case ast.IntLiteral:
		t, _ := g.chk.ExprType(e)
		g.emitf("    %s.const %d\n", g.typePrefix(t), e.IntValue)
		return nil
	case ast.FloatLiteral:
		g.emitf("    f64.const %v\n", e.FloatValue)
		return nil
	case ast.BoolLiteral:
		v := 0
		if e.BoolValue {
			v = 1
		}
		g.emitf("    i32.const %d\n", v)
		return nil
	case ast.StringLiteral:
		return g.lowerStringLiteral(e.StringValue)
	case ast.StringInterpolation:
		return g.lowerStringInterpolation(e)
	case ast.Identifier:
		g.emitf("    local.get $%s\n", e.Name)
		return nil
	case ast.Binary:
		return g.lowerBinary(e)
	case ast.Unary:
		return g.lowerUnary(e)
	case ast.Call:
		return g.lowerCall(e)
	case ast.MemberAccess:
		return g.lowerMemberAccess(e)
	case ast.IndexAccess:
		return g.lowerIndexAccess(e)
	case ast.ArrayLiteral:
		return g.lowerArrayLiteral(e)
	case ast.StructLiteral:
		return g.lowerStructLiteral(e)
	case ast.AwaitExpr:
		if err := g.lowerExpr(e.Operand); err != nil {
			return err
		}
		g.emit("    call $nexus_promise_await\n")
		return nil
	case ast.TryExpr:
		// result(Ok, Err) has no tagged memory layout in this pipeline (no
		// optimization/GC redesign in scope); a result value IS its Ok
		// payload at codegen time, so `?` is a passthrough.
		return g.lowerExpr(e.Operand)
	case ast.MatchExpr:
		return g.lowerMatchExpr(e)
	case ast.AssignExpr:
		return g.lowerAssign(e)
	case ast.Lambda:
		return g.lowerLambda(e)
	}
	return &GenError{Kind: UnsupportedFeature, Line: e.Loc.Line, Col: e.Loc.Col, Context: "unhandled expression"}
}

func (g *Generator) lowerBinary(e *ast.Expr) error {
	leftType, _ := g.chk.ExprType(e.Left)
	f64 := g.isF64(leftType)

	if e.BinOp == ast.OpNullCoalesce {
		return g.lowerNullCoalesce(e)
	}
	if e.BinOp == ast.OpAnd || e.BinOp == ast.OpOr {
		if err := g.lowerExpr(e.Left); err != nil {
			return err
		}
		if err := g.lowerExpr(e.Right); err != nil {
			return err
		}
		if e.BinOp == ast.OpAnd {
			g.emit("    i32.and\n")
		} else {
			g.emit("    i32.or\n")
		}
		return nil
	}

	if err := g.lowerExpr(e.Left); err != nil {
		return err
	}
	if err := g.lowerExpr(e.Right); err != nil {
		return err
	}

	prefix := g.typePrefix(leftType)
	switch e.BinOp {
	case ast.OpAdd:
		g.emitf("    %s.add\n", prefix)
	case ast.OpSub:
		g.emitf("    %s.sub\n", prefix)
	case ast.OpMul:
		g.emitf("    %s.mul\n", prefix)
	case ast.OpDiv:
		if f64 {
			g.emit("    f64.div\n")
		} else {
			g.emitf("    %s.div_s\n", prefix)
		}
	case ast.OpMod:
		if f64 {
			return &GenError{Kind: UnsupportedFeature, Line: e.Loc.Line, Col: e.Loc.Col, Context: "f64 has no modulo instruction"}
		}
		g.emitf("    %s.rem_s\n", prefix)
	case ast.OpEq:
		g.emitf("    %s.eq\n", prefix)
	case ast.OpNotEq:
		g.emitf("    %s.ne\n", prefix)
	case ast.OpLess:
		if f64 {
			g.emit("    f64.lt\n")
		} else {
			g.emitf("    %s.lt_s\n", prefix)
		}
	case ast.OpLessEq:
		if f64 {
			g.emit("    f64.le\n")
		} else {
			g.emitf("    %s.le_s\n", prefix)
		}
	case ast.OpGreater:
		if f64 {
			g.emit("    f64.gt\n")
		} else {
			g.emitf("    %s.gt_s\n", prefix)
		}
	case ast.OpGreaterEq:
		if f64 {
			g.emit("    f64.ge\n")
		} else {
			g.emitf("    %s.ge_s\n", prefix)
		}
	case ast.OpBitAnd:
		g.emitf("    %s.and\n", prefix)
	case ast.OpBitOr:
		g.emitf("    %s.or\n", prefix)
	case ast.OpBitXor:
		g.emitf("    %s.xor\n", prefix)
	default:
		return &GenError{Kind: UnsupportedFeature, Line: e.Loc.Line, Col: e.Loc.Col, Context: "unhandled binary operator"}
	}
	return nil
}

func (g *Generator) lowerNullCoalesce(e *ast.Expr) error {
	leftType, _ := g.chk.ExprType(e.Left)
	tmp := g.freshLocal("oc", leftType)
	if err := g.lowerExpr(e.Left); err != nil {
		return err
	}
	g.emitf("    local.set $%s\n", tmp)
	g.emitf("    local.get $%s\n    i32.eqz\n", tmp)
	g.emitf("    (if (result %s)\n      (then\n", wasmType(leftType))
	if err := g.lowerExpr(e.Right); err != nil {
		return err
	}
	g.emit("      )\n      (else\n")
	g.emitf("        local.get $%s\n", tmp)
	g.emit("      )\n    )\n")
	return nil
}

func (g *Generator) lowerUnary(e *ast.Expr) error {
	operandType, _ := g.chk.ExprType(e.Operand)
	switch e.UnOp {
	case ast.OpNeg:
		if g.isF64(operandType) {
			if err := g.lowerExpr(e.Operand); err != nil {
				return err
			}
			g.emit("    f64.neg\n")
			return nil
		}
		prefix := g.typePrefix(operandType)
		g.emitf("    %s.const 0\n", prefix)
		if err := g.lowerExpr(e.Operand); err != nil {
			return err
		}
		g.emitf("    %s.sub\n", prefix)
		return nil
	case ast.OpNot:
		if err := g.lowerExpr(e.Operand); err != nil {
			return err
		}
		g.emit("    i32.eqz\n")
		return nil
	case ast.OpBitNot:
		prefix := g.typePrefix(operandType)
		if err := g.lowerExpr(e.Operand); err != nil {
			return err
		}
		g.emitf("    %s.const -1\n    %s.xor\n", prefix, prefix)
		return nil
	}
	return &GenError{Kind: UnsupportedFeature, Line: e.Loc.Line, Col: e.Loc.Col, Context: "unhandled unary operator"}
}

func (g *Generator) lowerCall(e *ast.Expr) error {
	if e.Callee.Kind == ast.MemberAccess {
		return g.lowerMethodCall(e)
	}
	if e.Callee.Kind == ast.Identifier && g.chk.IsLambdaVar(e.Callee.Name) {
		return g.lowerIndirectCall(e)
	}
	for _, arg := range e.Args {
		if err := g.lowerExpr(arg); err != nil {
			return err
		}
	}
	g.emitf("    call $%s\n", e.Callee.Name)
	return nil
}

func (g *Generator) lowerIndirectCall(e *ast.Expr) error {
	for _, arg := range e.Args {
		if err := g.lowerExpr(arg); err != nil {
			return err
		}
	}
	g.emitf("    local.get $%s\n", e.Callee.Name)
	g.emitf("    call_indirect (type $lambda_type_%d)\n", len(e.Args))
	g.lambdaArities[len(e.Args)] = true
	return nil
}

func (g *Generator) lowerMethodCall(e *ast.Expr) error {
	objType, _ := g.chk.ExprType(e.Callee.Object)
	if objType != nil && objType.Tag == types.TagArray {
		return g.lowerArrayMethodCall(e, objType)
	}
	if err := g.lowerExpr(e.Callee.Object); err != nil {
		return err
	}
	for _, arg := range e.Args {
		if err := g.lowerExpr(arg); err != nil {
			return err
		}
	}
	structName := ""
	if objType != nil && objType.Tag == types.TagUserDefined {
		structName = objType.Name
	}
	g.emitf("    call $%s_%s\n", structName, e.Callee.Field)
	return nil
}

// lowerArrayMethodCall inlines the built-in array methods the checker
// validated in checkArrayMethodCall. len is a plain length-word read; push
// and pop mutate the array in place through its identifier receiver.
func (g *Generator) lowerArrayMethodCall(e *ast.Expr, arrType *types.Type) error {
	elem := arrType.Of
	if elem == nil {
		elem = types.Prim(types.I32)
	}
	switch e.Callee.Field {
	case "len":
		if err := g.lowerExpr(e.Callee.Object); err != nil {
			return err
		}
		g.emit("    i32.load\n")
		return nil
	case "push":
		return g.lowerArrayPush(e, elem)
	case "pop":
		return g.lowerArrayPop(e, elem)
	}
	return &GenError{Kind: InvalidCode, Line: e.Loc.Line, Col: e.Loc.Col, Context: "unsupported array method " + e.Callee.Field}
}

// lowerArrayPush appends to an array bound to a local variable. Arrays
// reserve spare capacity (array_literal allocates 2x length) so most
// pushes just bump the length word and write into the reserved slot; once
// that capacity is exhausted it doubles into a fresh block taken off the
// $heap_next runtime global (the compile-time bump allocator can't size a
// block whose length depends on how many times a loop calls push) and
// copies the existing elements across. Requires an identifier receiver so
// the grown array's new address can be written back to it.
func (g *Generator) lowerArrayPush(e *ast.Expr, elem *types.Type) error {
	obj := e.Callee.Object
	if obj.Kind != ast.Identifier {
		return &GenError{Kind: InvalidCode, Line: e.Loc.Line, Col: e.Loc.Col, Context: "push requires an identifier receiver"}
	}
	name := obj.Name

	valLocal := g.freshLocal("push_val", elem)
	if err := g.lowerExpr(e.Args[0]); err != nil {
		return err
	}
	g.emitf("    local.set $%s\n", valLocal)

	oldLen := g.freshLocal("push_len", types.Prim(types.I32))
	oldCap := g.freshLocal("push_cap", types.Prim(types.I32))
	newLen := g.freshLocal("push_new_len", types.Prim(types.I32))
	newCap := g.freshLocal("push_new_cap", types.Prim(types.I32))
	newAddr := g.freshLocal("push_addr", types.Prim(types.I32))
	idx := g.freshLocal("push_idx", types.Prim(types.I32))

	g.emitf("    local.get $%s\n    i32.load\n    local.set $%s\n", name, oldLen)
	g.emitf("    local.get $%s\n    i32.const 4\n    i32.add\n    i32.load\n    local.set $%s\n", name, oldCap)
	g.emitf("    local.get $%s\n    i32.const 1\n    i32.add\n    local.set $%s\n", oldLen, newLen)

	g.emitf("    local.get $%s\n    local.get $%s\n    i32.lt_s\n", oldLen, oldCap)
	g.emit("    (if\n      (then\n")
	g.emitf("        local.get $%s\n        local.set $%s\n", name, newAddr)
	g.emitf("        local.get $%s\n        local.set $%s\n", oldCap, newCap)
	g.emit("      )\n      (else\n")
	g.needsHeapGlobal = true
	g.emitf("        global.get $heap_next\n        local.set $%s\n", newAddr)
	g.emitf("        local.get $%s\n        i32.const 2\n        i32.mul\n        local.set $%s\n", oldCap, newCap)

	brk := g.freshLabel("push_copy_break_")
	cont := g.freshLabel("push_copy_continue_")
	g.emitf("        i32.const 0\n        local.set $%s\n", idx)
	g.emitf("        (block $%s\n          (loop $%s\n", brk, cont)
	g.emitf("            local.get $%s\n            local.get $%s\n            i32.ge_s\n            br_if $%s\n", idx, oldLen, brk)
	g.emitf("            local.get $%s\n            i32.const 8\n            i32.add\n            local.get $%s\n            i32.const 4\n            i32.mul\n            i32.add\n", newAddr, idx)
	g.emitf("            local.get $%s\n            i32.const 8\n            i32.add\n            local.get $%s\n            i32.const 4\n            i32.mul\n            i32.add\n            i32.load\n", name, idx)
	g.emit("            i32.store\n")
	g.emitf("            local.get $%s\n            i32.const 1\n            i32.add\n            local.set $%s\n", idx, idx)
	g.emitf("            br $%s\n          )\n        )\n", cont)

	g.emitf("        local.get $%s\n        i32.const 8\n        i32.add\n        local.get $%s\n        i32.const 4\n        i32.mul\n        i32.add\n        global.set $heap_next\n", newAddr, newCap)
	g.emit("      )\n    )\n")

	// store the header and the pushed value into the (possibly new) block.
	g.emitf("    local.get $%s\n    local.get $%s\n    i32.store\n", newAddr, newLen)
	g.emitf("    local.get $%s\n    i32.const 4\n    i32.add\n    local.get $%s\n    i32.store\n", newAddr, newCap)
	g.emitf("    local.get $%s\n    i32.const 8\n    i32.add\n    local.get $%s\n    i32.const 4\n    i32.mul\n    i32.add\n    local.get $%s\n    i32.store\n", newAddr, oldLen, valLocal)
	g.emitf("    local.get $%s\n    local.set $%s\n", newAddr, name)
	return nil
}

// lowerArrayPop removes and returns the last element, requiring an
// identifier receiver so the decremented length can be written back.
func (g *Generator) lowerArrayPop(e *ast.Expr, elem *types.Type) error {
	obj := e.Callee.Object
	if obj.Kind != ast.Identifier {
		return &GenError{Kind: InvalidCode, Line: e.Loc.Line, Col: e.Loc.Col, Context: "pop requires an identifier receiver"}
	}
	name := obj.Name

	newLen := g.freshLocal("pop_new_len", types.Prim(types.I32))
	g.emitf("    local.get $%s\n    i32.load\n    i32.const 1\n    i32.sub\n    local.set $%s\n", name, newLen)
	g.emitf("    local.get $%s\n    local.get $%s\n    i32.store\n", name, newLen)
	g.emitf("    local.get $%s\n    i32.const 8\n    i32.add\n    local.get $%s\n    i32.const 4\n    i32.mul\n    i32.add\n    i32.load\n", name, newLen)
	return nil
}

func (g *Generator) lowerMemberAccess(e *ast.Expr) error {
	objType, _ := g.chk.ExprType(e.Object)
	if err := g.lowerExpr(e.Object); err != nil {
		return err
	}
	offset := 0
	if objType != nil && objType.Tag == types.TagUserDefined {
		if info, ok := g.chk.Struct(objType.Name); ok {
			for i, name := range info.FieldOrder {
				if name == e.Field {
					offset = i * 4
					break
				}
			}
		}
	}
	if offset != 0 {
		g.emitf("    i32.const %d\n    i32.add\n", offset)
	}
	g.emit("    i32.load\n")
	return nil
}

func (g *Generator) lowerIndexAccess(e *ast.Expr) error {
	if err := g.lowerExpr(e.Array); err != nil {
		return err
	}
	g.emit("    i32.const 8\n    i32.add\n")
	if err := g.lowerExpr(e.Index); err != nil {
		return err
	}
	g.emit("    i32.const 4\n    i32.mul\n    i32.add\n    i32.load\n")
	return nil
}

func (g *Generator) lowerArrayLiteral(e *ast.Expr) error {
	n := len(e.Elements)
	capacity := 2 * n
	if capacity == 0 {
		capacity = 4 // give an empty literal room to push into without an immediate reallocation
	}
	size := 8 + capacity*4
	addr := g.alloc(size)
	g.emitf("    i32.const %d\n    i32.const %d\n    i32.store\n", addr, n)
	g.emitf("    i32.const %d\n    i32.const %d\n    i32.store\n", addr+4, capacity)
	for i, el := range e.Elements {
		g.emitf("    i32.const %d\n", addr+8+i*4)
		if err := g.lowerExpr(el); err != nil {
			return err
		}
		g.emit("    i32.store\n")
	}
	g.emitf("    i32.const %d\n", addr)
	return nil
}

func (g *Generator) lowerStructLiteral(e *ast.Expr) error {
	info, ok := g.chk.Struct(e.TypeName)
	if !ok {
		return &GenError{Kind: InvalidCode, Line: e.Loc.Line, Col: e.Loc.Col, Context: "unknown struct " + e.TypeName}
	}
	addr := g.alloc(len(info.FieldOrder) * 4)
	byName := map[string]*ast.Expr{}
	for _, fi := range e.FieldInits {
		byName[fi.Name] = fi.Value
	}
	for i, fname := range info.FieldOrder {
		g.emitf("    i32.const %d\n", addr+i*4)
		val := byName[fname]
		if val == nil {
			g.emit("    i32.const 0\n")
		} else if err := g.lowerExpr(val); err != nil {
			return err
		}
		g.emit("    i32.store\n")
	}
	g.emitf("    i32.const %d\n", addr)
	return nil
}

func (g *Generator) lowerStringLiteral(s string) error {
	bytes := []byte(s)
	addr := g.alloc(4 + len(bytes))
	g.emitf("    i32.const %d\n    i32.const %d\n    i32.store\n", addr, len(bytes))
	for i, b := range bytes {
		g.emitf("    i32.const %d\n    i32.const %d\n    i32.store8\n", addr+4+i, b)
	}
	g.emitf("    i32.const %d\n", addr)
	return nil
}

// lowerStringInterpolation concatenates every text run and every
// string-typed embedded expression into one freshly allocated buffer at
// codegen time, finishing the placeholder behavior noted in spec.md §9.
// Capacity is a compile-time bound: known text bytes plus a fixed
// per-embedded-expression allowance, since an embedded expression's
// runtime string length isn't known until the copy loop runs.
const interpPerExprBudget = 256

func (g *Generator) lowerStringInterpolation(e *ast.Expr) error {
	knownBytes := 0
	dynParts := 0
	for _, part := range e.Parts {
		if part.Expr == nil {
			knownBytes += len(part.Text)
		} else {
			dynParts++
		}
	}
	capacity := knownBytes + dynParts*interpPerExprBudget
	addr := g.alloc(4 + capacity)

	cursor := g.freshLocal("interp_cursor", types.Prim(types.I32))
	total := g.freshLocal("interp_len", types.Prim(types.I32))
	g.emitf("    i32.const %d\n    local.set $%s\n", addr+4, cursor)
	g.emitf("    i32.const 0\n    local.set $%s\n", total)

	for _, part := range e.Parts {
		if part.Expr == nil {
			for _, b := range []byte(part.Text) {
				g.emitf("    local.get $%s\n    i32.const %d\n    i32.store8\n", cursor, b)
				g.emitf("    local.get $%s\n    i32.const 1\n    i32.add\n    local.set $%s\n", cursor, cursor)
			}
			if len(part.Text) > 0 {
				g.emitf("    local.get $%s\n    i32.const %d\n    i32.add\n    local.set $%s\n", total, len(part.Text), total)
			}
			continue
		}

		partType, _ := g.chk.ExprType(part.Expr)
		if partType == nil || partType.Tag != types.TagPrimitive || partType.Primitive != types.StringPrim {
			return &GenError{Kind: UnsupportedFeature, Line: part.Expr.Loc.Line, Col: part.Expr.Loc.Col, Context: "interpolation of non-string expressions is unsupported"}
		}

		partPtr := g.freshLocal("interp_part", types.Prim(types.I32))
		partLen := g.freshLocal("interp_partlen", types.Prim(types.I32))
		idx := g.freshLocal("interp_i", types.Prim(types.I32))

		if err := g.lowerExpr(part.Expr); err != nil {
			return err
		}
		g.emitf("    local.set $%s\n", partPtr)
		g.emitf("    local.get $%s\n    i32.load\n    local.set $%s\n", partPtr, partLen)

		cont := g.freshLabel("interp_continue_")
		brk := g.freshLabel("interp_break_")
		g.emitf("    i32.const 0\n    local.set $%s\n", idx)
		g.emitf("    (block $%s\n      (loop $%s\n", brk, cont)
		g.emitf("        local.get $%s\n        local.get $%s\n        i32.ge_s\n        br_if $%s\n", idx, partLen, brk)
		g.emitf("        local.get $%s\n        local.get $%s\n        i32.add\n", cursor, idx)
		g.emitf("        local.get $%s\n        i32.const 4\n        i32.add\n        local.get $%s\n        i32.add\n        i32.load8_u\n", partPtr, idx)
		g.emit("        i32.store8\n")
		g.emitf("        local.get $%s\n        i32.const 1\n        i32.add\n        local.set $%s\n", idx, idx)
		g.emitf("        br $%s\n      )\n    )\n", cont)

		g.emitf("    local.get $%s\n    local.get $%s\n    i32.add\n    local.set $%s\n", cursor, partLen, cursor)
		g.emitf("    local.get $%s\n    local.get $%s\n    i32.add\n    local.set $%s\n", total, partLen, total)
	}

	g.emitf("    i32.const %d\n    local.get $%s\n    i32.store\n", addr, total)
	g.emitf("    i32.const %d\n", addr)
	return nil
}

func (g *Generator) lowerMatchExpr(e *ast.Expr) error {
	resultType, _ := g.chk.ExprType(e)
	if err := g.lowerExpr(e.Scrutinee); err != nil {
		return err
	}
	matchVal := g.freshLocal("match_val", func() *types.Type {
		if t, ok := g.chk.ExprType(e.Scrutinee); ok {
			return t
		}
		return types.Prim(types.I32)
	}())
	g.emitf("    local.set $%s\n", matchVal)
	return g.lowerMatchArms(e.Arms, matchVal, resultType, e.Loc)
}

func (g *Generator) lowerMatchArms(arms []ast.MatchArm, matchVal string, resultType *types.Type, loc ast.Location) error {
	if len(arms) == 0 {
		g.emitf("    i32.const 0\n")
		return nil
	}
	arm := arms[0]
	switch arm.Pattern.Kind {
	case ast.PatternWildcard:
		return g.lowerExpr(arm.Body)
	case ast.PatternIdentifier:
		g.addLocal(arm.Pattern.Name, g.localType(matchVal))
		g.emitf("    local.get $%s\n    local.set $%s\n", matchVal, arm.Pattern.Name)
		return g.lowerExpr(arm.Body)
	case ast.PatternLiteral:
		g.emitf("    local.get $%s\n", matchVal)
		if err := g.lowerExpr(arm.Pattern.Literal); err != nil {
			return err
		}
		g.emit("    i32.eq\n")
		wantResult := !isVoid(resultType)
		if wantResult {
			g.emitf("    (if (result %s)\n      (then\n", wasmType(resultType))
		} else {
			g.emit("    (if\n      (then\n")
		}
		if err := g.lowerExpr(arm.Body); err != nil {
			return err
		}
		g.emit("      )\n      (else\n")
		if err := g.lowerMatchArms(arms[1:], matchVal, resultType, loc); err != nil {
			return err
		}
		g.emit("      )\n    )\n")
		return nil
	case ast.PatternVariant:
		return &GenError{Kind: UnsupportedFeature, Line: loc.Line, Col: loc.Col, Context: "enum variant match patterns are not implemented"}
	}
	return &GenError{Kind: InvalidCode, Line: loc.Line, Col: loc.Col, Context: "unknown match pattern"}
}

func (g *Generator) lowerAssign(e *ast.Expr) error {
	switch e.Target.Kind {
	case ast.Identifier:
		if err := g.lowerExpr(e.Value); err != nil {
			return err
		}
		g.emitf("    local.tee $%s\n", e.Target.Name)
		return nil
	case ast.IndexAccess:
		if err := g.lowerExpr(e.Target.Array); err != nil {
			return err
		}
		g.emit("    i32.const 8\n    i32.add\n")
		if err := g.lowerExpr(e.Target.Index); err != nil {
			return err
		}
		g.emit("    i32.const 4\n    i32.mul\n    i32.add\n")
		if err := g.lowerExpr(e.Value); err != nil {
			return err
		}
		g.emit("    i32.store\n")
		return g.lowerExpr(e.Value)
	case ast.MemberAccess:
		objType, _ := g.chk.ExprType(e.Target.Object)
		if err := g.lowerExpr(e.Target.Object); err != nil {
			return err
		}
		if objType != nil && objType.Tag == types.TagUserDefined {
			if info, ok := g.chk.Struct(objType.Name); ok {
				for i, name := range info.FieldOrder {
					if name == e.Target.Field {
						g.emitf("    i32.const %d\n    i32.add\n", i*4)
						break
					}
				}
			}
		}
		if err := g.lowerExpr(e.Value); err != nil {
			return err
		}
		g.emit("    i32.store\n")
		return g.lowerExpr(e.Value)
	}
	return &GenError{Kind: InvalidCode, Line: e.Loc.Line, Col: e.Loc.Col, Context: "invalid assignment target"}
}

func (g *Generator) lowerLambda(e *ast.Expr) error {
	name := fmt.Sprintf("lambda_%d", len(g.lambdas))

	saved := g.out
	savedLocals, savedParams, savedOrder := g.locals, g.paramNames, g.localOrder
	g.out = &strings.Builder{}
	g.locals = map[string]localVar{}
	g.paramNames = map[string]bool{}
	g.localOrder = nil

	for _, p := range e.Params {
		pt := typeExprToRuntime(p.TypeExpr)
		g.locals[p.Name] = localVar{Name: p.Name, Type: pt}
		g.paramNames[p.Name] = true
	}

	if e.BodyExpr != nil {
		if err := g.lowerExpr(e.BodyExpr); err != nil {
			g.out, g.locals, g.paramNames, g.localOrder = saved, savedLocals, savedParams, savedOrder
			return err
		}
		g.emit("    return\n")
	} else if e.BodyBlock != nil {
		for _, stmt := range e.BodyBlock.Stmts {
			if err := g.lowerStmt(stmt); err != nil {
				g.out, g.locals, g.paramNames, g.localOrder = saved, savedLocals, savedParams, savedOrder
				return err
			}
		}
	}
	bodyText := g.out.String()
	localOrder := g.localOrder
	locals := g.locals

	var sb strings.Builder
	sb.WriteString("  (func $" + name)
	for _, p := range e.Params {
		sb.WriteString(fmt.Sprintf(" (param $%s %s)", p.Name, wasmType(locals[p.Name].Type)))
	}
	sb.WriteString(" (result i32)\n")
	for _, n := range localOrder {
		sb.WriteString(fmt.Sprintf("    (local $%s %s)\n", n, wasmType(locals[n].Type)))
	}
	sb.WriteString(bodyText)
	sb.WriteString("  )\n")

	g.out, g.locals, g.paramNames, g.localOrder = saved, savedLocals, savedParams, savedOrder

	g.lambdas = append(g.lambdas, lambdaFunc{Name: name, Arity: len(e.Params), Text: sb.String()})
	g.lambdaArities[len(e.Params)] = true

	g.emitf("    i32.const %d\n", len(g.lambdas)-1)
	return nil
}

// typeExprToRuntime is a light TypeExpr->Type conversion for lambda
// parameter lists, which the checker resolves during CheckModule but
// whose result isn't retained per-parameter; codegen only needs the
// wasm representation (wasmType cares about i64/f64 vs i32), so a
// minimal primitive-aware mapping is enough here.
func typeExprToRuntime(te ast.TypeExpr) *types.Type {
	if te.Kind == ast.TEPrimitive {
		switch te.Name {
		case "i64", "u64":
			return types.Prim(types.I64)
		case "f64":
			return types.Prim(types.F64)
		}
	}
	return types.Prim(types.I32)
}

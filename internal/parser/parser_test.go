package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zigscript-lang/zsc/internal/ast"
)

func parseModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	p := New(src, ast.NewArena())
	mod, err := p.ParseModule("test.zs")
	require.NoError(t, err)
	return mod
}

func TestParseModule_FnDecl(t *testing.T) {
	mod := parseModule(t, `export fn add(a: i32, b: i32) -> i32 { return a + b; }`)
	require.Len(t, mod.Stmts, 1)
	fn := mod.Stmts[0]
	require.Equal(t, ast.FnDecl, fn.Kind)
	require.Equal(t, "add", fn.Name)
	require.True(t, fn.IsExport)
	require.False(t, fn.IsAsync)
	require.Len(t, fn.Params, 2)
	require.Equal(t, "a", fn.Params[0].Name)
	require.Equal(t, ast.TEPrimitive, fn.Params[0].TypeExpr.Kind)
	require.Equal(t, "i32", fn.Params[0].TypeExpr.Name)
	require.NotNil(t, fn.RetType)
	require.Equal(t, "i32", fn.RetType.Name)
	require.Len(t, fn.Body.Stmts, 1)
	ret := fn.Body.Stmts[0]
	require.Equal(t, ast.ReturnStmt, ret.Kind)
	require.Equal(t, ast.Binary, ret.Value.Kind)
	require.Equal(t, ast.OpAdd, ret.Value.BinOp)
}

func TestParseModule_LetDecl(t *testing.T) {
	mod := parseModule(t, `let xs = [10, 20, 30];`)
	require.Len(t, mod.Stmts, 1)
	decl := mod.Stmts[0]
	require.Equal(t, ast.LetDecl, decl.Kind)
	require.Equal(t, "xs", decl.Name)
	require.True(t, decl.IsMutable)
	require.Equal(t, ast.ArrayLiteral, decl.Init.Kind)
	require.Len(t, decl.Init.Elements, 3)
}

func TestParseModule_ConstIsNotMutable(t *testing.T) {
	mod := parseModule(t, `const x: i64 = 5;`)
	decl := mod.Stmts[0]
	require.True(t, decl.IsConst)
	require.False(t, decl.IsMutable)
}

func TestParseModule_ExternFnDecl(t *testing.T) {
	mod := parseModule(t, `extern fn log(msg: string) -> void from "env" "js_console_log";`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.ExternFnDecl, decl.Kind)
	require.Equal(t, "env", decl.HostModule)
	require.Equal(t, "js_console_log", decl.HostName)
}

func TestParseModule_ExportNotAllowedBeforeExternOrLet(t *testing.T) {
	p := New(`export extern fn log(msg: string) from "env" "log";`, ast.NewArena())
	_, err := p.ParseModule("test.zs")
	require.Error(t, err)
	require.True(t, p.HadError())
}

func TestParseModule_StructDeclWithMethod(t *testing.T) {
	mod := parseModule(t, `
struct Point {
	x: i32,
	y: i32,
	fn length(self: Point) -> i32 {
		return self.x + self.y;
	}
}`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.StructDecl, decl.Kind)
	require.Equal(t, "Point", decl.Name)
	require.Len(t, decl.Fields, 2)
	require.Len(t, decl.Methods, 1)
	require.Equal(t, "length", decl.Methods[0].Name)
}

func TestParseModule_EnumDeclWithPayload(t *testing.T) {
	mod := parseModule(t, `
enum Shape {
	Circle(radius: f64),
	Square(side: f64),
	Point,
}`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.EnumDecl, decl.Kind)
	require.Len(t, decl.Variants, 3)
	require.Equal(t, "Circle", decl.Variants[0].Name)
	require.Len(t, decl.Variants[0].Fields, 1)
	require.Len(t, decl.Variants[2].Fields, 0)
}

func TestParseModule_ImportStmt(t *testing.T) {
	mod := parseModule(t, `import { add, Point } from "math";`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.ImportStmt, decl.Kind)
	require.Equal(t, []string{"add", "Point"}, decl.Symbols)
	require.Equal(t, "math", decl.ModulePath)
}

func TestParseModule_IfElseAndBlockDisambiguation(t *testing.T) {
	// cond is a lowercase identifier, so the '{' after it must start the
	// then-block, never be mistaken for a struct literal.
	mod := parseModule(t, `
fn f() -> i32 {
	if cond {
		return 1;
	} else {
		return 2;
	}
}`)
	fn := mod.Stmts[0]
	ifStmt := fn.Body.Stmts[0]
	require.Equal(t, ast.IfStmt, ifStmt.Kind)
	require.Equal(t, ast.Identifier, ifStmt.Cond.Kind)
	require.NotNil(t, ifStmt.Els)
}

func TestParseModule_StructLiteralRequiresUppercase(t *testing.T) {
	mod := parseModule(t, `let p = Point { x: 1, y: 2 };`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.StructLiteral, decl.Init.Kind)
	require.Equal(t, "Point", decl.Init.TypeName)
	require.Len(t, decl.Init.FieldInits, 2)
}

func TestParseModule_MatchExpr(t *testing.T) {
	mod := parseModule(t, `
fn f(x: i32) -> i32 {
	return match x {
		0 => 100,
		n => n,
		_ => -1,
	};
}`)
	fn := mod.Stmts[0]
	ret := fn.Body.Stmts[0]
	m := ret.Value
	require.Equal(t, ast.MatchExpr, m.Kind)
	require.Len(t, m.Arms, 3)
	require.Equal(t, ast.PatternLiteral, m.Arms[0].Pattern.Kind)
	require.Equal(t, ast.PatternIdentifier, m.Arms[1].Pattern.Kind)
	require.Equal(t, ast.PatternWildcard, m.Arms[2].Pattern.Kind)
}

func TestParseModule_LambdaAndCall(t *testing.T) {
	mod := parseModule(t, `let f = fn(x: i32) => x * 2; let r = f(21);`)
	letF := mod.Stmts[0]
	require.Equal(t, ast.Lambda, letF.Init.Kind)
	require.Len(t, letF.Init.Params, 1)
	require.NotNil(t, letF.Init.BodyExpr)
	require.Nil(t, letF.Init.BodyBlock)

	letR := mod.Stmts[1]
	require.Equal(t, ast.Call, letR.Init.Kind)
	require.Equal(t, "f", letR.Init.Callee.Name)
}

func TestParseModule_AwaitExpr(t *testing.T) {
	mod := parseModule(t, `
async fn fetchIt(u: string) -> string {
	let r = await fetch(u);
	return r;
}`)
	fn := mod.Stmts[0]
	require.True(t, fn.IsAsync)
	letR := fn.Body.Stmts[0]
	require.Equal(t, ast.AwaitExpr, letR.Init.Kind)
}

func TestParseModule_TryExpr(t *testing.T) {
	mod := parseModule(t, `fn f() -> i32 { return mayFail()?; }`)
	fn := mod.Stmts[0]
	ret := fn.Body.Stmts[0]
	require.Equal(t, ast.TryExpr, ret.Value.Kind)
}

func TestParseModule_StringInterpolation(t *testing.T) {
	mod := parseModule(t, `let s = "hello {name}, you are {age + 1}";`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.StringInterpolation, decl.Init.Kind)
	require.Len(t, decl.Init.Parts, 4)
	require.Equal(t, "hello ", decl.Init.Parts[0].Text)
	require.Equal(t, "name", decl.Init.Parts[1].Expr.Name)
	require.Equal(t, ", you are ", decl.Init.Parts[2].Text)
	require.Equal(t, ast.Binary, decl.Init.Parts[3].Expr.Kind)
}

func TestParseModule_BitwiseOperatorsParse(t *testing.T) {
	mod := parseModule(t, `let x = a & b | c ^ d;`)
	decl := mod.Stmts[0]
	require.Equal(t, ast.Binary, decl.Init.Kind)
}

func TestParseModule_AssignmentTargets(t *testing.T) {
	mod := parseModule(t, `
fn f() -> void {
	x = 1;
	arr[0] = 2;
	obj.field = 3;
}`)
	fn := mod.Stmts[0]
	for i, want := range []ast.ExprKind{ast.Identifier, ast.IndexAccess, ast.MemberAccess} {
		assign := fn.Body.Stmts[i].Expr
		require.Equal(t, ast.AssignExpr, assign.Kind)
		require.Equal(t, want, assign.Target.Kind)
	}
}

func TestParseModule_SyntaxErrorRecovery(t *testing.T) {
	// The first statement is malformed; the parser must still recover and
	// parse the well-formed second one, accumulating both in mod.Stmts.
	p := New(`let = ; fn ok() -> i32 { return 1; }`, ast.NewArena())
	mod, err := p.ParseModule("test.zs")
	require.Error(t, err)
	require.True(t, p.HadError())
	require.NotEmpty(t, p.Errors())
	found := false
	for _, s := range mod.Stmts {
		if s.Kind == ast.FnDecl && s.Name == "ok" {
			found = true
		}
	}
	require.True(t, found, "parser should recover and still parse the trailing fn decl")
}

// TestParserDeterminism checks spec.md §8's "parser determinism" invariant:
// parsing the same source twice yields structurally identical ASTs.
func TestParserDeterminism(t *testing.T) {
	src := `export fn add(a: i32, b: i32) -> i32 { return a + b; }`
	mod1 := parseModule(t, src)
	mod2 := parseModule(t, src)
	require.Equal(t, len(mod1.Stmts), len(mod2.Stmts))
	require.Equal(t, mod1.Stmts[0].Name, mod2.Stmts[0].Name)
	require.Equal(t, mod1.Stmts[0].Params, mod2.Stmts[0].Params)
}

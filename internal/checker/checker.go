// Package checker implements name-, scope-, and type-checking for a parsed
// Module, per spec.md §4.4. It walks the AST twice: once to collect every
// top-level declaration (enabling forward references), once to validate
// every statement and expression against a scope stack.
package checker

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zigscript-lang/zsc/internal/ast"
	"github.com/zigscript-lang/zsc/internal/resolver"
	"github.com/zigscript-lang/zsc/internal/types"
)

// FuncSig is a function's checked signature: parameter types in order,
// return type, and whether it is declared async.
type FuncSig struct {
	Params  []*types.Type
	Ret     *types.Type
	IsAsync bool
}

// Binding is a scoped variable entry: its type and whether it may be
// reassigned.
type Binding struct {
	Type    *types.Type
	Mutable bool
}

type scope map[string]Binding

// StructInfo carries a struct's field order/types (for codegen's
// offset-by-index layout) and its methods.
type StructInfo struct {
	FieldOrder []string
	FieldTypes map[string]*types.Type
	Methods    map[string]FuncSig
}

// EnumInfo carries an enum's declared variants.
type EnumInfo struct {
	Variants map[string]*ast.EnumVariant
}

// Checker walks a Module (or a whole import graph) and builds the symbol
// tables of spec.md §3: a scope stack plus two flat tables (user-defined
// types, function signatures) shared across the whole compilation.
type Checker struct {
	scopes []scope

	userTypes map[string]bool // name -> declared (struct or enum)
	structs   map[string]*StructInfo
	enums     map[string]*EnumInfo
	funcs     map[string]FuncSig

	exprTypes map[*ast.Expr]*types.Type
	lambdaFns map[string]bool // identifiers bound to a lambda value, for codegen's call_indirect dispatch

	curRet *types.Type // declared return type of the body being checked; nil when unknown

	log *logrus.Entry

	errors []error
}

// New constructs an empty Checker. Call CheckModule or
// CheckModuleWithImports exactly once per compilation.
func New(log *logrus.Entry) *Checker {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Checker{
		userTypes: map[string]bool{},
		structs:   map[string]*StructInfo{},
		enums:     map[string]*EnumInfo{},
		funcs:     map[string]FuncSig{},
		exprTypes: map[*ast.Expr]*types.Type{},
		lambdaFns: map[string]bool{},
		log:       log,
	}
}

// ExprType returns the type inferred for e, if checking reached it.
func (c *Checker) ExprType(e *ast.Expr) (*types.Type, bool) {
	t, ok := c.exprTypes[e]
	return t, ok
}

// FuncSignature returns the checked signature for a declared function.
func (c *Checker) FuncSignature(name string) (FuncSig, bool) {
	sig, ok := c.funcs[name]
	return sig, ok
}

// Struct returns field/method info for a declared struct type.
func (c *Checker) Struct(name string) (*StructInfo, bool) {
	s, ok := c.structs[name]
	return s, ok
}

// Enum returns variant info for a declared enum type.
func (c *Checker) Enum(name string) (*EnumInfo, bool) {
	e, ok := c.enums[name]
	return e, ok
}

// IsLambdaVar reports whether name is a variable bound to a lambda value,
// used by codegen to decide between a direct call and call_indirect.
func (c *Checker) IsLambdaVar(name string) bool { return c.lambdaFns[name] }

func (c *Checker) pushScope()   { c.scopes = append(c.scopes, scope{}) }
func (c *Checker) popScope()    { c.scopes = c.scopes[:len(c.scopes)-1] }
func (c *Checker) top() scope   { return c.scopes[len(c.scopes)-1] }

func (c *Checker) define(name string, b Binding) {
	c.top()[name] = b
}

func (c *Checker) lookup(name string) (Binding, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if b, ok := c.scopes[i][name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

func (c *Checker) fail(kind ErrorKind, loc ast.Location, context string) error {
	err := &CheckError{Kind: kind, Line: loc.Line, Col: loc.Col, Context: context}
	c.errors = append(c.errors, err)
	return err
}

// CheckModule type-checks root with no imports. Equivalent to
// CheckModuleWithImports(root, nil).
func (c *Checker) CheckModule(root *ast.Module) error {
	return c.CheckModuleWithImports(root, nil)
}

// CheckModuleWithImports first injects every requested imported symbol
// into the flat tables (spec.md §4.4), then runs the two-pass check.
func (c *Checker) CheckModuleWithImports(root *ast.Module, res *resolver.Resolver) error {
	if res != nil {
		c.injectImports(root, res)
	}

	c.collectDeclarations(root.Stmts)

	c.pushScope()
	defer c.popScope()
	for _, stmt := range root.Stmts {
		if stmt.Kind == ast.ImportStmt {
			continue
		}
		if err := c.checkStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// injectImports resolves each import_stmt's module and adds the requested
// symbols to the checker's flat tables, logging (not failing) on a missing
// symbol, per spec.md §8 scenario 6.
func (c *Checker) injectImports(root *ast.Module, res *resolver.Resolver) {
	for _, stmt := range root.Stmts {
		if stmt.Kind != ast.ImportStmt {
			continue
		}
		for _, sym := range stmt.Symbols {
			export, ok := res.GetExport(stmt.ModulePath, sym)
			if !ok {
				c.log.WithField("module", stmt.ModulePath).Warnf("imported symbol %q not found", sym)
				continue
			}
			if export.Decl == nil {
				// built-in virtual module symbol: register as an opaque function.
				c.funcs[sym] = FuncSig{Ret: types.Prim(types.Void)}
				continue
			}
			c.collectDecl(export.Decl)
		}
	}
}

// collectDeclarations is pass 1: register every top-level struct/enum name
// first (so signatures below can reference them), then every signature.
func (c *Checker) collectDeclarations(stmts []*ast.Stmt) {
	for _, s := range stmts {
		if s.Kind == ast.StructDecl || s.Kind == ast.EnumDecl {
			c.userTypes[s.Name] = true
		}
	}
	for _, s := range stmts {
		c.collectDecl(s)
	}
}

func (c *Checker) collectDecl(s *ast.Stmt) {
	switch s.Kind {
	case ast.FnDecl, ast.ExternFnDecl:
		c.funcs[s.Name] = c.resolveFuncSig(s.Params, s.RetType, s.IsAsync)
	case ast.StructDecl:
		c.userTypes[s.Name] = true
		info := &StructInfo{FieldTypes: map[string]*types.Type{}, Methods: map[string]FuncSig{}}
		for _, f := range s.Fields {
			t, err := c.resolveTypeExpr(f.TypeExpr)
			if err != nil {
				t = types.Prim(types.Void)
			}
			info.FieldOrder = append(info.FieldOrder, f.Name)
			info.FieldTypes[f.Name] = t
		}
		for _, m := range s.Methods {
			info.Methods[m.Name] = c.resolveFuncSig(m.Params, m.RetType, m.IsAsync)
			c.funcs[s.Name+"_"+m.Name] = info.Methods[m.Name]
		}
		c.structs[s.Name] = info
	case ast.EnumDecl:
		c.userTypes[s.Name] = true
		info := &EnumInfo{Variants: map[string]*ast.EnumVariant{}}
		for i := range s.Variants {
			info.Variants[s.Variants[i].Name] = &s.Variants[i]
		}
		c.enums[s.Name] = info
	}
}

func (c *Checker) resolveFuncSig(params []ast.Param, ret *ast.TypeExpr, isAsync bool) FuncSig {
	sig := FuncSig{IsAsync: isAsync, Ret: types.Prim(types.Void)}
	for _, p := range params {
		t, err := c.resolveTypeExpr(p.TypeExpr)
		if err != nil {
			t = types.Prim(types.Void)
		}
		sig.Params = append(sig.Params, t)
	}
	if ret != nil {
		if t, err := c.resolveTypeExpr(*ret); err == nil {
			sig.Ret = t
		}
	}
	return sig
}

// resolveTypeExpr converts a parsed TypeExpr into a checked *types.Type.
func (c *Checker) resolveTypeExpr(te ast.TypeExpr) (*types.Type, error) {
	switch te.Kind {
	case ast.TEPrimitive:
		p, ok := primitiveByName(te.Name)
		if !ok {
			return nil, c.fail(UndefinedType, te.Loc, te.Name)
		}
		return types.Prim(p), nil
	case ast.TEOptional:
		inner, err := c.resolveTypeExpr(*te.Of)
		if err != nil {
			return nil, err
		}
		return types.Optional(inner), nil
	case ast.TEResult:
		ok, err := c.resolveTypeExpr(*te.Ok)
		if err != nil {
			return nil, err
		}
		errT, err := c.resolveTypeExpr(*te.Err)
		if err != nil {
			return nil, err
		}
		return types.Result(ok, errT), nil
	case ast.TEPromise:
		inner, err := c.resolveTypeExpr(*te.Of)
		if err != nil {
			return nil, err
		}
		return types.Promise(inner), nil
	case ast.TEArray:
		inner, err := c.resolveTypeExpr(*te.Of)
		if err != nil {
			return nil, err
		}
		return types.Array(inner), nil
	case ast.TEMap:
		key, err := c.resolveTypeExpr(*te.Key)
		if err != nil {
			return nil, err
		}
		val, err := c.resolveTypeExpr(*te.Value)
		if err != nil {
			return nil, err
		}
		return types.Map(key, val), nil
	case ast.TEFunction:
		var params []*types.Type
		for _, p := range te.Params {
			t, err := c.resolveTypeExpr(p)
			if err != nil {
				return nil, err
			}
			params = append(params, t)
		}
		ret := types.Prim(types.Void)
		if te.Ret != nil {
			t, err := c.resolveTypeExpr(*te.Ret)
			if err != nil {
				return nil, err
			}
			ret = t
		}
		return types.Function(params, ret, false), nil
	case ast.TEName:
		if c.userTypes[te.Name] {
			return types.UserDefined(te.Name), nil
		}
		return nil, c.fail(UndefinedType, te.Loc, te.Name)
	}
	return nil, c.fail(UndefinedType, te.Loc, te.Name)
}

func primitiveByName(name string) (types.Primitive, bool) {
	switch name {
	case "void":
		return types.Void, true
	case "bool":
		return types.Bool, true
	case "i32":
		return types.I32, true
	case "i64":
		return types.I64, true
	case "u32":
		return types.U32, true
	case "u64":
		return types.U64, true
	case "f64":
		return types.F64, true
	case "string":
		return types.StringPrim, true
	case "bytes":
		return types.Bytes, true
	}
	return 0, false
}

// --- pass 2: statement checking ---

func (c *Checker) checkStmt(s *ast.Stmt) error {
	switch s.Kind {
	case ast.ExprStmt:
		_, err := c.checkExpr(s.Expr)
		return err
	case ast.LetDecl:
		return c.checkLetDecl(s)
	case ast.FnDecl:
		return c.checkFnBody(s, s.Name)
	case ast.ExternFnDecl:
		return nil // no body to check
	case ast.StructDecl:
		for _, m := range s.Methods {
			if err := c.checkFnBody(m, s.Name+"_"+m.Name); err != nil {
				return err
			}
		}
		return nil
	case ast.EnumDecl:
		return nil
	case ast.ReturnStmt:
		if s.Value != nil {
			t, err := c.checkExprExpected(s.Value, c.curRet)
			if err != nil {
				return err
			}
			if c.curRet != nil && t != nil && !types.Equal(t, c.curRet) {
				return c.fail(TypeMismatch, s.Loc, fmt.Sprintf("cannot return %s from a function returning %s", t, c.curRet))
			}
		}
		return nil
	case ast.IfStmt:
		if _, err := c.checkExpr(s.Cond); err != nil {
			return err
		}
		if err := c.checkBlock(s.Then); err != nil {
			return err
		}
		if s.Els != nil {
			return c.checkStmt(s.Els)
		}
		return nil
	case ast.Block:
		return c.checkBlock(s)
	case ast.ImportStmt:
		return nil
	case ast.ForStmt:
		return c.checkForStmt(s)
	case ast.WhileStmt:
		if _, err := c.checkExpr(s.Cond); err != nil {
			return err
		}
		return c.checkBlock(s.Then)
	case ast.BreakStmt, ast.ContinueStmt:
		return nil
	}
	return nil
}

func (c *Checker) checkBlock(b *ast.Stmt) error {
	c.pushScope()
	defer c.popScope()
	for _, s := range b.Stmts {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkLetDecl(s *ast.Stmt) error {
	var expected *types.Type
	if s.TypeAnn != nil {
		t, err := c.resolveTypeExpr(*s.TypeAnn)
		if err != nil {
			return err
		}
		expected = t
	}
	var actual *types.Type
	if s.Init != nil {
		t, err := c.checkExprExpected(s.Init, expected)
		if err != nil {
			return err
		}
		actual = t
	}
	declared := expected
	if declared == nil {
		declared = actual
	}
	if expected != nil && actual != nil && !types.Equal(expected, actual) {
		return c.fail(TypeMismatch, s.Loc, fmt.Sprintf("cannot assign %s to %s", actual, expected))
	}
	if declared == nil {
		declared = types.Prim(types.Void)
	}
	c.define(s.Name, Binding{Type: declared, Mutable: s.IsMutable})
	if s.Init != nil && s.Init.Kind == ast.Lambda {
		c.lambdaFns[s.Name] = true
	}
	return nil
}

func (c *Checker) checkFnBody(s *ast.Stmt, sigName string) error {
	if s.Body == nil {
		return nil
	}
	sig := c.funcs[sigName]
	prevRet := c.curRet
	c.curRet = sig.Ret
	defer func() { c.curRet = prevRet }()
	c.pushScope()
	defer c.popScope()
	for i, p := range s.Params {
		t := types.Prim(types.Void)
		if i < len(sig.Params) {
			t = sig.Params[i]
		}
		c.define(p.Name, Binding{Type: t, Mutable: true})
	}
	for _, stmt := range s.Body.Stmts {
		if err := c.checkStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkForStmt(s *ast.Stmt) error {
	iterType, err := c.checkExpr(s.Iterable)
	if err != nil {
		return err
	}
	var elemType *types.Type
	if iterType != nil && iterType.Tag == types.TagArray {
		elemType = iterType.Of
	} else {
		return c.fail(InvalidOperation, s.Loc, fmt.Sprintf("cannot iterate over %s", iterType))
	}
	c.pushScope()
	defer c.popScope()
	c.define(s.IterName, Binding{Type: elemType, Mutable: true})
	return c.checkBlock(s.Then)
}

// --- pass 2: expression checking ---

func (c *Checker) checkExpr(e *ast.Expr) (*types.Type, error) {
	return c.checkExprExpected(e, nil)
}

func (c *Checker) checkExprExpected(e *ast.Expr, expected *types.Type) (*types.Type, error) {
	t, err := c.checkExprExpectedInner(e, expected)
	if err == nil {
		c.exprTypes[e] = t
	}
	return t, err
}

func (c *Checker) checkExprExpectedInner(e *ast.Expr, expected *types.Type) (*types.Type, error) {
	switch e.Kind {
	case ast.IntLiteral:
		if expected != nil && expected.Tag == types.TagPrimitive && expected.Primitive == types.I64 {
			return types.Prim(types.I64), nil
		}
		return types.Prim(types.I32), nil
	case ast.FloatLiteral:
		return types.Prim(types.F64), nil
	case ast.StringLiteral:
		return types.Prim(types.StringPrim), nil
	case ast.BoolLiteral:
		return types.Prim(types.Bool), nil
	case ast.StringInterpolation:
		for _, part := range e.Parts {
			if part.Expr != nil {
				if _, err := c.checkExpr(part.Expr); err != nil {
					return nil, err
				}
			}
		}
		return types.Prim(types.StringPrim), nil
	case ast.Identifier:
		b, ok := c.lookup(e.Name)
		if !ok {
			return nil, c.fail(UndefinedVariable, e.Loc, e.Name)
		}
		return b.Type, nil
	case ast.Binary:
		return c.checkBinary(e)
	case ast.Unary:
		return c.checkUnary(e)
	case ast.Call:
		return c.checkCall(e)
	case ast.MemberAccess:
		return c.checkMemberAccess(e)
	case ast.IndexAccess:
		return c.checkIndexAccess(e)
	case ast.ArrayLiteral:
		return c.checkArrayLiteral(e)
	case ast.StructLiteral:
		return c.checkStructLiteral(e)
	case ast.AwaitExpr:
		inner, err := c.checkExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		if inner == nil || inner.Tag != types.TagPromise {
			return nil, c.fail(TypeMismatch, e.Loc, "await requires a promise")
		}
		return inner.Of, nil
	case ast.TryExpr:
		inner, err := c.checkExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		if inner == nil || inner.Tag != types.TagResult {
			return nil, c.fail(TypeMismatch, e.Loc, "? requires a result")
		}
		return inner.Ok, nil
	case ast.MatchExpr:
		return c.checkMatchExpr(e)
	case ast.AssignExpr:
		return c.checkAssign(e)
	case ast.Lambda:
		return c.checkLambda(e)
	}
	return types.Prim(types.Void), nil
}

func (c *Checker) checkBinary(e *ast.Expr) (*types.Type, error) {
	switch e.BinOp {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		left, err := c.checkExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.checkExprExpected(e.Right, left)
		if err != nil {
			return nil, err
		}
		if !types.IsNumeric(left) || !types.IsNumeric(right) {
			return nil, c.fail(InvalidOperation, e.Loc, "arithmetic requires numeric operands")
		}
		return left, nil
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		left, err := c.checkExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.checkExprExpected(e.Right, left)
		if err != nil {
			return nil, err
		}
		if !types.IsInteger(left) || !types.IsInteger(right) {
			return nil, c.fail(InvalidOperation, e.Loc, "bitwise operators require integer operands")
		}
		return left, nil
	case ast.OpEq, ast.OpNotEq:
		left, err := c.checkExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.checkExprExpected(e.Right, left)
		if err != nil {
			return nil, err
		}
		if !types.Equal(left, right) {
			return nil, c.fail(TypeMismatch, e.Loc, "equality requires matching operand types")
		}
		return types.Prim(types.Bool), nil
	case ast.OpLess, ast.OpLessEq, ast.OpGreater, ast.OpGreaterEq:
		left, err := c.checkExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.checkExprExpected(e.Right, left)
		if err != nil {
			return nil, err
		}
		if !types.Equal(left, right) {
			return nil, c.fail(TypeMismatch, e.Loc, "comparison requires matching operand types")
		}
		return types.Prim(types.Bool), nil
	case ast.OpAnd, ast.OpOr:
		left, err := c.checkExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.checkExpr(e.Right)
		if err != nil {
			return nil, err
		}
		if !isBool(left) || !isBool(right) {
			return nil, c.fail(InvalidOperation, e.Loc, "logical operators require bool operands")
		}
		return types.Prim(types.Bool), nil
	case ast.OpNullCoalesce:
		left, err := c.checkExpr(e.Left)
		if err != nil {
			return nil, err
		}
		if left == nil || left.Tag != types.TagOptional {
			return nil, c.fail(InvalidOperation, e.Loc, "?? requires an optional left operand")
		}
		if _, err := c.checkExprExpected(e.Right, left.Of); err != nil {
			return nil, err
		}
		return left.Of, nil
	}
	return nil, c.fail(InvalidOperation, e.Loc, "unknown binary operator")
}

func isBool(t *types.Type) bool {
	return t != nil && t.Tag == types.TagPrimitive && t.Primitive == types.Bool
}

func (c *Checker) checkUnary(e *ast.Expr) (*types.Type, error) {
	operand, err := c.checkExpr(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.UnOp {
	case ast.OpNeg:
		if !types.IsNumeric(operand) {
			return nil, c.fail(InvalidOperation, e.Loc, "unary - requires a numeric operand")
		}
		return operand, nil
	case ast.OpNot:
		if !isBool(operand) {
			return nil, c.fail(InvalidOperation, e.Loc, "unary ! requires a bool operand")
		}
		return types.Prim(types.Bool), nil
	case ast.OpBitNot:
		if !types.IsInteger(operand) {
			return nil, c.fail(InvalidOperation, e.Loc, "unary ~ requires an integer operand")
		}
		return operand, nil
	}
	return operand, nil
}

func (c *Checker) checkCall(e *ast.Expr) (*types.Type, error) {
	// method call: obj.method(args)
	if e.Callee.Kind == ast.MemberAccess {
		return c.checkMethodCall(e)
	}
	if e.Callee.Kind != ast.Identifier {
		return nil, c.fail(InvalidOperation, e.Loc, "call target must be a function")
	}
	name := e.Callee.Name
	if b, ok := c.lookup(name); ok && b.Type != nil && b.Type.Tag == types.TagFunction {
		return c.checkArgsAgainst(e, b.Type.Params, b.Type.Ret, b.Type.IsAsync)
	}
	sig, ok := c.funcs[name]
	if !ok {
		return nil, c.fail(UndefinedFunction, e.Loc, name)
	}
	return c.checkArgsAgainst(e, sig.Params, sig.Ret, sig.IsAsync)
}

func (c *Checker) checkMethodCall(e *ast.Expr) (*types.Type, error) {
	obj := e.Callee.Object
	objType, err := c.checkExpr(obj)
	if err != nil {
		return nil, err
	}
	if objType != nil && objType.Tag == types.TagArray {
		return c.checkArrayMethodCall(e, objType)
	}
	if objType == nil || objType.Tag != types.TagUserDefined {
		return nil, c.fail(InvalidOperation, e.Loc, "method call requires a struct receiver")
	}
	info, ok := c.structs[objType.Name]
	if !ok {
		return nil, c.fail(UndefinedType, e.Loc, objType.Name)
	}
	sig, ok := info.Methods[e.Callee.Field]
	if !ok {
		return nil, c.fail(UndefinedFunction, e.Loc, objType.Name+"."+e.Callee.Field)
	}
	params := sig.Params
	if len(params) > 0 {
		params = params[1:] // the receiver fills the implicit self parameter
	}
	return c.checkArgsAgainst(e, params, sig.Ret, sig.IsAsync)
}

// checkArrayMethodCall type-checks the built-in array methods of spec.md
// §4.5. len/push/pop lower to inlined memory sequences in codegen; map,
// filter, and reduce need a data-dependent output size and per-element
// lambda dispatch that the compile-time bump allocator can't back, so they
// are rejected here rather than half-implemented (see DESIGN.md).
func (c *Checker) checkArrayMethodCall(e *ast.Expr, arrType *types.Type) (*types.Type, error) {
	elem := arrType.Of
	switch e.Callee.Field {
	case "len":
		if len(e.Args) != 0 {
			return nil, c.fail(WrongNumberOfArguments, e.Loc, fmt.Sprintf("len expects 0 arguments, got %d", len(e.Args)))
		}
		return types.Prim(types.I32), nil
	case "push":
		if len(e.Args) != 1 {
			return nil, c.fail(WrongNumberOfArguments, e.Loc, fmt.Sprintf("push expects 1 argument, got %d", len(e.Args)))
		}
		argType, err := c.checkExprExpected(e.Args[0], elem)
		if err != nil {
			return nil, err
		}
		if !types.Equal(argType, elem) {
			return nil, c.fail(TypeMismatch, e.Args[0].Loc, fmt.Sprintf("push: cannot use %s as %s", argType, elem))
		}
		return types.Prim(types.Void), nil
	case "pop":
		if len(e.Args) != 0 {
			return nil, c.fail(WrongNumberOfArguments, e.Loc, fmt.Sprintf("pop expects 0 arguments, got %d", len(e.Args)))
		}
		return elem, nil
	case "map", "filter", "reduce":
		return nil, c.fail(InvalidOperation, e.Loc, "array."+e.Callee.Field+"() is not supported by this compiler")
	}
	return nil, c.fail(UndefinedFunction, e.Loc, "array."+e.Callee.Field)
}

func (c *Checker) checkArgsAgainst(e *ast.Expr, params []*types.Type, ret *types.Type, isAsync bool) (*types.Type, error) {
	if len(e.Args) != len(params) {
		return nil, c.fail(WrongNumberOfArguments, e.Loc, fmt.Sprintf("expected %d, got %d", len(params), len(e.Args)))
	}
	for i, arg := range e.Args {
		argType, err := c.checkExprExpected(arg, params[i])
		if err != nil {
			return nil, err
		}
		if !types.Equal(argType, params[i]) {
			return nil, c.fail(TypeMismatch, arg.Loc, fmt.Sprintf("argument %d: cannot use %s as %s", i, argType, params[i]))
		}
	}
	if isAsync {
		return types.Promise(ret), nil
	}
	return ret, nil
}

func (c *Checker) checkMemberAccess(e *ast.Expr) (*types.Type, error) {
	objType, err := c.checkExpr(e.Object)
	if err != nil {
		return nil, err
	}
	if objType == nil || objType.Tag != types.TagUserDefined {
		return nil, c.fail(InvalidOperation, e.Loc, "member access requires a struct value")
	}
	info, ok := c.structs[objType.Name]
	if !ok {
		return nil, c.fail(UndefinedType, e.Loc, objType.Name)
	}
	fieldType, ok := info.FieldTypes[e.Field]
	if !ok {
		return nil, c.fail(InvalidOperation, e.Loc, fmt.Sprintf("%s has no field %s", objType.Name, e.Field))
	}
	return fieldType, nil
}

func (c *Checker) checkIndexAccess(e *ast.Expr) (*types.Type, error) {
	arrType, err := c.checkExpr(e.Array)
	if err != nil {
		return nil, err
	}
	if _, err := c.checkExpr(e.Index); err != nil {
		return nil, err
	}
	if arrType == nil || arrType.Tag != types.TagArray {
		return nil, c.fail(InvalidOperation, e.Loc, "index access requires an array value")
	}
	return arrType.Of, nil
}

func (c *Checker) checkArrayLiteral(e *ast.Expr) (*types.Type, error) {
	if len(e.Elements) == 0 {
		return types.Array(types.Prim(types.Void)), nil
	}
	first, err := c.checkExpr(e.Elements[0])
	if err != nil {
		return nil, err
	}
	for _, el := range e.Elements[1:] {
		t, err := c.checkExprExpected(el, first)
		if err != nil {
			return nil, err
		}
		if !types.Equal(t, first) {
			return nil, c.fail(TypeMismatch, el.Loc, "array elements must share a type")
		}
	}
	return types.Array(first), nil
}

func (c *Checker) checkStructLiteral(e *ast.Expr) (*types.Type, error) {
	info, ok := c.structs[e.TypeName]
	if !ok {
		return nil, c.fail(UndefinedType, e.Loc, e.TypeName)
	}
	for _, init := range e.FieldInits {
		want, ok := info.FieldTypes[init.Name]
		if !ok {
			return nil, c.fail(InvalidOperation, e.Loc, fmt.Sprintf("%s has no field %s", e.TypeName, init.Name))
		}
		got, err := c.checkExprExpected(init.Value, want)
		if err != nil {
			return nil, err
		}
		if !types.Equal(got, want) {
			return nil, c.fail(TypeMismatch, init.Value.Loc, fmt.Sprintf("field %s: cannot use %s as %s", init.Name, got, want))
		}
	}
	return types.UserDefined(e.TypeName), nil
}

func (c *Checker) checkMatchExpr(e *ast.Expr) (*types.Type, error) {
	if _, err := c.checkExpr(e.Scrutinee); err != nil {
		return nil, err
	}
	var result *types.Type
	for i := range e.Arms {
		arm := &e.Arms[i]
		c.pushScope()
		if arm.Pattern.Kind == ast.PatternIdentifier {
			scrutTy, _ := c.ExprType(e.Scrutinee)
			c.define(arm.Pattern.Name, Binding{Type: scrutTy, Mutable: false})
		}
		if arm.Pattern.Kind == ast.PatternVariant && arm.Pattern.PayloadVar != "" {
			c.define(arm.Pattern.PayloadVar, Binding{Type: types.Prim(types.Void), Mutable: false})
		}
		bodyType, err := c.checkExpr(arm.Body)
		c.popScope()
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = bodyType
		} else if !types.Equal(result, bodyType) {
			return nil, c.fail(TypeMismatch, arm.Body.Loc, "match arms must share a type")
		}
	}
	if result == nil {
		result = types.Prim(types.Void)
	}
	return result, nil
}

func (c *Checker) checkAssign(e *ast.Expr) (*types.Type, error) {
	switch e.Target.Kind {
	case ast.Identifier:
		b, ok := c.lookup(e.Target.Name)
		if !ok {
			return nil, c.fail(UndefinedVariable, e.Target.Loc, e.Target.Name)
		}
		if !b.Mutable {
			return nil, c.fail(InvalidOperation, e.Loc, "cannot assign to an immutable binding")
		}
		val, err := c.checkExprExpected(e.Value, b.Type)
		if err != nil {
			return nil, err
		}
		if !types.Equal(val, b.Type) {
			return nil, c.fail(TypeMismatch, e.Loc, fmt.Sprintf("cannot assign %s to %s", val, b.Type))
		}
		c.exprTypes[e.Target] = b.Type
		return b.Type, nil
	case ast.IndexAccess:
		elemType, err := c.checkExpr(e.Target)
		if err != nil {
			return nil, err
		}
		val, err := c.checkExprExpected(e.Value, elemType)
		if err != nil {
			return nil, err
		}
		if !types.Equal(val, elemType) {
			return nil, c.fail(TypeMismatch, e.Loc, "array element assignment type mismatch")
		}
		return elemType, nil
	case ast.MemberAccess:
		fieldType, err := c.checkExpr(e.Target)
		if err != nil {
			return nil, err
		}
		val, err := c.checkExprExpected(e.Value, fieldType)
		if err != nil {
			return nil, err
		}
		if !types.Equal(val, fieldType) {
			return nil, c.fail(TypeMismatch, e.Loc, "struct field assignment type mismatch")
		}
		return fieldType, nil
	}
	return nil, c.fail(InvalidOperation, e.Loc, "invalid assignment target")
}

func (c *Checker) checkLambda(e *ast.Expr) (*types.Type, error) {
	c.pushScope()
	defer c.popScope()
	var params []*types.Type
	for _, p := range e.Params {
		t, err := c.resolveTypeExpr(p.TypeExpr)
		if err != nil {
			return nil, err
		}
		c.define(p.Name, Binding{Type: t, Mutable: true})
		params = append(params, t)
	}
	var ret *types.Type
	if e.RetType != nil {
		t, err := c.resolveTypeExpr(*e.RetType)
		if err != nil {
			return nil, err
		}
		ret = t
	}
	if e.BodyExpr != nil {
		bodyType, err := c.checkExprExpected(e.BodyExpr, ret)
		if err != nil {
			return nil, err
		}
		if ret == nil {
			ret = bodyType
		}
	} else if e.BodyBlock != nil {
		prevRet := c.curRet
		c.curRet = ret
		defer func() { c.curRet = prevRet }()
		for _, s := range e.BodyBlock.Stmts {
			if err := c.checkStmt(s); err != nil {
				return nil, err
			}
		}
		if ret == nil {
			ret = types.Prim(types.Void)
		}
	}
	return types.Function(params, ret, false), nil
}

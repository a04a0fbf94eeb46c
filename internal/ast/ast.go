// Package ast defines the algebraic node types produced by internal/parser
// and consumed by internal/checker and internal/codegen. Every node is
// allocated from an *Arena tied to one compilation; nodes never outlive
// their source buffer, since identifiers and string literals are views
// into it.
package ast

import "github.com/zigscript-lang/zsc/internal/token"

// Location is the SourceLocation every node carries, per spec.md §3.
type Location struct {
	Line int
	Col  int
}

func LocOf(t token.Token) Location {
	return Location{Line: t.Position.Line, Col: t.Position.Col}
}

// Arena owns every Stmt and Expr allocated for one compilation. It has no
// per-node free; the whole arena is released at once when the compilation
// ends (see internal/driver).
type Arena struct {
	stmts []*Stmt
	exprs []*Expr
}

func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) NewStmt(s Stmt) *Stmt {
	a.stmts = append(a.stmts, &s)
	return a.stmts[len(a.stmts)-1]
}

func (a *Arena) NewExpr(e Expr) *Expr {
	a.exprs = append(a.exprs, &e)
	return a.exprs[len(a.exprs)-1]
}

// StmtCount and ExprCount are exposed for tests asserting arena bookkeeping.
func (a *Arena) StmtCount() int { return len(a.stmts) }
func (a *Arena) ExprCount() int { return len(a.exprs) }

// Module is an ordered sequence of top-level Stmt.
type Module struct {
	Path  string
	Stmts []*Stmt
}

// StmtKind tags the Stmt variant, mirroring spec.md §3's Stmt list.
type StmtKind int

const (
	ExprStmt StmtKind = iota
	LetDecl
	FnDecl
	ExternFnDecl
	StructDecl
	EnumDecl
	ReturnStmt
	IfStmt
	Block
	ImportStmt
	ForStmt
	WhileStmt
	BreakStmt
	ContinueStmt
)

// Param is a function/method/lambda parameter: a name plus its declared
// TypeExpr (resolved to a concrete type by the checker).
type Param struct {
	Name     string
	TypeExpr TypeExpr
	Loc      Location
}

// Field is a struct field declaration.
type Field struct {
	Name     string
	TypeExpr TypeExpr
	Loc      Location
}

// EnumVariant is one `enum` case, with optional payload fields.
type EnumVariant struct {
	Name   string
	Fields []Field
	Loc    Location
}

// Stmt is the tagged union of statement forms.
type Stmt struct {
	Kind StmtKind
	Loc  Location

	// ExprStmt
	Expr *Expr

	// LetDecl
	Name        string
	TypeAnn     *TypeExpr
	Init        *Expr
	IsConst     bool
	IsMutable   bool

	// FnDecl / ExternFnDecl
	Params    []Param
	RetType   *TypeExpr
	IsAsync   bool
	IsExport  bool
	Body      *Stmt // Block, for FnDecl
	HostModule string
	HostName   string

	// StructDecl
	Fields  []Field
	Methods []*Stmt // FnDecl nodes, implicit self is Params[0]

	// EnumDecl
	Variants []EnumVariant

	// ReturnStmt
	Value *Expr

	// IfStmt
	Cond *Expr
	Then *Stmt // Block
	Els  *Stmt // Block or IfStmt, nil if no else

	// Block
	Stmts []*Stmt

	// ImportStmt
	Symbols    []string
	ModulePath string

	// ForStmt
	IterName string
	Iterable *Expr

	// WhileStmt reuses Cond and Body (Block)
}

// TypeExprKind tags a parsed (unresolved) type annotation.
type TypeExprKind int

const (
	TEPrimitive TypeExprKind = iota
	TEOptional
	TEResult
	TEPromise
	TEArray
	TEMap
	TEFunction
	TEName // user-defined struct/enum, or generic if Args is non-empty
)

// TypeExpr is the parser's syntax-level representation of a type, later
// resolved to a *types.Type by internal/checker.
type TypeExpr struct {
	Kind    TypeExprKind
	Name    string // TEPrimitive lexeme or TEName identifier
	Of      *TypeExpr
	Ok      *TypeExpr
	Err     *TypeExpr
	Key     *TypeExpr
	Value   *TypeExpr
	Params  []TypeExpr
	Ret     *TypeExpr
	IsAsync bool
	Args    []TypeExpr // TEName generic arguments
	Loc     Location
}

// ExprKind tags the Expr variant, mirroring spec.md §3's Expr list.
type ExprKind int

const (
	IntLiteral ExprKind = iota
	FloatLiteral
	StringLiteral
	BoolLiteral
	Identifier
	Binary
	Unary
	Call
	MemberAccess
	IndexAccess
	ArrayLiteral
	StructLiteral
	AwaitExpr
	TryExpr
	StringInterpolation
	MatchExpr
	AssignExpr
	Lambda
)

// BinaryOp enumerates the 17 binary operators of spec.md §4.3 (5
// arithmetic, 3 bitwise, 2 equality, 4 relational, 2 logical, plus `??`).
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNotEq
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpAnd
	OpOr
	OpNullCoalesce
	OpBitAnd
	OpBitOr
	OpBitXor
)

// UnaryOp enumerates the 3 prefix unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
	OpBitNot
)

// MatchPatternKind tags one arm's pattern.
type MatchPatternKind int

const (
	PatternWildcard MatchPatternKind = iota
	PatternIdentifier
	PatternLiteral
	PatternVariant
)

// MatchPattern is one arm's left-hand side.
type MatchPattern struct {
	Kind       MatchPatternKind
	Name       string // PatternIdentifier binding name, or PatternVariant enum name
	Literal    *Expr  // PatternLiteral
	PayloadVar string // PatternVariant payload binding, if any
	Loc        Location
}

// MatchArm pairs a pattern with the expression it evaluates to.
type MatchArm struct {
	Pattern MatchPattern
	Body    *Expr
}

// InterpPart is one piece of a string_interpolation: either a literal text
// run (Expr == nil) or an embedded expression (Text == "").
type InterpPart struct {
	Text string
	Expr *Expr
}

// StructFieldInit is one `name: value` pair of a struct literal.
type StructFieldInit struct {
	Name  string
	Value *Expr
}

// Expr is the tagged union of expression forms.
type Expr struct {
	Kind ExprKind
	Loc  Location

	// IntLiteral / FloatLiteral / StringLiteral / BoolLiteral
	IntValue    int64
	FloatValue  float64
	StringValue string
	BoolValue   bool

	// Identifier
	Name string

	// Binary
	BinOp BinaryOp
	Left  *Expr
	Right *Expr

	// Unary
	UnOp    UnaryOp
	Operand *Expr

	// Call
	Callee *Expr
	Args   []*Expr

	// MemberAccess
	Object *Expr
	Field  string

	// IndexAccess
	Array *Expr
	Index *Expr

	// ArrayLiteral
	Elements []*Expr

	// StructLiteral
	TypeName    string
	FieldInits  []StructFieldInit

	// AwaitExpr / TryExpr share Operand above

	// StringInterpolation
	Parts []InterpPart

	// MatchExpr
	Scrutinee *Expr
	Arms      []MatchArm

	// AssignExpr
	Target *Expr
	Value  *Expr

	// Lambda
	Params     []Param
	RetType    *TypeExpr
	BodyExpr   *Expr // single-expression body
	BodyBlock  *Stmt // block body, mutually exclusive with BodyExpr
}

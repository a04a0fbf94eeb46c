// Package parser implements a recursive-descent, Pratt-precedence parser
// turning an internal/lexer Lexer into an internal/ast Module, per spec.md
// §4.2. All nodes are allocated from the caller-provided *ast.Arena.
package parser

import (
	"strconv"
	"strings"

	"github.com/zigscript-lang/zsc/internal/ast"
	"github.com/zigscript-lang/zsc/internal/lexer"
	"github.com/zigscript-lang/zsc/internal/token"
)

// Parser turns a token stream into a Module. A Parser is single-use: call
// ParseModule once per source file.
type Parser struct {
	lex    *lexer.Lexer
	arena  *ast.Arena
	cur    token.Token
	peekAt token.Token

	errors   []*ParseError
	hadError bool
}

// New constructs a Parser over src, allocating AST nodes from arena.
func New(src string, arena *ast.Arena) *Parser {
	p := &Parser{lex: lexer.New(src), arena: arena}
	p.cur = p.lex.NextToken()
	p.peekAt = p.lex.NextToken()
	return p
}

// HadError reports whether any statement failed to parse. The driver must
// not proceed to code generation when this is true (spec.md §4.2, §7).
func (p *Parser) HadError() bool { return p.hadError }

// Errors returns every recovered parse error, in source order.
func (p *Parser) Errors() []*ParseError { return p.errors }

func (p *Parser) advance() token.Token {
	t := p.cur
	p.cur = p.peekAt
	p.peekAt = p.lex.NextToken()
	return t
}

func (p *Parser) check(k token.Kind) bool { return p.cur.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) recordError(kind ErrorKind, context string, tok token.Token) *ParseError {
	err := &ParseError{Kind: kind, Line: tok.Position.Line, Col: tok.Position.Col, Context: context}
	p.errors = append(p.errors, err)
	p.hadError = true
	return err
}

// expect consumes cur if it matches k, else records an UnexpectedToken (or
// UnexpectedEOF) error and returns it without advancing.
func (p *Parser) expect(k token.Kind, context string) (token.Token, *ParseError) {
	if p.check(k) {
		return p.advance(), nil
	}
	kind := UnexpectedToken
	if p.cur.Kind == token.EOF {
		kind = UnexpectedEOF
	}
	if p.cur.Kind == token.Invalid {
		kind = InvalidCharacter
	}
	return p.cur, p.recordError(kind, context, p.cur)
}

// synchronize discards tokens until the last consumed was ';' or the
// current token starts a new statement, per spec.md §4.2's recovery rule.
func (p *Parser) synchronize() {
	for p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Semicolon {
			p.advance()
			return
		}
		switch p.cur.Kind {
		case token.Fn, token.Let, token.Const, token.If, token.Return, token.Struct,
			token.Enum, token.Import, token.For, token.While, token.Break,
			token.Continue, token.Export, token.Extern, token.Async:
			return
		}
		p.advance()
	}
}

// ParseModule parses the whole token stream into a Module. Errors are
// accumulated via synchronize; the first is also returned so callers that
// don't inspect Errors() still see a non-nil error when HadError is true.
func (p *Parser) ParseModule(path string) (*ast.Module, error) {
	mod := &ast.Module{Path: path}
	for p.cur.Kind != token.EOF {
		before := p.cur
		stmt := p.parseStatement()
		if stmt != nil {
			mod.Stmts = append(mod.Stmts, stmt)
		}
		if p.cur == before {
			// guard against a statement parser that made no progress.
			p.advance()
		}
	}
	if p.hadError {
		return mod, p.errors[0]
	}
	return mod, nil
}

func (p *Parser) parseStatement() *ast.Stmt {
	switch p.cur.Kind {
	case token.Export:
		p.advance()
		return p.parseExportedDecl()
	case token.Async:
		return p.parseFnDeclStmt(false, true)
	case token.Fn:
		return p.parseFnDeclStmt(false, false)
	case token.Extern:
		return p.parseExternFnDecl()
	case token.Let, token.Const:
		return p.parseLetDecl()
	case token.Struct:
		return p.parseStructDecl(false)
	case token.Enum:
		return p.parseEnumDecl(false)
	case token.Import:
		return p.parseImportStmt()
	case token.Return:
		return p.parseReturnStmt()
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	case token.Break:
		loc := ast.LocOf(p.cur)
		p.advance()
		p.match(token.Semicolon)
		return &ast.Stmt{Kind: ast.BreakStmt, Loc: loc}
	case token.Continue:
		loc := ast.LocOf(p.cur)
		p.advance()
		p.match(token.Semicolon)
		return &ast.Stmt{Kind: ast.ContinueStmt, Loc: loc}
	case token.LBrace:
		return p.parseBlock()
	case token.EOF:
		return nil
	default:
		return p.parseExprStmt()
	}
}

// parseExportedDecl handles the `export` prefix, valid before fn/async fn/
// struct/enum only (spec.md §4.2).
func (p *Parser) parseExportedDecl() *ast.Stmt {
	switch p.cur.Kind {
	case token.Async:
		return p.parseFnDeclStmt(true, true)
	case token.Fn:
		return p.parseFnDeclStmt(true, false)
	case token.Struct:
		return p.parseStructDecl(true)
	case token.Enum:
		return p.parseEnumDecl(true)
	default:
		p.recordError(InvalidSyntax, "export", p.cur)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseFnDeclStmt(isExport, isAsync bool) *ast.Stmt {
	loc := ast.LocOf(p.cur)
	if isAsync {
		p.advance() // async
	}
	if _, err := p.expect(token.Fn, "fn declaration"); err != nil {
		p.synchronize()
		return nil
	}
	name, err := p.expect(token.Identifier, "fn name")
	if err != nil {
		p.synchronize()
		return nil
	}
	params, ok := p.parseParamList()
	if !ok {
		p.synchronize()
		return nil
	}
	var ret *ast.TypeExpr
	if p.match(token.Arrow) {
		t := p.parseTypeExpr()
		ret = &t
	}
	body := p.parseBlock()
	return &ast.Stmt{
		Kind: ast.FnDecl, Loc: loc, Name: name.Lexeme, Params: params,
		RetType: ret, IsAsync: isAsync, IsExport: isExport, Body: body,
	}
}

func (p *Parser) parseExternFnDecl() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // extern
	if _, err := p.expect(token.Fn, "extern fn declaration"); err != nil {
		p.synchronize()
		return nil
	}
	name, err := p.expect(token.Identifier, "extern fn name")
	if err != nil {
		p.synchronize()
		return nil
	}
	params, ok := p.parseParamList()
	if !ok {
		p.synchronize()
		return nil
	}
	var ret *ast.TypeExpr
	if p.match(token.Arrow) {
		t := p.parseTypeExpr()
		ret = &t
	}
	if _, err := p.expect(token.From, "extern fn host binding"); err != nil {
		p.synchronize()
		return nil
	}
	hostModule, err := p.expect(token.String, "extern fn host module")
	if err != nil {
		p.synchronize()
		return nil
	}
	hostName, err := p.expect(token.String, "extern fn host name")
	if err != nil {
		p.synchronize()
		return nil
	}
	p.match(token.Semicolon)
	return &ast.Stmt{
		Kind: ast.ExternFnDecl, Loc: loc, Name: name.Lexeme, Params: params, RetType: ret,
		HostModule: unquote(hostModule.Lexeme), HostName: unquote(hostName.Lexeme),
	}
}

func (p *Parser) parseParamList() ([]ast.Param, bool) {
	if _, err := p.expect(token.LParen, "parameter list"); err != nil {
		return nil, false
	}
	var params []ast.Param
	for !p.check(token.RParen) && p.cur.Kind != token.EOF {
		loc := ast.LocOf(p.cur)
		name := p.advance() // keywords allowed as param names (spec.md §3)
		if _, err := p.expect(token.Colon, "parameter type"); err != nil {
			return nil, false
		}
		t := p.parseTypeExpr()
		params = append(params, ast.Param{Name: name.Lexeme, TypeExpr: t, Loc: loc})
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen, "parameter list"); err != nil {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseLetDecl() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	isConst := p.cur.Kind == token.Const
	p.advance() // let | const
	name, err := p.expect(token.Identifier, "let binding name")
	if err != nil {
		p.synchronize()
		return nil
	}
	var typeAnn *ast.TypeExpr
	if p.match(token.Colon) {
		t := p.parseTypeExpr()
		typeAnn = &t
	}
	var init *ast.Expr
	if p.match(token.Assign) {
		init = p.parseExpr()
	}
	p.match(token.Semicolon)
	return &ast.Stmt{
		Kind: ast.LetDecl, Loc: loc, Name: name.Lexeme, TypeAnn: typeAnn,
		Init: init, IsConst: isConst, IsMutable: !isConst,
	}
}

func (p *Parser) parseStructDecl(isExport bool) *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // struct
	name, err := p.expect(token.Identifier, "struct name")
	if err != nil {
		p.synchronize()
		return nil
	}
	if _, err := p.expect(token.LBrace, "struct body"); err != nil {
		p.synchronize()
		return nil
	}
	var fields []ast.Field
	var methods []*ast.Stmt
	for !p.check(token.RBrace) && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Fn {
			if m := p.parseFnDeclStmt(false, false); m != nil {
				methods = append(methods, m)
			}
			continue
		}
		fieldLoc := ast.LocOf(p.cur)
		fname := p.advance()
		if _, err := p.expect(token.Colon, "struct field type"); err != nil {
			p.synchronize()
			continue
		}
		ft := p.parseTypeExpr()
		fields = append(fields, ast.Field{Name: fname.Lexeme, TypeExpr: ft, Loc: fieldLoc})
		p.match(token.Comma)
	}
	p.expect(token.RBrace, "struct body")
	return &ast.Stmt{Kind: ast.StructDecl, Loc: loc, Name: name.Lexeme, Fields: fields, Methods: methods, IsExport: isExport}
}

func (p *Parser) parseEnumDecl(isExport bool) *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // enum
	name, err := p.expect(token.Identifier, "enum name")
	if err != nil {
		p.synchronize()
		return nil
	}
	if _, err := p.expect(token.LBrace, "enum body"); err != nil {
		p.synchronize()
		return nil
	}
	var variants []ast.EnumVariant
	for !p.check(token.RBrace) && p.cur.Kind != token.EOF {
		vLoc := ast.LocOf(p.cur)
		vname := p.advance()
		var payload []ast.Field
		if p.match(token.LParen) {
			for !p.check(token.RParen) && p.cur.Kind != token.EOF {
				fLoc := ast.LocOf(p.cur)
				fname := p.advance()
				p.expect(token.Colon, "enum payload field type")
				ft := p.parseTypeExpr()
				payload = append(payload, ast.Field{Name: fname.Lexeme, TypeExpr: ft, Loc: fLoc})
				if !p.match(token.Comma) {
					break
				}
			}
			p.expect(token.RParen, "enum payload")
		}
		variants = append(variants, ast.EnumVariant{Name: vname.Lexeme, Fields: payload, Loc: vLoc})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "enum body")
	return &ast.Stmt{Kind: ast.EnumDecl, Loc: loc, Name: name.Lexeme, Variants: variants, IsExport: isExport}
}

func (p *Parser) parseImportStmt() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // import
	if _, err := p.expect(token.LBrace, "import symbol list"); err != nil {
		p.synchronize()
		return nil
	}
	var symbols []string
	for !p.check(token.RBrace) && p.cur.Kind != token.EOF {
		sym := p.advance()
		symbols = append(symbols, sym.Lexeme)
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RBrace, "import symbol list"); err != nil {
		p.synchronize()
		return nil
	}
	if _, err := p.expect(token.From, "import module path"); err != nil {
		p.synchronize()
		return nil
	}
	path, err := p.expect(token.String, "import module path")
	if err != nil {
		p.synchronize()
		return nil
	}
	p.match(token.Semicolon)
	return &ast.Stmt{Kind: ast.ImportStmt, Loc: loc, Symbols: symbols, ModulePath: unquote(path.Lexeme)}
}

func (p *Parser) parseReturnStmt() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // return
	var value *ast.Expr
	if !p.check(token.Semicolon) && !p.check(token.RBrace) {
		value = p.parseExpr()
	}
	p.match(token.Semicolon)
	return &ast.Stmt{Kind: ast.ReturnStmt, Loc: loc, Value: value}
}

func (p *Parser) parseIfStmt() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // if
	cond := p.parseExpr()
	then := p.parseBlock()
	var els *ast.Stmt
	if p.match(token.Else) {
		if p.check(token.If) {
			els = p.parseIfStmt()
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.Stmt{Kind: ast.IfStmt, Loc: loc, Cond: cond, Then: then, Els: els}
}

func (p *Parser) parseWhileStmt() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // while
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.Stmt{Kind: ast.WhileStmt, Loc: loc, Cond: cond, Then: body}
}

func (p *Parser) parseForStmt() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	p.advance() // for
	name, err := p.expect(token.Identifier, "for loop binding")
	if err != nil {
		p.synchronize()
		return nil
	}
	if _, err := p.expect(token.In, "for loop"); err != nil {
		p.synchronize()
		return nil
	}
	iterable := p.parseExpr()
	body := p.parseBlock()
	return &ast.Stmt{Kind: ast.ForStmt, Loc: loc, IterName: name.Lexeme, Iterable: iterable, Then: body}
}

func (p *Parser) parseBlock() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	if _, err := p.expect(token.LBrace, "block"); err != nil {
		p.synchronize()
		return &ast.Stmt{Kind: ast.Block, Loc: loc}
	}
	var stmts []*ast.Stmt
	for !p.check(token.RBrace) && p.cur.Kind != token.EOF {
		before := p.cur
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
		if p.cur == before {
			p.advance()
		}
	}
	p.expect(token.RBrace, "block")
	return &ast.Stmt{Kind: ast.Block, Loc: loc, Stmts: stmts}
}

func (p *Parser) parseExprStmt() *ast.Stmt {
	loc := ast.LocOf(p.cur)
	e := p.parseExpr()
	p.match(token.Semicolon)
	return &ast.Stmt{Kind: ast.ExprStmt, Loc: loc, Expr: e}
}

// --- expression parsing: Pratt precedence climbing, per spec.md §4.2 plus
// the SPEC_FULL.md bitwise extension. ---

func (p *Parser) parseExpr() *ast.Expr {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() *ast.Expr {
	left := p.parseNullCoalesce()
	if p.check(token.Assign) {
		loc := ast.LocOf(p.cur)
		p.advance()
		right := p.parseAssignment() // right-associative
		return &ast.Expr{Kind: ast.AssignExpr, Loc: loc, Target: left, Value: right}
	}
	return left
}

func (p *Parser) parseNullCoalesce() *ast.Expr {
	left := p.parseOr()
	for p.check(token.QuestionQuestion) {
		loc := ast.LocOf(p.cur)
		p.advance()
		right := p.parseOr()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: ast.OpNullCoalesce, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseOr() *ast.Expr {
	left := p.parseAnd()
	for p.check(token.OrOr) {
		loc := ast.LocOf(p.cur)
		p.advance()
		right := p.parseAnd()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() *ast.Expr {
	left := p.parseEquality()
	for p.check(token.AndAnd) {
		loc := ast.LocOf(p.cur)
		p.advance()
		right := p.parseEquality()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() *ast.Expr {
	left := p.parseRelational()
	for p.check(token.Eq) || p.check(token.NotEq) {
		op, loc := ast.OpEq, ast.LocOf(p.cur)
		if p.cur.Kind == token.NotEq {
			op = ast.OpNotEq
		}
		p.advance()
		right := p.parseRelational()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseRelational() *ast.Expr {
	left := p.parseBitwise()
	for p.check(token.Less) || p.check(token.LessEq) || p.check(token.Greater) || p.check(token.GreaterEq) {
		loc := ast.LocOf(p.cur)
		var op ast.BinaryOp
		switch p.cur.Kind {
		case token.Less:
			op = ast.OpLess
		case token.LessEq:
			op = ast.OpLessEq
		case token.Greater:
			op = ast.OpGreater
		case token.GreaterEq:
			op = ast.OpGreaterEq
		}
		p.advance()
		right := p.parseBitwise()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: op, Left: left, Right: right}
	}
	return left
}

// parseBitwise handles the SPEC_FULL.md-promoted &, |, ^ infix operators,
// sitting between relational and additive precedence.
func (p *Parser) parseBitwise() *ast.Expr {
	left := p.parseAdditive()
	for p.check(token.Amp) || p.check(token.Pipe) || p.check(token.Caret) {
		loc := ast.LocOf(p.cur)
		var op ast.BinaryOp
		switch p.cur.Kind {
		case token.Amp:
			op = ast.OpBitAnd
		case token.Pipe:
			op = ast.OpBitOr
		case token.Caret:
			op = ast.OpBitXor
		}
		p.advance()
		right := p.parseAdditive()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() *ast.Expr {
	left := p.parseMultiplicative()
	for p.check(token.Plus) || p.check(token.Minus) {
		op, loc := ast.OpAdd, ast.LocOf(p.cur)
		if p.cur.Kind == token.Minus {
			op = ast.OpSub
		}
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() *ast.Expr {
	left := p.parseUnary()
	for p.check(token.Star) || p.check(token.Slash) || p.check(token.Percent) {
		loc := ast.LocOf(p.cur)
		var op ast.BinaryOp
		switch p.cur.Kind {
		case token.Star:
			op = ast.OpMul
		case token.Slash:
			op = ast.OpDiv
		case token.Percent:
			op = ast.OpMod
		}
		p.advance()
		right := p.parseUnary()
		left = &ast.Expr{Kind: ast.Binary, Loc: loc, BinOp: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() *ast.Expr {
	if p.check(token.Minus) || p.check(token.Bang) || p.check(token.Tilde) {
		loc := ast.LocOf(p.cur)
		var op ast.UnaryOp
		switch p.cur.Kind {
		case token.Minus:
			op = ast.OpNeg
		case token.Bang:
			op = ast.OpNot
		case token.Tilde:
			op = ast.OpBitNot
		}
		p.advance()
		operand := p.parseUnary()
		return &ast.Expr{Kind: ast.Unary, Loc: loc, UnOp: op, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() *ast.Expr {
	e := p.parsePrimary()
	for {
		switch p.cur.Kind {
		case token.LParen:
			loc := ast.LocOf(p.cur)
			p.advance()
			var args []*ast.Expr
			for !p.check(token.RParen) && p.cur.Kind != token.EOF {
				args = append(args, p.parseExpr())
				if !p.match(token.Comma) {
					break
				}
			}
			p.expect(token.RParen, "call arguments")
			e = &ast.Expr{Kind: ast.Call, Loc: loc, Callee: e, Args: args}
		case token.Dot:
			loc := ast.LocOf(p.cur)
			p.advance()
			name := p.advance() // keywords allowed as field names (spec.md §3)
			e = &ast.Expr{Kind: ast.MemberAccess, Loc: loc, Object: e, Field: name.Lexeme}
		case token.LBracket:
			loc := ast.LocOf(p.cur)
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBracket, "index expression")
			e = &ast.Expr{Kind: ast.IndexAccess, Loc: loc, Array: e, Index: idx}
		case token.Question:
			loc := ast.LocOf(p.cur)
			p.advance()
			e = &ast.Expr{Kind: ast.TryExpr, Loc: loc, Operand: e}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() *ast.Expr {
	loc := ast.LocOf(p.cur)
	switch p.cur.Kind {
	case token.Integer:
		tok := p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.recordError(Overflow, "integer literal", tok)
		}
		return &ast.Expr{Kind: ast.IntLiteral, Loc: loc, IntValue: v}
	case token.Float:
		tok := p.advance()
		v, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.Expr{Kind: ast.FloatLiteral, Loc: loc, FloatValue: v}
	case token.String:
		tok := p.advance()
		return p.parseStringToken(tok)
	case token.True:
		p.advance()
		return &ast.Expr{Kind: ast.BoolLiteral, Loc: loc, BoolValue: true}
	case token.False:
		p.advance()
		return &ast.Expr{Kind: ast.BoolLiteral, Loc: loc, BoolValue: false}
	case token.Await:
		p.advance()
		operand := p.parseUnary()
		return &ast.Expr{Kind: ast.AwaitExpr, Loc: loc, Operand: operand}
	case token.Fn:
		return p.parseLambda()
	case token.Match:
		return p.parseMatchExpr()
	case token.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RParen, "parenthesized expression")
		return e
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.Identifier:
		name := p.advance()
		if startsUpper(name.Lexeme) && p.check(token.LBrace) {
			return p.parseStructLiteral(name.Lexeme, loc)
		}
		return &ast.Expr{Kind: ast.Identifier, Loc: loc, Name: name.Lexeme}
	default:
		p.recordError(UnexpectedToken, "expression", p.cur)
		tok := p.advance()
		return &ast.Expr{Kind: ast.Identifier, Loc: loc, Name: tok.Lexeme}
	}
}

func (p *Parser) parseArrayLiteral() *ast.Expr {
	loc := ast.LocOf(p.cur)
	p.advance() // [
	var elems []*ast.Expr
	for !p.check(token.RBracket) && p.cur.Kind != token.EOF {
		elems = append(elems, p.parseExpr())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBracket, "array literal")
	return &ast.Expr{Kind: ast.ArrayLiteral, Loc: loc, Elements: elems}
}

func (p *Parser) parseStructLiteral(name string, loc ast.Location) *ast.Expr {
	p.advance() // {
	var inits []ast.StructFieldInit
	for !p.check(token.RBrace) && p.cur.Kind != token.EOF {
		fname := p.advance()
		p.expect(token.Colon, "struct literal field")
		val := p.parseExpr()
		inits = append(inits, ast.StructFieldInit{Name: fname.Lexeme, Value: val})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "struct literal")
	return &ast.Expr{Kind: ast.StructLiteral, Loc: loc, TypeName: name, FieldInits: inits}
}

func (p *Parser) parseLambda() *ast.Expr {
	loc := ast.LocOf(p.cur)
	p.advance() // fn
	params, _ := p.parseParamList()
	var ret *ast.TypeExpr
	if p.match(token.Arrow) {
		t := p.parseTypeExpr()
		ret = &t
	}
	if p.match(token.FatArrow) {
		body := p.parseExpr()
		return &ast.Expr{Kind: ast.Lambda, Loc: loc, Params: params, RetType: ret, BodyExpr: body}
	}
	block := p.parseBlock()
	return &ast.Expr{Kind: ast.Lambda, Loc: loc, Params: params, RetType: ret, BodyBlock: block}
}

func (p *Parser) parseMatchExpr() *ast.Expr {
	loc := ast.LocOf(p.cur)
	p.advance() // match
	scrutinee := p.parseExpr()
	p.expect(token.LBrace, "match arms")
	var arms []ast.MatchArm
	for !p.check(token.RBrace) && p.cur.Kind != token.EOF {
		pattern := p.parsePattern()
		p.expect(token.FatArrow, "match arm")
		body := p.parseExpr()
		arms = append(arms, ast.MatchArm{Pattern: pattern, Body: body})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "match arms")
	return &ast.Expr{Kind: ast.MatchExpr, Loc: loc, Scrutinee: scrutinee, Arms: arms}
}

func (p *Parser) parsePattern() ast.MatchPattern {
	loc := ast.LocOf(p.cur)
	if p.cur.Kind == token.Identifier && p.cur.Lexeme == "_" {
		p.advance()
		return ast.MatchPattern{Kind: ast.PatternWildcard, Loc: loc}
	}
	switch p.cur.Kind {
	case token.Integer, token.Float, token.String, token.True, token.False:
		lit := p.parsePrimary()
		return ast.MatchPattern{Kind: ast.PatternLiteral, Literal: lit, Loc: loc}
	case token.Identifier:
		name := p.advance()
		if startsUpper(name.Lexeme) && p.match(token.LParen) {
			payload := ""
			if p.check(token.Identifier) {
				payload = p.advance().Lexeme
			}
			p.expect(token.RParen, "enum variant pattern")
			return ast.MatchPattern{Kind: ast.PatternVariant, Name: name.Lexeme, PayloadVar: payload, Loc: loc}
		}
		return ast.MatchPattern{Kind: ast.PatternIdentifier, Name: name.Lexeme, Loc: loc}
	default:
		p.recordError(InvalidSyntax, "match pattern", p.cur)
		p.advance()
		return ast.MatchPattern{Kind: ast.PatternWildcard, Loc: loc}
	}
}

// parseStringToken strips the surrounding quotes and, if the body contains
// '{', triggers the string_interpolation secondary pass of spec.md §4.2.
func (p *Parser) parseStringToken(tok token.Token) *ast.Expr {
	loc := ast.LocOf(tok)
	body := unquote(tok.Lexeme)
	if !strings.Contains(body, "{") {
		return &ast.Expr{Kind: ast.StringLiteral, Loc: loc, StringValue: body}
	}
	parts, err := splitInterpolation(body, loc, p.arena)
	if err != nil {
		p.errors = append(p.errors, err)
		p.hadError = true
	}
	return &ast.Expr{Kind: ast.StringInterpolation, Loc: loc, Parts: parts}
}

// splitInterpolation scans body for non-nested {expr} runs, spawning a
// fresh sub-parser over each bracketed substring. Unmatched braces are
// InvalidSyntax, per spec.md §4.2.
func splitInterpolation(body string, loc ast.Location, arena *ast.Arena) ([]ast.InterpPart, *ParseError) {
	var parts []ast.InterpPart
	var text strings.Builder
	i := 0
	for i < len(body) {
		c := body[i]
		if c == '{' {
			if text.Len() > 0 {
				parts = append(parts, ast.InterpPart{Text: text.String()})
				text.Reset()
			}
			end := strings.IndexByte(body[i:], '}')
			if end < 0 {
				return parts, &ParseError{Kind: InvalidSyntax, Line: loc.Line, Col: loc.Col, Context: "string interpolation"}
			}
			sub := body[i+1 : i+end]
			subParser := New(sub, arena)
			e := subParser.parseExpr()
			parts = append(parts, ast.InterpPart{Expr: e})
			i += end + 1
			continue
		}
		text.WriteByte(c)
		i++
	}
	if text.Len() > 0 {
		parts = append(parts, ast.InterpPart{Text: text.String()})
	}
	return parts, nil
}

// --- type-expression parsing ---

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	t := p.parseTypeExprAtom()
	for p.check(token.Question) {
		loc := ast.LocOf(p.cur)
		p.advance()
		inner := t
		t = ast.TypeExpr{Kind: ast.TEOptional, Of: &inner, Loc: loc}
	}
	return t
}

func (p *Parser) parseTypeExprAtom() ast.TypeExpr {
	loc := ast.LocOf(p.cur)
	switch p.cur.Kind {
	case token.Void, token.Bool, token.I32, token.I64, token.U32, token.U64, token.F64, token.StringType, token.Bytes:
		tok := p.advance()
		return ast.TypeExpr{Kind: ast.TEPrimitive, Name: tok.Lexeme, Loc: loc}
	case token.LBracket:
		p.advance()
		elem := p.parseTypeExpr()
		p.expect(token.RBracket, "array type")
		return ast.TypeExpr{Kind: ast.TEArray, Of: &elem, Loc: loc}
	case token.Fn:
		p.advance()
		p.expect(token.LParen, "function type parameters")
		var params []ast.TypeExpr
		for !p.check(token.RParen) && p.cur.Kind != token.EOF {
			params = append(params, p.parseTypeExpr())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "function type parameters")
		var ret *ast.TypeExpr
		if p.match(token.Arrow) {
			r := p.parseTypeExpr()
			ret = &r
		}
		return ast.TypeExpr{Kind: ast.TEFunction, Params: params, Ret: ret, Loc: loc}
	case token.Identifier:
		name := p.advance()
		switch name.Lexeme {
		case "promise":
			p.expect(token.Less, "promise type argument")
			inner := p.parseTypeExpr()
			p.expect(token.Greater, "promise type argument")
			return ast.TypeExpr{Kind: ast.TEPromise, Of: &inner, Loc: loc}
		case "result":
			p.expect(token.Less, "result type arguments")
			ok := p.parseTypeExpr()
			p.expect(token.Comma, "result type arguments")
			errT := p.parseTypeExpr()
			p.expect(token.Greater, "result type arguments")
			return ast.TypeExpr{Kind: ast.TEResult, Ok: &ok, Err: &errT, Loc: loc}
		case "map":
			p.expect(token.Less, "map type arguments")
			key := p.parseTypeExpr()
			p.expect(token.Comma, "map type arguments")
			val := p.parseTypeExpr()
			p.expect(token.Greater, "map type arguments")
			return ast.TypeExpr{Kind: ast.TEMap, Key: &key, Value: &val, Loc: loc}
		}
		var args []ast.TypeExpr
		if p.match(token.Less) {
			for !p.check(token.Greater) && p.cur.Kind != token.EOF {
				args = append(args, p.parseTypeExpr())
				if !p.match(token.Comma) {
					break
				}
			}
			p.expect(token.Greater, "generic type arguments")
		}
		return ast.TypeExpr{Kind: ast.TEName, Name: name.Lexeme, Args: args, Loc: loc}
	default:
		p.recordError(UnexpectedToken, "type expression", p.cur)
		p.advance()
		return ast.TypeExpr{Kind: ast.TEPrimitive, Name: "void", Loc: loc}
	}
}

func startsUpper(s string) bool {
	return len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z'
}

func unquote(lexeme string) string {
	if len(lexeme) >= 2 && lexeme[0] == '"' && lexeme[len(lexeme)-1] == '"' {
		return lexeme[1 : len(lexeme)-1]
	}
	return lexeme
}

// Package token defines the lexical tokens produced by internal/lexer and
// consumed by internal/parser.
package token

import "fmt"

// Kind identifies what a Token represents. The zero value is Invalid so a
// zero Token is never mistaken for a real lexeme.
type Kind int

const (
	Invalid Kind = iota
	EOF

	// literals
	Identifier
	Integer
	Float
	String

	// keywords
	Fn
	Let
	Const
	If
	Else
	Return
	Async
	Await
	Extern
	Struct
	Enum
	Import
	From
	Export
	Match
	For
	In
	While
	Break
	Continue
	True
	False

	// primitive type names
	Void
	Bool
	I32
	I64
	U32
	U64
	F64
	StringType
	Bytes

	// operators and delimiters
	Plus
	Minus
	Star
	Slash
	Percent
	Assign
	Eq
	NotEq
	Less
	LessEq
	Greater
	GreaterEq
	AndAnd
	OrOr
	Bang
	Tilde
	Amp
	Pipe
	Caret
	Question
	QuestionQuestion
	Arrow
	FatArrow
	Dot
	Comma
	Colon
	Semicolon
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
)

var names = map[Kind]string{
	Invalid: "invalid", EOF: "eof",
	Identifier: "identifier", Integer: "integer", Float: "float", String: "string",
	Fn: "fn", Let: "let", Const: "const", If: "if", Else: "else", Return: "return",
	Async: "async", Await: "await", Extern: "extern", Struct: "struct", Enum: "enum",
	Import: "import", From: "from", Export: "export", Match: "match", For: "for",
	In: "in", While: "while", Break: "break", Continue: "continue", True: "true", False: "false",
	Void: "void", Bool: "bool", I32: "i32", I64: "i64", U32: "u32", U64: "u64", F64: "f64",
	StringType: "string", Bytes: "bytes",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", Assign: "=",
	Eq: "==", NotEq: "!=", Less: "<", LessEq: "<=", Greater: ">", GreaterEq: ">=",
	AndAnd: "&&", OrOr: "||", Bang: "!", Tilde: "~", Amp: "&", Pipe: "|", Caret: "^",
	Question: "?", QuestionQuestion: "??", Arrow: "->", FatArrow: "=>", Dot: ".",
	Comma: ",", Colon: ":", Semicolon: ";", LParen: "(", RParen: ")",
	LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
}

// String renders the Kind's canonical name, used in diagnostics.
func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps every reserved lexeme to its Kind. The lexer consults this
// after scanning an identifier-shaped run of bytes.
var Keywords = map[string]Kind{
	"fn": Fn, "let": Let, "const": Const, "if": If, "else": Else, "return": Return,
	"async": Async, "await": Await, "extern": Extern, "struct": Struct, "enum": Enum,
	"import": Import, "from": From, "export": Export, "match": Match, "for": For,
	"in": In, "while": While, "break": Break, "continue": Continue, "true": True, "false": False,
	"void": Void, "bool": Bool, "i32": I32, "i64": I64, "u32": U32, "u64": U64, "f64": F64,
	"string": StringType, "bytes": Bytes,
}

// Position is a 1-based line/column pair locating a lexeme's first byte.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a single lexical unit: a Kind tag, its raw source slice, and the
// position of its first byte. Lexeme is a view into the source buffer, never
// a copy — the source must outlive every Token derived from it.
type Token struct {
	Kind     Kind
	Lexeme   string
	Position Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q @ %s", t.Kind, t.Lexeme, t.Position)
}

package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zigscript-lang/zsc/internal/token"
)

func lexAll(src string) []token.Token {
	l := New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

// TestNextToken_Example is intentionally verbose to catch line/column bugs.
func TestNextToken_Example(t *testing.T) {
	const src = `export fn add(a: i32, b: i32) -> i32 {
	return a + b;
}
`
	toks := lexAll(src)
	require.Equal(t, []token.Token{
		{token.Export, "export", token.Position{Line: 1, Col: 1}},
		{token.Fn, "fn", token.Position{Line: 1, Col: 8}},
		{token.Identifier, "add", token.Position{Line: 1, Col: 11}},
		{token.LParen, "(", token.Position{Line: 1, Col: 14}},
		{token.Identifier, "a", token.Position{Line: 1, Col: 15}},
		{token.Colon, ":", token.Position{Line: 1, Col: 16}},
		{token.I32, "i32", token.Position{Line: 1, Col: 18}},
		{token.Comma, ",", token.Position{Line: 1, Col: 21}},
		{token.Identifier, "b", token.Position{Line: 1, Col: 23}},
		{token.Colon, ":", token.Position{Line: 1, Col: 24}},
		{token.I32, "i32", token.Position{Line: 1, Col: 26}},
		{token.RParen, ")", token.Position{Line: 1, Col: 29}},
		{token.Arrow, "->", token.Position{Line: 1, Col: 31}},
		{token.I32, "i32", token.Position{Line: 1, Col: 34}},
		{token.LBrace, "{", token.Position{Line: 1, Col: 38}},
		{token.Return, "return", token.Position{Line: 2, Col: 2}},
		{token.Identifier, "a", token.Position{Line: 2, Col: 9}},
		{token.Plus, "+", token.Position{Line: 2, Col: 11}},
		{token.Identifier, "b", token.Position{Line: 2, Col: 13}},
		{token.Semicolon, ";", token.Position{Line: 2, Col: 14}},
		{token.RBrace, "}", token.Position{Line: 3, Col: 1}},
		{token.EOF, "", token.Position{Line: 4, Col: 1}},
	}, toks)
}

func TestNextToken_Keywords(t *testing.T) {
	// "if" must always lex as the keyword, never as an identifier.
	toks := lexAll("if iffy")
	require.Equal(t, token.If, toks[0].Kind)
	require.Equal(t, token.Identifier, toks[1].Kind)
}

func TestNextToken_CompoundOperators(t *testing.T) {
	tests := []struct {
		input    string
		expected token.Kind
	}{
		{"==", token.Eq}, {"!=", token.NotEq}, {"<=", token.LessEq}, {">=", token.GreaterEq},
		{"&&", token.AndAnd}, {"||", token.OrOr}, {"??", token.QuestionQuestion},
		{"->", token.Arrow}, {"=>", token.FatArrow},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(tt.input)
			require.Equal(t, tt.expected, toks[0].Kind)
			require.Equal(t, token.EOF, toks[1].Kind)
		})
	}
}

func TestNextToken_NumberVsMemberAccess(t *testing.T) {
	// A trailing '.' not followed by a digit is member access, not a float.
	toks := lexAll("3.field")
	require.Equal(t, token.Integer, toks[0].Kind)
	require.Equal(t, "3", toks[0].Lexeme)
	require.Equal(t, token.Dot, toks[1].Kind)
	require.Equal(t, token.Identifier, toks[2].Kind)

	toks = lexAll("3.5")
	require.Equal(t, token.Float, toks[0].Kind)
	require.Equal(t, "3.5", toks[0].Lexeme)
}

func TestNextToken_Comments(t *testing.T) {
	toks := lexAll("1 // line comment\n/* block\ncomment */ 2")
	require.Equal(t, token.Integer, toks[0].Kind)
	require.Equal(t, "1", toks[0].Lexeme)
	require.Equal(t, token.Integer, toks[1].Kind)
	require.Equal(t, "2", toks[1].Lexeme)
}

func TestNextToken_String(t *testing.T) {
	toks := lexAll(`"hello {name}"`)
	require.Equal(t, token.String, toks[0].Kind)
	require.Equal(t, `"hello {name}"`, toks[0].Lexeme)
}

func TestNextToken_UnterminatedString(t *testing.T) {
	toks := lexAll(`"hello`)
	require.Equal(t, token.Invalid, toks[0].Kind)
}

func TestNextToken_InvalidByte(t *testing.T) {
	toks := lexAll("@")
	require.Equal(t, token.Invalid, toks[0].Kind)
}

// TestTokenizationRoundTrip checks the invariant from spec.md §8: lexemes in
// order, excluding eof, reconstruct the source with whitespace/comments
// stripped differently per-run but always contiguous per-token.
func TestTokenizationRoundTrip(t *testing.T) {
	src := "let x = 1 + 2;"
	toks := lexAll(src)
	var rebuilt string
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			continue
		}
		rebuilt += tok.Lexeme
	}
	require.Equal(t, "letx=1+2;", rebuilt)
}

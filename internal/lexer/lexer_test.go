package lexer

import (
	"strings"
	"testing"

	"github.com/xirelogy/go-brio/internal/token"
)

func nextOK(t *testing.T, l *Lexer) token.Token {
	t.Helper()
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected lex error: %v", err)
	}
	return tok
}

func TestLexerBasicTokens(t *testing.T) {
	input := `
local function add(a, b)
  if a >= 10 and a ~= b then
    return a + b
  end
end
`

	tests := []token.Token{
		{Type: token.Local, Literal: "local"},
		{Type: token.Function, Literal: "function"},
		{Type: token.Ident, Literal: "add"},
		{Type: token.LParen, Literal: "("},
		{Type: token.Ident, Literal: "a"},
		{Type: token.Comma, Literal: ","},
		{Type: token.Ident, Literal: "b"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.If, Literal: "if"},
		{Type: token.Ident, Literal: "a"},
		{Type: token.GreaterEqual, Literal: ">="},
		{Type: token.Number, Literal: "10"},
		{Type: token.And, Literal: "and"},
		{Type: token.Ident, Literal: "a"},
		{Type: token.NotEqual, Literal: "~="},
		{Type: token.Ident, Literal: "b"},
		{Type: token.Then, Literal: "then"},
		{Type: token.Return, Literal: "return"},
		{Type: token.Ident, Literal: "a"},
		{Type: token.Plus, Literal: "+"},
		{Type: token.Ident, Literal: "b"},
		{Type: token.End, Literal: "end"},
		{Type: token.End, Literal: "end"},
		{Type: token.EOF},
	}

	l := New("test", input)
	for i, expected := range tests {
		tok := nextOK(t, l)
		if tok.Type != expected.Type || tok.Literal != expected.Literal {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, expected.Type, expected.Literal, tok.Type, tok.Literal)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	input := `+ - * / % ^ # == ~= <= >= < > = ( ) { } [ ] ; : , . .. ...`

	expected := []token.Type{
		token.Plus, token.Minus, token.Star, token.Slash, token.Percent,
		token.Caret, token.Hash, token.Equal, token.NotEqual,
		token.LessEqual, token.GreaterEqual, token.Less, token.Greater,
		token.Assign, token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.LBracket, token.RBracket, token.Semicolon, token.Colon,
		token.Comma, token.Dot, token.Concat, token.Ellipsis,
		token.EOF,
	}

	l := New("test", input)
	for i, typ := range expected {
		tok := nextOK(t, l)
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		isInt bool
		i     int64
		f     float64
	}{
		{"42", true, 42, 0},
		{"0", true, 0, 0},
		{"0x10", true, 16, 0},
		{"0XFF", true, 255, 0},
		{"3.14", false, 0, 3.14},
		{".5", false, 0, 0.5},
		{"1e2", false, 0, 100},
		{"1.5E-2", false, 0, 0.015},
		{"2e+3", false, 0, 2000},
	}
	for _, tt := range tests {
		l := New("test", tt.input)
		tok := nextOK(t, l)
		if tok.Type != token.Number {
			t.Fatalf("%q: expected number, got %v", tt.input, tok.Type)
		}
		if tok.IsInt != tt.isInt {
			t.Fatalf("%q: expected isInt=%v", tt.input, tt.isInt)
		}
		if tt.isInt && tok.Int != tt.i {
			t.Fatalf("%q: expected %d, got %d", tt.input, tt.i, tok.Int)
		}
		if !tt.isInt && tok.Num != tt.f {
			t.Fatalf("%q: expected %g, got %g", tt.input, tt.f, tok.Num)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"q\"q"`, `q"q`},
		{`'q\'q'`, "q'q"},
		{`"\65\66\67"`, "ABC"},
		{`"\x41\x62"`, "Ab"},
		{`"back\\slash"`, `back\slash`},
	}
	for _, tt := range tests {
		l := New("test", tt.input)
		tok := nextOK(t, l)
		if tok.Type != token.String || tok.Literal != tt.want {
			t.Fatalf("%s: expected %q, got %v %q", tt.input, tt.want, tok.Type, tok.Literal)
		}
	}
}

func TestLexerLongStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"[[hello]]", "hello"},
		{"[==[a]=]b]==]", "a]=]b"},
		{"[[line1\nline2]]", "line1\nline2"},
		{"[[\nskipped leading newline]]", "skipped leading newline"},
		{"[=[no ]] close here]=]", "no ]] close here"},
	}
	for _, tt := range tests {
		l := New("test", tt.input)
		tok := nextOK(t, l)
		if tok.Type != token.String || tok.Literal != tt.want {
			t.Fatalf("%q: expected %q, got %v %q", tt.input, tt.want, tok.Type, tok.Literal)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `a -- line comment
b --[[ long
comment ]] c --[==[ leveled ]==] d`

	var names []string
	l := New("test", input)
	for {
		tok := nextOK(t, l)
		if tok.Type == token.EOF {
			break
		}
		names = append(names, tok.Literal)
	}
	if got := strings.Join(names, " "); got != "a b c d" {
		t.Fatalf("expected identifiers only, got %q", got)
	}
}

func TestLexerLineTracking(t *testing.T) {
	input := "a\nb\n\nc [[x\ny]] d"
	l := New("test", input)
	wantLines := []int{1, 2, 4, 4, 5}
	for i, want := range wantLines {
		tok := nextOK(t, l)
		if tok.Pos.Line != want {
			t.Fatalf("token %d (%q): expected line %d, got %d", i, tok.Literal, want, tok.Pos.Line)
		}
	}
}

func TestLexerPeek(t *testing.T) {
	l := New("test", "a b")
	p1, err := l.Peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	p2, _ := l.Peek()
	if p1 != p2 {
		t.Fatalf("repeated peek returned different tokens: %v vs %v", p1, p2)
	}
	got := nextOK(t, l)
	if got != p1 {
		t.Fatalf("next did not return the peeked token")
	}
	if tok := nextOK(t, l); tok.Literal != "b" {
		t.Fatalf("expected b after consuming peeked token, got %q", tok.Literal)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input    string
		wantMsg  string
		wantLine int
	}{
		{`"unfinished`, "unfinished string", 1},
		{"\"spans\nlines\"", "unfinished string", 1},
		{"x = [[never closed", "unfinished long string (starting at line 1)", 1},
		{"--[[never closed", "unfinished long comment (starting at line 1)", 1},
		{"0x", "malformed number", 1},
		{"1..2", "malformed number", 1},
		{"1e", "malformed number", 1},
		{"3x", "malformed number", 1},
		{"~", "unexpected symbol near '~'", 1},
		{"?", "unexpected symbol", 1},
		{`"\q"`, "invalid escape sequence", 1},
		{`"\300"`, "decimal escape too large", 1},
		{"[=x", "invalid long string delimiter", 1},
	}
	for _, tt := range tests {
		l := New("test", tt.input)
		var err error
		for {
			var tok token.Token
			tok, err = l.Next()
			if err != nil || tok.Type == token.EOF {
				break
			}
		}
		if err == nil {
			t.Fatalf("%q: expected error containing %q", tt.input, tt.wantMsg)
		}
		lerr, ok := err.(*Error)
		if !ok {
			t.Fatalf("%q: expected *Error, got %T", tt.input, err)
		}
		if !strings.Contains(lerr.Msg, tt.wantMsg) {
			t.Fatalf("%q: expected message containing %q, got %q", tt.input, tt.wantMsg, lerr.Msg)
		}
		if lerr.Line != tt.wantLine {
			t.Fatalf("%q: expected line %d, got %d", tt.input, tt.wantLine, lerr.Line)
		}
		if !strings.HasPrefix(lerr.Error(), "test:") {
			t.Fatalf("%q: error should carry the chunk name: %q", tt.input, lerr.Error())
		}
	}
}

func TestLexerKeywordsAreNotIdentifiers(t *testing.T) {
	l := New("test", "nothing ending functions")
	for i := 0; i < 3; i++ {
		tok := nextOK(t, l)
		if tok.Type != token.Ident {
			t.Fatalf("expected identifier, got %v (%q)", tok.Type, tok.Literal)
		}
	}
}

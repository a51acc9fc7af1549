package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xirelogy/go-brio/internal/token"
)

// Error is a lexical error with its source position.
type Error struct {
	Source string
	Line   int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
}

// Lexer converts source text into a stream of tokens with one token of
// buffered lookahead.
type Lexer struct {
	source  string // chunk name used in diagnostics
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
	column  int

	ahead    token.Token // buffered lookahead token
	aheadErr error
	aheadOK  bool
}

// New creates a lexer for the provided source text. The name is used in
// error messages only.
func New(name, input string) *Lexer {
	l := &Lexer{
		source: name,
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// Next consumes and returns the next token from the input.
func (l *Lexer) Next() (token.Token, error) {
	if l.aheadOK {
		l.aheadOK = false
		return l.ahead, l.aheadErr
	}
	return l.scan()
}

// Peek returns the next token without consuming it. Repeated calls
// return the same token; exactly one token of lookahead is available.
func (l *Lexer) Peek() (token.Token, error) {
	if !l.aheadOK {
		l.ahead, l.aheadErr = l.scan()
		l.aheadOK = true
	}
	return l.ahead, l.aheadErr
}

func (l *Lexer) scan() (token.Token, error) {
	for {
		l.skipWhitespace()

		if l.ch == '-' && l.peekChar() == '-' {
			if err := l.skipComment(); err != nil {
				return token.Token{}, err
			}
			continue
		}

		if l.ch == 0 {
			return l.makeToken(token.EOF, ""), nil
		}

		switch l.ch {
		case '+':
			return l.single(token.Plus), nil
		case '-':
			return l.single(token.Minus), nil
		case '*':
			return l.single(token.Star), nil
		case '/':
			return l.single(token.Slash), nil
		case '%':
			return l.single(token.Percent), nil
		case '^':
			return l.single(token.Caret), nil
		case '#':
			return l.single(token.Hash), nil
		case '=':
			if l.peekChar() == '=' {
				return l.double(token.Equal), nil
			}
			return l.single(token.Assign), nil
		case '~':
			if l.peekChar() == '=' {
				return l.double(token.NotEqual), nil
			}
			return token.Token{}, l.errorf("unexpected symbol near '~'")
		case '<':
			if l.peekChar() == '=' {
				return l.double(token.LessEqual), nil
			}
			return l.single(token.Less), nil
		case '>':
			if l.peekChar() == '=' {
				return l.double(token.GreaterEqual), nil
			}
			return l.single(token.Greater), nil
		case '(':
			return l.single(token.LParen), nil
		case ')':
			return l.single(token.RParen), nil
		case '{':
			return l.single(token.LBrace), nil
		case '}':
			return l.single(token.RBrace), nil
		case ']':
			return l.single(token.RBracket), nil
		case ';':
			return l.single(token.Semicolon), nil
		case ':':
			return l.single(token.Colon), nil
		case ',':
			return l.single(token.Comma), nil
		case '[':
			if c := l.peekChar(); c == '[' || c == '=' {
				return l.readLongString()
			}
			return l.single(token.LBracket), nil
		case '"', '\'':
			return l.readString(l.ch)
		case '.':
			if isDigit(l.peekChar()) {
				return l.readNumber()
			}
			tok := l.makeToken(token.Dot, ".")
			l.readChar()
			if l.ch == '.' {
				tok.Type, tok.Literal = token.Concat, ".."
				l.readChar()
				if l.ch == '.' {
					tok.Type, tok.Literal = token.Ellipsis, "..."
					l.readChar()
				}
			}
			return tok, nil
		default:
			if isLetter(l.ch) {
				return l.readIdentifier(), nil
			}
			if isDigit(l.ch) {
				return l.readNumber()
			}
			return token.Token{}, l.errorf("unexpected symbol near '%c'", l.ch)
		}
	}
}

func (l *Lexer) makeToken(t token.Type, lit string) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Pos: token.Position{
			Offset: l.pos,
			Line:   l.line,
			Column: l.column,
		},
	}
}

func (l *Lexer) single(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch))
	l.readChar()
	return tok
}

func (l *Lexer) double(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch)+string(l.peekChar()))
	l.readChar()
	l.readChar()
	return tok
}

func (l *Lexer) errorf(format string, args ...interface{}) error {
	return &Error{Source: l.source, Line: l.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *Lexer) errorAt(line int, format string, args ...interface{}) error {
	return &Error{Source: l.source, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

// skipComment is positioned on the first '-' of a '--' comment. Long
// bracket comments may span lines; anything else runs to end of line.
func (l *Lexer) skipComment() error {
	line := l.line
	l.readChar() // first '-'
	l.readChar() // second '-'
	if l.ch == '[' {
		if level, ok := l.tryLongOpen(); ok {
			_, err := l.readLongBody(level, line, true)
			return err
		}
	}
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
	return nil
}

func (l *Lexer) readIdentifier() token.Token {
	tok := l.makeToken(token.Ident, "")
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	tok.Type = token.LookupIdent(lit)
	tok.Literal = lit
	return tok
}

func (l *Lexer) readNumber() (token.Token, error) {
	tok := l.makeToken(token.Number, "")
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digits := 0
		for isHexDigit(l.ch) {
			digits++
			l.readChar()
		}
		lit := l.input[start:l.pos]
		if digits == 0 || isLetter(l.ch) || l.ch == '.' {
			return token.Token{}, l.malformedNumber(start)
		}
		u, err := strconv.ParseUint(lit[2:], 16, 64)
		if err != nil {
			return token.Token{}, l.malformedNumber(start)
		}
		tok.Literal, tok.IsInt, tok.Int = lit, true, int64(u)
		return tok, nil
	}

	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return token.Token{}, l.malformedNumber(start)
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) || l.ch == '.' {
		return token.Token{}, l.malformedNumber(start)
	}

	lit := l.input[start:l.pos]
	tok.Literal = lit
	if !isFloat {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			tok.IsInt, tok.Int = true, i
			return tok, nil
		}
		// too large for an integer; fall through to float
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return token.Token{}, l.malformedNumber(start)
	}
	tok.Num = f
	return tok, nil
}

func (l *Lexer) malformedNumber(start int) error {
	// include the offending trailing characters for context
	end := l.pos
	for end < len(l.input) && (isLetter(l.input[end]) || isDigit(l.input[end]) || l.input[end] == '.') {
		end++
	}
	return l.errorf("malformed number near '%s'", l.input[start:end])
}

func (l *Lexer) readString(quote byte) (token.Token, error) {
	tok := l.makeToken(token.String, "")
	line := l.line
	var sb strings.Builder

	for {
		l.readChar()
		switch l.ch {
		case 0:
			return token.Token{}, l.errorAt(line, "unfinished string")
		case '\n':
			return token.Token{}, l.errorAt(line, "unfinished string")
		case quote:
			l.readChar()
			tok.Literal = sb.String()
			return tok, nil
		case '\\':
			l.readChar()
			switch l.ch {
			case 'a':
				sb.WriteByte('\a')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'v':
				sb.WriteByte('\v')
			case '\\', '"', '\'':
				sb.WriteByte(l.ch)
			case '\n':
				sb.WriteByte('\n')
			case 'x':
				hi, lo := hexValue(l.peekChar()), -1
				if hi >= 0 {
					l.readChar()
					lo = hexValue(l.peekChar())
				}
				if lo < 0 {
					return token.Token{}, l.errorf("hexadecimal digit expected")
				}
				l.readChar()
				sb.WriteByte(byte(hi<<4 | lo))
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				n := int(l.ch - '0')
				for i := 0; i < 2; i++ {
					if !isDigit(l.peekChar()) {
						break
					}
					l.readChar()
					n = n*10 + int(l.ch-'0')
				}
				if n > 255 {
					return token.Token{}, l.errorf("decimal escape too large")
				}
				sb.WriteByte(byte(n))
			case 0:
				return token.Token{}, l.errorAt(line, "unfinished string")
			default:
				return token.Token{}, l.errorf("invalid escape sequence '\\%c'", l.ch)
			}
		default:
			sb.WriteByte(l.ch)
		}
	}
}

// tryLongOpen is positioned on '['. It consumes a long bracket opener
// "[", "="*level, "[" and returns its level, or consumes nothing.
func (l *Lexer) tryLongOpen() (int, bool) {
	level := 0
	for i := l.readPos; i < len(l.input); i++ {
		switch l.input[i] {
		case '=':
			level++
		case '[':
			for i := 0; i < level+2; i++ {
				l.readChar()
			}
			return level, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func (l *Lexer) readLongString() (token.Token, error) {
	tok := l.makeToken(token.String, "")
	line := l.line
	level, ok := l.tryLongOpen()
	if !ok {
		return token.Token{}, l.errorf("invalid long string delimiter")
	}
	s, err := l.readLongBody(level, line, false)
	if err != nil {
		return token.Token{}, err
	}
	tok.Literal = s
	return tok, nil
}

// readLongBody consumes characters up to the matching closer for the
// given level. A newline immediately after the opener is skipped; no
// escape processing happens inside.
func (l *Lexer) readLongBody(level, openLine int, isComment bool) (string, error) {
	if l.ch == '\r' {
		l.readChar()
	}
	if l.ch == '\n' {
		l.readChar()
	}
	start := l.pos
	for {
		if l.ch == 0 {
			what := "string"
			if isComment {
				what = "comment"
			}
			return "", l.errorAt(openLine, "unfinished long %s (starting at line %d)", what, openLine)
		}
		if l.ch == ']' && l.closesLong(level) {
			s := l.input[start:l.pos]
			for i := 0; i < level+2; i++ {
				l.readChar()
			}
			return s, nil
		}
		l.readChar()
	}
}

func (l *Lexer) closesLong(level int) bool {
	end := l.pos + level + 2
	if end > len(l.input) {
		return false
	}
	if l.input[end-1] != ']' {
		return false
	}
	for i := l.pos + 1; i < end-1; i++ {
		if l.input[i] != '=' {
			return false
		}
	}
	return true
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexValue(ch byte) int {
	switch {
	case isDigit(ch):
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	}
	return -1
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

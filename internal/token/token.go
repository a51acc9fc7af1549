package token

// Type identifies the category of a token.
type Type string

// Token carries the lexical item along with its source position.
// Number tokens keep a typed payload: integers and floats are
// distinguished at scan time. String tokens carry the decoded value.
type Token struct {
	Type    Type
	Literal string // identifier name, decoded string value, or operator text
	Int     int64
	Num     float64
	IsInt   bool
	Pos     Position
}

// Position describes a byte offset and 1-based line/column.
type Position struct {
	Offset int
	Line   int
	Column int
}

const (
	EOF Type = "EOF"

	// identifiers and literals
	Ident  Type = "IDENT"
	Number Type = "NUMBER"
	String Type = "STRING"

	// keywords
	And      Type = "AND"
	Break    Type = "BREAK"
	Do       Type = "DO"
	Else     Type = "ELSE"
	ElseIf   Type = "ELSEIF"
	End      Type = "END"
	False    Type = "FALSE"
	For      Type = "FOR"
	Function Type = "FUNCTION"
	If       Type = "IF"
	In       Type = "IN"
	Local    Type = "LOCAL"
	Nil      Type = "NIL"
	Not      Type = "NOT"
	Or       Type = "OR"
	Repeat   Type = "REPEAT"
	Return   Type = "RETURN"
	Then     Type = "THEN"
	True     Type = "TRUE"
	Until    Type = "UNTIL"
	While    Type = "WHILE"

	// operators
	Plus         Type = "PLUS"         // +
	Minus        Type = "MINUS"        // -
	Star         Type = "STAR"         // *
	Slash        Type = "SLASH"        // /
	Percent      Type = "PERCENT"      // %
	Caret        Type = "CARET"        // ^
	Hash         Type = "HASH"         // #
	Equal        Type = "EQUAL"        // ==
	NotEqual     Type = "NOTEQUAL"     // ~=
	Less         Type = "LESS"         // <
	LessEqual    Type = "LESSEQUAL"    // <=
	Greater      Type = "GREATER"      // >
	GreaterEqual Type = "GREATEREQUAL" // >=
	Assign       Type = "ASSIGN"       // =
	Concat       Type = "CONCAT"       // ..
	Ellipsis     Type = "ELLIPSIS"     // ...

	// delimiters
	Comma     Type = "COMMA"
	Semicolon Type = "SEMICOLON"
	Colon     Type = "COLON"
	Dot       Type = "DOT"
	LParen    Type = "LPAREN"
	RParen    Type = "RPAREN"
	LBrace    Type = "LBRACE"
	RBrace    Type = "RBRACE"
	LBracket  Type = "LBRACKET"
	RBracket  Type = "RBRACKET"
)

var keywords = map[string]Type{
	"and":      And,
	"break":    Break,
	"do":       Do,
	"else":     Else,
	"elseif":   ElseIf,
	"end":      End,
	"false":    False,
	"for":      For,
	"function": Function,
	"if":       If,
	"in":       In,
	"local":    Local,
	"nil":      Nil,
	"not":      Not,
	"or":       Or,
	"repeat":   Repeat,
	"return":   Return,
	"then":     Then,
	"true":     True,
	"until":    Until,
	"while":    While,
}

// LookupIdent returns the keyword token type or Ident.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}

var tokenText = map[Type]string{
	EOF:          "<eof>",
	Ident:        "name",
	Number:       "number",
	String:       "string",
	Plus:         "+",
	Minus:        "-",
	Star:         "*",
	Slash:        "/",
	Percent:      "%",
	Caret:        "^",
	Hash:         "#",
	Equal:        "==",
	NotEqual:     "~=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	Assign:       "=",
	Concat:       "..",
	Ellipsis:     "...",
	Comma:        ",",
	Semicolon:    ";",
	Colon:        ":",
	Dot:          ".",
	LParen:       "(",
	RParen:       ")",
	LBrace:       "{",
	RBrace:       "}",
	LBracket:     "[",
	RBracket:     "]",
}

// Describe renders a token type the way error messages quote it:
// keywords and operators by their source text, categories by name.
func Describe(t Type) string {
	for text, kw := range keywords {
		if kw == t {
			return text
		}
	}
	if text, ok := tokenText[t]; ok {
		return text
	}
	return string(t)
}

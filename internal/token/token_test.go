package token

import "testing"

func TestLookupIdent(t *testing.T) {
	tests := map[string]Type{
		"and":      And,
		"function": Function,
		"until":    Until,
		"foo":      Ident,
		"ended":    Ident,
		"Nil":      Ident, // keywords are case sensitive
	}
	for lit, want := range tests {
		if got := LookupIdent(lit); got != want {
			t.Fatalf("%q: expected %v, got %v", lit, want, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := map[Type]string{
		End:      "end",
		Function: "function",
		Assign:   "=",
		Concat:   "..",
		EOF:      "<eof>",
		Ident:    "name",
		Number:   "number",
	}
	for typ, want := range tests {
		if got := Describe(typ); got != want {
			t.Fatalf("%v: expected %q, got %q", typ, want, got)
		}
	}
}

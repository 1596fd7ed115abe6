package token

import (
	"strings"
	"testing"
)

func TestNewCarriesNoLiteral(t *testing.T) {
	tok := New(ADD, "+", 3)
	want := Token{TokenType: ADD, Lexeme: "+", Line: 3}
	if tok != want {
		t.Errorf("New() = %+v, want %+v", tok, want)
	}
}

func TestNewLiteralCarriesValue(t *testing.T) {
	tok := NewLiteral(INT, "42", int64(42), 1)
	if tok.Literal != int64(42) {
		t.Errorf("Literal = %v, want int64(42)", tok.Literal)
	}
}

func TestStringIncludesTypeLexemeAndLine(t *testing.T) {
	tok := New(IDENTIFIER, "foo", 5)
	s := tok.String()
	for _, want := range []string{string(IDENTIFIER), "foo", "5"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestKeywordsMapResolvesReservedWords(t *testing.T) {
	tests := map[string]TokenType{
		"cl":    VAR,
		"klass": KLASS,
		"proc":  PROC,
		"ret":   RET,
		"this":  THIS,
		"init":  INIT,
		"is":    IS,
		"from":  FROM,
	}
	for word, want := range tests {
		got, ok := KeyWords[word]
		if !ok {
			t.Errorf("KeyWords[%q] missing", word)
			continue
		}
		if got != want {
			t.Errorf("KeyWords[%q] = %s, want %s", word, got, want)
		}
	}
}

func TestKeywordsMapDoesNotContainOrdinaryIdentifiers(t *testing.T) {
	if _, ok := KeyWords["counter"]; ok {
		t.Errorf("expected 'counter' to not be a reserved word")
	}
}

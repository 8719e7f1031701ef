package exprparse

import (
	"testing"

	"github.com/ubports/upstart-sub001/internal/event"
)

func TestParseSingleEvent(t *testing.T) {
	op, err := Parse("startup")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if op.Kind != event.KindMatch || op.EventName != "startup" {
		t.Fatalf("got %+v, want a startup match leaf", op)
	}
}

func TestParseAndOrPrecedence(t *testing.T) {
	// Equal precedence, left-associative: "a or b and c" groups as
	// "(a or b) and c", not "a or (b and c)".
	op, err := Parse("a or b and c")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if op.Kind != event.KindAnd {
		t.Fatalf("root kind = %v, want AND", op.Kind)
	}
	if op.Left.Kind != event.KindOr {
		t.Fatalf("left child kind = %v, want OR", op.Left.Kind)
	}
}

func TestParseParenGrouping(t *testing.T) {
	op, err := Parse("a and (b or c)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if op.Kind != event.KindAnd || op.Right.Kind != event.KindOr {
		t.Fatalf("got %+v, want AND wrapping an OR on the right", op)
	}
}

func TestParseMismatchedParens(t *testing.T) {
	if _, err := Parse("(a and b"); err == nil {
		t.Fatal("expected an error for an unclosed paren")
	}
	if _, err := Parse("a and b)"); err == nil {
		t.Fatal("expected an error for a stray close paren")
	}
}

func TestParsePositionalAfterNamed(t *testing.T) {
	_, err := Parse("net-device-up IFACE=eth0 eth1")
	if err == nil {
		t.Fatal("expected an error for a positional argument following a named one")
	}
}

func TestParsePositionalThenNamedOK(t *testing.T) {
	op, err := Parse("net-device-up eth0 IFACE=eth0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(op.Args) != 2 {
		t.Fatalf("Args = %v, want 2 entries", op.Args)
	}
}

func TestParseBareOperatorWhereEventExpected(t *testing.T) {
	if _, err := Parse("and foo"); err == nil {
		t.Fatal("expected an error for a bare operator keyword as an operand")
	}
}

func TestParseQuotedOperatorKeywordAsEventName(t *testing.T) {
	op, err := Parse(`"and"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if op.Kind != event.KindMatch || op.EventName != "and" {
		t.Fatalf("got %+v, want a match leaf named \"and\"", op)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected an error for empty input")
	}
}

package policy

import (
	"errors"
	"testing"
)

func TestParseLiteralAnd(t *testing.T) {
	ast, err := Parse(`(and true true)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	result, err := EvalPolicy(ast, NewEnv())
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("(and true true) should evaluate truthy")
	}
}

func TestParseLiteralOr(t *testing.T) {
	ast, err := Parse(`(or #f #t)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	result, err := EvalPolicy(ast, NewEnv())
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("(or #f #t) should evaluate truthy")
	}
}

func TestParseEmptyListEvaluatesToNil(t *testing.T) {
	ast, err := Parse(`()`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	result, err := EvalPolicy(ast, NewEnv())
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.IsNil() {
		t.Fatal("() should evaluate to Nil")
	}
}

func TestParseStringEscape(t *testing.T) {
	ast, err := Parse(`"a\"b"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ast.Kind() != KindStr {
		t.Fatalf("kind = %v, want KindStr", ast.Kind())
	}
	if ast.AsString() != `a"b` {
		t.Fatalf("AsString() = %q, want %q", ast.AsString(), `a"b`)
	}
}

func TestParseEmptyInputIsEOF(t *testing.T) {
	_, err := Parse("")
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("Parse(\"\") err = %v, want ErrUnexpectedEOF", err)
	}
	_, err = Parse("   ")
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("Parse(whitespace) err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestParseUnterminatedOpen(t *testing.T) {
	_, err := Parse(`(and true`)
	if !errors.Is(err, ErrUnterminatedOpen) {
		t.Fatalf("err = %v, want ErrUnterminatedOpen", err)
	}
}

func TestParseUnexpectedClose(t *testing.T) {
	_, err := Parse(`)`)
	if !errors.Is(err, ErrUnexpectedClose) {
		t.Fatalf("err = %v, want ErrUnexpectedClose", err)
	}
}

func TestParseExtraTokens(t *testing.T) {
	_, err := Parse(`(and true true) (or)`)
	if !errors.Is(err, ErrExtraTokens) {
		t.Fatalf("err = %v, want ErrExtraTokens", err)
	}
}

func TestParseSizeExceeded(t *testing.T) {
	huge := make([]byte, MaxPolicyBytes+1)
	for i := range huge {
		huge[i] = ' '
	}
	_, err := Parse(string(huge))
	if !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("err = %v, want ErrSizeExceeded", err)
	}
}

func TestParseNumbers(t *testing.T) {
	ast, err := Parse(`3.5`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ast.Kind() != KindNumber || ast.AsNumber() != 3.5 {
		t.Fatalf("got kind=%v num=%v, want Number(3.5)", ast.Kind(), ast.AsNumber())
	}
}

func TestParseSymbolFallback(t *testing.T) {
	ast, err := Parse(`unbound-name`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ast.Kind() != KindSymbol {
		t.Fatalf("kind = %v, want KindSymbol", ast.Kind())
	}
}

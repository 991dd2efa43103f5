package policy

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) Value {
	t.Helper()
	ast, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return ast
}

func TestEvalGasExceeded(t *testing.T) {
	env := NewEnv()
	env.MaxGas = 2
	ast := mustParse(t, `(and #t #t #t #t #t)`)
	_, err := EvalPolicy(ast, env)
	if !errors.Is(err, ErrGasExceeded) {
		t.Fatalf("err = %v, want ErrGasExceeded", err)
	}
}

func TestEvalGasBoundaryExactBudgetSucceeds(t *testing.T) {
	// (and #t) costs exactly 2 gas units: the list node, then the #t atom.
	env := NewEnv()
	env.MaxGas = 2
	ast := mustParse(t, `(and #t)`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("(and #t) should be truthy")
	}
}

func TestEvalDepthExceeded(t *testing.T) {
	env := NewEnv()
	nested := "#t"
	for i := 0; i < int(MaxDepth)+5; i++ {
		nested = fmt.Sprintf("(not %s)", nested)
	}
	ast := mustParse(t, nested)
	_, err := EvalPolicy(ast, env)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("err = %v, want ErrDepthExceeded", err)
	}
}

func TestEvalUnknownOperator(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(frobnicate 1 2)`)
	_, err := EvalPolicy(ast, env)
	var unknownErr *UnknownOperatorError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want *UnknownOperatorError", err)
	}
	if unknownErr.Op != "frobnicate" {
		t.Fatalf("Op = %q, want %q", unknownErr.Op, "frobnicate")
	}
}

func TestEvalOperatorShapeError(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(1 2 3)`)
	_, err := EvalPolicy(ast, env)
	if !errors.Is(err, ErrOperatorShape) {
		t.Fatalf("err = %v, want ErrOperatorShape", err)
	}
}

func TestEvalMember(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(member "read" (tuple "read" "write"))`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("\"read\" should be a member of (tuple \"read\" \"write\")")
	}
}

func TestEvalMemberMiss(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(member "delete" (tuple "read" "write"))`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if result.Truthy() {
		t.Fatal("\"delete\" should not be a member of (tuple \"read\" \"write\")")
	}
}

func TestEvalSubset(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(subset? (tuple "a" "b") (tuple "a" "b" "c"))`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("{a,b} should be a subset of {a,b,c}")
	}
}

func TestEvalGetFromReq(t *testing.T) {
	env := NewEnv()
	env.Req["action"] = Str("transfer")
	ast := mustParse(t, `(= (get req "action") "transfer")`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("(get req \"action\") should resolve to the bound req value")
	}
}

func TestEvalGetMissingKeyIsNil(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(get req "missing")`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.IsNil() {
		t.Fatal("looking up a missing req key should yield Nil")
	}
}

func TestEvalGetNonReqObjectIsNil(t *testing.T) {
	env := NewEnv()
	env.Vars["other"] = List([]Value{Str("x")})
	ast := mustParse(t, `(get other "0")`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.IsNil() {
		t.Fatal("get against any object position other than the literal symbol req must yield Nil")
	}
}

func TestEvalPerDayCount(t *testing.T) {
	env := NewEnv()
	env.PerDayCount = func(action, day string) (int64, error) {
		if action == "transfer" && day == "2026-07-29" {
			return 3, nil
		}
		return 0, nil
	}
	ast := mustParse(t, `(< (per-day-count "transfer" "2026-07-29") 5)`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("3 < 5 should hold")
	}
}

func TestEvalPerDayCountPropagatesError(t *testing.T) {
	env := NewEnv()
	boom := errors.New("storage unavailable")
	env.PerDayCount = func(string, string) (int64, error) { return 0, boom }
	ast := mustParse(t, `(< (per-day-count "transfer" "2026-07-29") 5)`)
	_, err := EvalPolicy(ast, env)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want propagated storage error", err)
	}
}

func TestEvalCryptoCallbacksDefaultDeny(t *testing.T) {
	env := NewEnv()
	for _, op := range []string{`(dpop_ok?)`, `(merkle_ok? "leaf")`, `(vrf_ok? "2026-07-29" 1)`, `(thresh_ok?)`} {
		ast := mustParse(t, op)
		result, err := EvalPolicy(ast, env)
		if err != nil {
			t.Fatalf("EvalPolicy(%s): %v", op, err)
		}
		if result.Truthy() {
			t.Fatalf("%s should default-deny when no host callback is wired", op)
		}
	}
}

func TestEvalBeforeComparesCanonicalStrings(t *testing.T) {
	env := NewEnv()
	ast := mustParse(t, `(before "2026-01-01" "2026-12-31")`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !result.Truthy() {
		t.Fatal("\"2026-01-01\" should sort before \"2026-12-31\"")
	}
}

func TestEvalNow(t *testing.T) {
	env := NewEnv()
	env.Vars["now"] = Str("2026-07-29T00:00:00Z")
	ast := mustParse(t, `now`)
	result, err := EvalPolicy(ast, env)
	if err != nil {
		t.Fatalf("EvalPolicy: %v", err)
	}
	if !strings.Contains(result.String(), "2026-07-29") {
		t.Fatalf("now should resolve through env.Vars, got %q", result.String())
	}
}

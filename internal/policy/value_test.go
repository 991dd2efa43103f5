package policy

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"true", Bool(true), true},
		{"false", Bool(false), false},
		{"nil", Nil(), false},
		{"zero", Number(0), false},
		{"nonzero", Number(1), true},
		{"negative", Number(-1), true},
		{"string", Str(""), true},
		{"symbol", Symbol("x"), true},
		{"list", List([]Value{Number(1)}), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Truthy(); got != tc.want {
				t.Errorf("Truthy() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmptyListIsNil(t *testing.T) {
	v := List(nil)
	if v.Kind() != KindNil {
		t.Fatalf("List(nil) kind = %v, want KindNil", v.Kind())
	}
	if !List([]Value{}).IsNil() {
		t.Fatalf("List([]Value{}) should collapse to Nil")
	}
}

func TestEqStrSymbolCoercion(t *testing.T) {
	if !Eq(Str("foo"), Symbol("foo")) {
		t.Fatal("Str and Symbol with same text should be node_eq")
	}
	if !Eq(Symbol("foo"), Str("foo")) {
		t.Fatal("Symbol and Str with same text should be node_eq regardless of argument order")
	}
	if Eq(Str("foo"), Str("bar")) {
		t.Fatal("distinct strings must not be equal")
	}
}

func TestEqNumberVsOtherKindFallsBackToDisplay(t *testing.T) {
	// Number(1) displays as "1"; Str("1") is a distinct kind with the same
	// canonical rendering — the fallback path treats them as equal.
	if !Eq(Number(1), Str("1")) {
		t.Fatal("Number/Str fallback should compare canonical string renderings")
	}
}

func TestStringRoundTripDisplay(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Nil(), "nil"},
		{Number(3), "3"},
		{Number(3.5), "3.5"},
		{Str("hi"), "hi"},
		{Symbol("req"), "req"},
		{List([]Value{Symbol("and"), Bool(true), Str("x")}), `(and true "x")`},
	}
	for _, tc := range cases {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestCoerce0DefaultsToZero(t *testing.T) {
	if Str("not a number").Coerce0() != 0 {
		t.Fatal("Coerce0 on a non-number must default to 0")
	}
	if Number(42).Coerce0() != 42 {
		t.Fatal("Coerce0 on a number must return its value")
	}
}

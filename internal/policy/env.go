package policy

// CryptoCallbacks groups the four host-implemented crypto predicates an
// evaluation may invoke. Each is pure and synchronous: spec §5 requires hosts
// not to block inside these, since a blocking callback stalls the verifier.
type CryptoCallbacks struct {
	// DpopOk backs the zero-arg dpop_ok? operator.
	DpopOk func() bool
	// MerkleOk backs merkle_ok?; args are the already-evaluated operand list.
	MerkleOk func(args []Value) bool
	// VrfOk backs vrf_ok?(day, amount).
	VrfOk func(day string, amount float64) bool
	// ThreshOk backs the zero-arg thresh_ok? operator.
	ThreshOk func() bool
}

// defaultCryptoCallbacks returns callbacks that always deny, used when Env is constructed
// without explicit crypto wiring so a nil function pointer is never invoked.
func defaultCryptoCallbacks() CryptoCallbacks {
	return CryptoCallbacks{
		DpopOk:   func() bool { return false },
		MerkleOk: func([]Value) bool { return false },
		VrfOk:    func(string, float64) bool { return false },
		ThreshOk: func() bool { return false },
	}
}

// PerDayCounter is the host callback behind the per-day-count operator. It is
// the one fallible callback: hosts may back it with real storage (§4.6 of
// SPEC_FULL.md), so I/O errors must be observable rather than silently
// swallowed as a false/zero result.
type PerDayCounter func(action, day string) (int64, error)

// Env is the evaluator's context for one evaluation (spec §3.2). An Env is
// built fresh per verification; nothing inside it is shared across concurrent
// evaluations.
type Env struct {
	Req   map[string]Value
	Vars  map[string]Value
	PerDayCount PerDayCounter
	Crypto      CryptoCallbacks

	// MaxGas bounds the number of AST nodes eval_policy may enter.
	MaxGas int64

	// Sealed, when true, makes the verifier facade refuse evaluation before
	// the evaluator ever runs (spec §4.3). The evaluator itself never reads
	// this field — see SPEC_FULL.md §9 on env.sealed vs token.sealed scope.
	Sealed bool

	// Strict is carried from the original SPL environment but consulted by no
	// operator in this version; see SPEC_FULL.md §4.2's Open Question
	// resolution. Hosts may still inspect it before calling eval, e.g. to
	// reject policies referencing unknown vars up front.
	Strict bool
}

// DefaultMaxGas is the gas budget used when a caller does not set Env.MaxGas.
const DefaultMaxGas = 10_000

// NewEnv builds an Env with empty request/var maps, deny-everything crypto
// callbacks, a zero per-day counter, and the default gas budget — a safe
// starting point callers narrow by setting fields directly.
func NewEnv() *Env {
	return &Env{
		Req:         map[string]Value{},
		Vars:        map[string]Value{},
		PerDayCount: func(string, string) (int64, error) { return 0, nil },
		Crypto:      defaultCryptoCallbacks(),
		MaxGas:      DefaultMaxGas,
	}
}

package token

import (
	"errors"

	"github.com/agent-safe/splcap/internal/policy"
	"github.com/agent-safe/splcap/internal/splcrypto"
)

// Sentinel errors for the token-envelope error kinds (spec §7).
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrPoPMissing       = errors.New("PoP binding requires presentation signature")
	ErrPoPInvalid       = errors.New("PoP presentation signature invalid")
)

// VerifyResult is the outcome of verifying a token (spec §4.5 step 6).
// Errors never escape the token boundary as Go errors here: Verify always
// returns a VerifyResult, with Error set to describe a denied outcome.
type VerifyResult struct {
	Allow  bool
	Sealed bool
	Error  error
	// GasConsumed is the evaluator gas spent reaching this outcome (zero if
	// evaluation never started, e.g. a signature or PoP failure). Callers
	// instrumenting evaluation cost read this rather than re-deriving it.
	GasConsumed int64
}

// VerifyOptions carries the request-time inputs Verify needs beyond the
// token itself.
type VerifyOptions struct {
	Req  map[string]policy.Value
	Vars map[string]policy.Value
	// PresentationSignatureHex is required, and checked, iff the token
	// carries a pop_key (spec §4.5 step 3).
	PresentationSignatureHex string
	// PerDayCount and Crypto let a host wire real callbacks into the
	// evaluation environment the policy runs under. Left zero, Crypto
	// defaults to callbacks that always deny and PerDayCount to a counter
	// that reports zero.
	PerDayCount policy.PerDayCounter
	Crypto      policy.CryptoCallbacks
	// MaxGas overrides the default evaluator gas budget when non-zero.
	MaxGas int64
}

// Verify runs the full token verification sequence (spec §4.5):
// recompute the signing payload, check the Ed25519 signature, check the PoP
// presentation signature if pop_key is set, parse the policy, evaluate it
// under a fresh Env, and report the outcome.
func Verify(t *Token, opts VerifyOptions) VerifyResult {
	payload := signingPayloadFor(t)

	if !splcrypto.VerifyEd25519(payload, t.Signature, t.PublicKey) {
		return VerifyResult{Allow: false, Sealed: t.Sealed, Error: ErrInvalidSignature}
	}

	if t.PopKey != nil {
		if opts.PresentationSignatureHex == "" {
			return VerifyResult{Allow: false, Sealed: t.Sealed, Error: ErrPoPMissing}
		}
		digest := splcrypto.SHA256(payload)
		if !splcrypto.VerifyEd25519(digest, opts.PresentationSignatureHex, *t.PopKey) {
			return VerifyResult{Allow: false, Sealed: t.Sealed, Error: ErrPoPInvalid}
		}
	}

	ast, err := policy.Parse(t.Policy)
	if err != nil {
		return VerifyResult{Allow: false, Sealed: t.Sealed, Error: err}
	}

	env := policy.NewEnv()
	if opts.Req != nil {
		env.Req = opts.Req
	}
	if opts.Vars != nil {
		env.Vars = opts.Vars
	}
	if opts.PerDayCount != nil {
		env.PerDayCount = opts.PerDayCount
	}
	if opts.Crypto.DpopOk != nil {
		env.Crypto = opts.Crypto
	}
	if opts.MaxGas > 0 {
		env.MaxGas = opts.MaxGas
	}
	// The envelope's sealed flag is returned to the caller but deliberately
	// never fed into env.Sealed: sealed-flag semantics at verify-time are for
	// the caller to act on, not the evaluator to gate on (spec §4.5 step 5,
	// §9).
	env.Sealed = false

	result, gasConsumed, err := policy.EvalPolicyGas(ast, env)
	if err != nil {
		return VerifyResult{Allow: false, Sealed: t.Sealed, Error: err, GasConsumed: gasConsumed}
	}
	return VerifyResult{Allow: result.Truthy(), Sealed: t.Sealed, GasConsumed: gasConsumed}
}

// PresentationSignature builds the bytes a PoP holder signs to present a
// token: SHA-256 of the token's own canonical signing payload (spec §4.5
// "Presentation-signature construction").
func PresentationSignature(t *Token) []byte {
	return splcrypto.SHA256(signingPayloadFor(t))
}

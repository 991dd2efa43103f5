package hostadapter

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// DPoPClaims models the subset of RFC 9449 DPoP proof claims this verifier
// checks: the HTTP method/URI the proof is bound to, plus the exp/nbf timing
// checks the JWT library applies by default (iat is carried but not checked).
type DPoPClaims struct {
	jwt.RegisteredClaims
	HTTPMethod string `json:"htm"`
	HTTPURI    string `json:"htu"`
}

// JWTDPoPVerifier validates DPoP proof JWTs signed with Ed25519 (EdDSA),
// binding them to an expected HTTP method/URI pair, the way the teacher's
// gateway middleware validates bearer JWTs (gateway/middleware/auth.go
// parseToken/validateClaims), but keyed by the caller-supplied holder public
// key rather than a shared HMAC secret, and checking htm/htu instead of
// iss/aud.
type JWTDPoPVerifier struct {
	ClockSkew time.Duration
}

// NewJWTDPoPVerifier builds a verifier with the given clock-skew leeway,
// defaulting to 2 minutes to match the teacher's AuthConfig default.
func NewJWTDPoPVerifier(clockSkew time.Duration) *JWTDPoPVerifier {
	if clockSkew <= 0 {
		clockSkew = 2 * time.Minute
	}
	return &JWTDPoPVerifier{ClockSkew: clockSkew}
}

// Verify parses and validates proofJWT as an EdDSA-signed DPoP proof from
// holderPublicKeyHex, bound to httpMethod/httpURI. It returns false on any
// validation failure — signature, expiry, or method/URI mismatch — rather
// than surfacing why, matching spec §7's "crypto callback exceptions are
// treated as false" rule for host predicates.
func (v *JWTDPoPVerifier) Verify(proofJWT, holderPublicKeyHex, httpMethod, httpURI string) bool {
	pubBytes, err := hex.DecodeString(holderPublicKeyHex)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	pub := ed25519.PublicKey(pubBytes)

	claims := &DPoPClaims{}
	parsed, err := jwt.ParseWithClaims(proofJWT, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, errors.New("unexpected DPoP signing method")
		}
		return pub, nil
	}, jwt.WithLeeway(v.ClockSkew), jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !parsed.Valid {
		return false
	}
	if !strings.EqualFold(claims.HTTPMethod, httpMethod) {
		return false
	}
	if claims.HTTPURI != httpURI {
		return false
	}
	return true
}

// Callback binds Verify's non-bool-returning parameters into a zero-arg
// closure suitable for policy.CryptoCallbacks.DpopOk (spec §4.2.1 — dpop_ok?
// takes no operator arguments).
func (v *JWTDPoPVerifier) Callback(proofJWT, holderPublicKeyHex, httpMethod, httpURI string) func() bool {
	return func() bool {
		return v.Verify(proofJWT, holderPublicKeyHex, httpMethod, httpURI)
	}
}

package splcrypto

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// serviceKeySalt is the fixed HKDF salt used for per-service key derivation
// (spec §4.4). It is ASCII, not secret — every deployment of this system uses
// the same salt, and unlinkability across services comes from the info
// parameter (the service domain), not the salt.
const serviceKeySalt = "agent-safe-v1"

// HKDFExpand runs RFC 5869 HKDF-SHA-256 extract-then-expand over (secret,
// salt, info) and returns length bytes of keying material. An empty salt is
// treated as 32 zero bytes by the underlying extract step, per RFC 5869.
func HKDFExpand(secret, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeriveServiceKey derives a per-service Ed25519 keypair from a master key
// and a service domain string (spec §4.4). Distinct serviceDomains yield
// independent, unlinkable public keys; identical inputs are deterministic.
// Returns (publicKeyHex, privateSeedHex).
func DeriveServiceKey(masterKeyHex, serviceDomain string) (publicKeyHex, privateSeedHex string, err error) {
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return "", "", ErrBadHex
	}
	seed, err := HKDFExpand(master, []byte(serviceKeySalt), []byte(serviceDomain), 32)
	if err != nil {
		return "", "", err
	}
	pub, err := PublicFromSeed(seed)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(pub), hex.EncodeToString(seed), nil
}

// Package splcrypto implements the deterministic, stateless crypto
// primitives the policy language and token envelope depend on: Ed25519
// verification, SHA-256/HMAC/HKDF, Merkle proof verification, hash-chain
// verification, and per-service key derivation (spec §4.4).
package splcrypto

import (
	"crypto/ed25519"
	"encoding/hex"
)

// VerifyEd25519 performs strict Ed25519 verification (RFC 8032) of
// signatureHex over message using publicKeyHex. Any hex-decode failure,
// wrong-length key/signature, or invalid point is reported as false rather
// than an error — callers never get to branch on "why" a signature failed
// (spec §4.4, §7: diagnostics are advisory, never security-relevant).
func VerifyEd25519(message []byte, signatureHex, publicKeyHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

// GenerateKeypair returns a fresh Ed25519 keypair as (publicKeyHex,
// privateKeySeedHex). The private half is the 32-byte seed, not the 64-byte
// expanded key, matching the hex length mint() expects (spec §4.5).
func GenerateKeypair() (publicKeyHex, privateSeedHex string, err error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", err
	}
	seed := priv.Seed()
	return hex.EncodeToString(pub), hex.EncodeToString(seed), nil
}

// PublicFromSeed derives the Ed25519 public key from a 32-byte seed.
func PublicFromSeed(seed []byte) (ed25519.PublicKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrBadKeyLength
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), nil
}

// SignWithSeed signs message with the Ed25519 private key derived from seed.
func SignWithSeed(seed, message []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrBadKeyLength
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return ed25519.Sign(priv, message), nil
}

// Package token implements the capability-token envelope: the canonical
// signing payload, minting, and verification described in spec §3.3 and
// §4.5, layered on top of internal/splcrypto and internal/policy.
package token

// Token is a signed capability token. Optional fields are pointers so that
// JSON serialization can omit them entirely when absent (spec §3.3, §6),
// rather than emitting an explicit null.
type Token struct {
	Version              string  `json:"version"`
	Policy               string  `json:"policy"`
	MerkleRoot           *string `json:"merkle_root,omitempty"`
	HashChainCommitment  *string `json:"hash_chain_commitment,omitempty"`
	Sealed               bool    `json:"sealed"`
	Expires              *string `json:"expires,omitempty"`
	PublicKey            string  `json:"public_key"`
	Signature            string  `json:"signature"`
	PopKey               *string `json:"pop_key,omitempty"`
}

// CurrentVersion is the envelope version stamped onto every minted token.
const CurrentVersion = "0.1.0"

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package token

import "strings"

// signingSeparator is the single NUL byte joining the five covered fields.
// Spec §4.5 and §9 fix this byte-exactly: implementations must not change
// the separator or field order. No covered field can itself contain a NUL —
// all are hex strings or trimmed policy text — so the join is unambiguous.
const signingSeparator = "\x00"

// SigningPayload builds the canonical byte string Ed25519 signs over: policy
// (trimmed), merkle_root-or-empty, hash_chain_commitment-or-empty, "1"/"0"
// for sealed, expires-or-empty — joined by a single NUL (spec §4.5).
func SigningPayload(policyText, merkleRoot, hashChainCommitment string, sealed bool, expires string) []byte {
	sealedFlag := "0"
	if sealed {
		sealedFlag = "1"
	}
	fields := []string{
		strings.TrimSpace(policyText),
		merkleRoot,
		hashChainCommitment,
		sealedFlag,
		expires,
	}
	return []byte(strings.Join(fields, signingSeparator))
}

// signingPayloadFor recomputes the signing payload from a received Token's
// own fields, never from a claimed/cached signature (spec §4.5 step 1).
func signingPayloadFor(t *Token) []byte {
	return SigningPayload(
		t.Policy,
		derefOrEmpty(t.MerkleRoot),
		derefOrEmpty(t.HashChainCommitment),
		t.Sealed,
		derefOrEmpty(t.Expires),
	)
}

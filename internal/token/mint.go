package token

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agent-safe/splcap/internal/splcrypto"
)

// MintOptions captures the optional fields a minted token may commit to
// (spec §4.5).
type MintOptions struct {
	MerkleRoot          string
	HashChainCommitment string
	Sealed              bool
	Expires             string
	// PopKey, if set, binds presentation of this token to the holder of the
	// matching private key (spec §3.3, §4.5 step 3).
	PopKey string
}

// Mint signs policy with the Ed25519 key derived from privateSeedHex and
// returns the resulting Token. The signature covers the full canonical
// signing payload (spec §4.5), not just the policy text.
func Mint(policy string, privateSeedHex string, opts MintOptions) (*Token, error) {
	seed, err := hex.DecodeString(privateSeedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(seed) != 32 {
		return nil, splcrypto.ErrBadKeyLength
	}
	pub, err := splcrypto.PublicFromSeed(seed)
	if err != nil {
		return nil, err
	}

	trimmedPolicy := strings.TrimSpace(policy)
	payload := SigningPayload(trimmedPolicy, opts.MerkleRoot, opts.HashChainCommitment, opts.Sealed, opts.Expires)

	sig, err := splcrypto.SignWithSeed(seed, payload)
	if err != nil {
		return nil, err
	}

	return &Token{
		Version:             CurrentVersion,
		Policy:              trimmedPolicy,
		MerkleRoot:          strPtr(opts.MerkleRoot),
		HashChainCommitment: strPtr(opts.HashChainCommitment),
		Sealed:              opts.Sealed,
		Expires:             strPtr(opts.Expires),
		PublicKey:           hex.EncodeToString(pub),
		Signature:           hex.EncodeToString(sig),
		PopKey:              strPtr(opts.PopKey),
	}, nil
}

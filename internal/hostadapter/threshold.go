package hostadapter

import (
	"sync"

	"github.com/agent-safe/splcap/internal/splcrypto"
)

// CoSignature is one candidate signature in a threshold co-signature check.
type CoSignature struct {
	PublicKeyHex string
	SignatureHex string
}

// ThresholdRegistry backs thresh_ok?: k-of-n co-signature verification
// against a registered set of public keys (spec §4.2.1, §9 — "thresh_ok? is
// a stub in v0.1 but its interface is fixed: a boolean returned by the host
// after checking k-of-n co-signatures against registered public keys").
// Grounded on the validator-quorum counting loop in the teacher's consensus
// BFT engine (consensus/bft/bft.go verifySignature + voting-power quorum),
// repurposed from voting power to a flat signature count.
type ThresholdRegistry struct {
	mu        sync.RWMutex
	threshold int
	members   map[string]struct{}
}

// NewThresholdRegistry registers the given public keys (hex) as eligible
// co-signers and requires at least k of them to sign for CheckMessage to
// report true.
func NewThresholdRegistry(k int, memberPublicKeysHex []string) *ThresholdRegistry {
	members := make(map[string]struct{}, len(memberPublicKeysHex))
	for _, pk := range memberPublicKeysHex {
		members[pk] = struct{}{}
	}
	return &ThresholdRegistry{threshold: k, members: members}
}

// CheckMessage reports whether at least the registered threshold of
// signatures over message, from distinct registered members, verify.
func (r *ThresholdRegistry) CheckMessage(message []byte, sigs []CoSignature) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(sigs))
	valid := 0
	for _, sig := range sigs {
		if _, ok := r.members[sig.PublicKeyHex]; !ok {
			continue
		}
		if _, dup := seen[sig.PublicKeyHex]; dup {
			continue
		}
		if !splcrypto.VerifyEd25519(message, sig.SignatureHex, sig.PublicKeyHex) {
			continue
		}
		seen[sig.PublicKeyHex] = struct{}{}
		valid++
	}
	return valid >= r.threshold
}

// ThreshOkCallback closes over a fixed message and signature set so it can
// be handed directly to policy.CryptoCallbacks.ThreshOk, whose operator
// takes no arguments (spec §4.2.1 — thresh_ok? is a zero-arg operator, so any
// per-call parameters must be bound before the policy evaluates).
func (r *ThresholdRegistry) ThreshOkCallback(message []byte, sigs []CoSignature) func() bool {
	return func() bool {
		return r.CheckMessage(message, sigs)
	}
}

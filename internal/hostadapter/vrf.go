package hostadapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// HMACVrfStub backs vrf_ok? with a deterministic, keyed pseudo-random draw.
// It is NOT a cryptographic verifiable random function: there is no proof a
// third party can check, only a shared-secret HMAC a holder of the actor's
// key can reproduce. Spec §9 calls vrf_ok? "a stub in v0.1" with a fixed
// boolean-returning interface; this type fills that interface for tests and
// local development the same way the teacher's consensus package keeps a
// deterministic "seed" draw for non-production selection paths, not an
// actual VRF.
type HMACVrfStub struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewHMACVrfStub builds an empty actor-key registry.
func NewHMACVrfStub() *HMACVrfStub {
	return &HMACVrfStub{keys: make(map[string][]byte)}
}

// Register associates actor with a secret key used to derive its draws.
func (v *HMACVrfStub) Register(actor string, key []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[actor] = append([]byte(nil), key...)
}

// Draw computes actor's deterministic pseudo-random value for day, scaled
// into [0, modulus). A modulus of zero always returns 0.
func (v *HMACVrfStub) Draw(actor, day string, modulus uint64) uint64 {
	if modulus == 0 {
		return 0
	}
	v.mu.RLock()
	key := v.keys[actor]
	v.mu.RUnlock()
	if key == nil {
		return 0
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s|%s", actor, day)
	sum := mac.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]) % modulus
}

// CheckThreshold reports whether actor's draw for day falls below threshold
// out of modulus, the shape vrf_ok? needs for "does this actor's random
// draw clear the bar" checks.
func (v *HMACVrfStub) CheckThreshold(actor, day string, threshold, modulus uint64) bool {
	return v.Draw(actor, day, modulus) < threshold
}

// VrfOkCallback binds actor/modulus into a policy.CryptoCallbacks.
// VrfOk-shaped closure: vrf_ok?(day, amount) passes day and amount straight
// through from the operator's evaluated arguments, with amount read as the
// draw's numerator against the registry's fixed modulus (spec §4.2.1).
func (v *HMACVrfStub) VrfOkCallback(actor string, modulus uint64) func(day string, amount float64) bool {
	return func(day string, amount float64) bool {
		return v.CheckThreshold(actor, day, uint64(amount), modulus)
	}
}

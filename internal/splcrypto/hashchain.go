package splcrypto

import "encoding/hex"

// VerifyHashChain checks a use-count receipt: starting from preimageHex,
// SHA-256 is iterated (chainLength - index) times and compared against
// commitmentHex (spec §4.4). index > chainLength is a verification failure,
// not a panic. That guard keeps steps (a signed int) non-negative; a
// negative index is not rejected and only adds iterations.
func VerifyHashChain(commitmentHex, preimageHex string, index, chainLength int) bool {
	if index > chainLength {
		return false
	}
	current, err := hex.DecodeString(preimageHex)
	if err != nil {
		return false
	}
	steps := chainLength - index
	for i := 0; i < steps; i++ {
		current = SHA256(current)
	}
	return hex.EncodeToString(current) == commitmentHex
}

package hostadapter

import (
	"github.com/agent-safe/splcap/internal/policy"
	"github.com/agent-safe/splcap/internal/splcrypto"
)

// DefaultMerkleCallback adapts the core splcrypto.VerifyMerkleProof primitive
// into a policy.CryptoCallbacks.MerkleOk closure bound to rootHex. The
// merkle_ok? argument list is the leaf value followed by alternating
// sibling-hex/position string pairs; any shape mismatch is a plain false, not
// a panic or a parse error, matching how every other crypto predicate fails
// closed on malformed input.
func DefaultMerkleCallback(rootHex string) func([]policy.Value) bool {
	return func(args []policy.Value) bool {
		if len(args) < 1 || len(args)%2 != 1 {
			return false
		}
		if args[0].Kind() != policy.KindStr && args[0].Kind() != policy.KindSymbol {
			return false
		}
		leaf := args[0].AsString()
		proof := make([]splcrypto.MerkleStep, 0, len(args)/2)
		for i := 1; i < len(args); i += 2 {
			if args[i].Kind() != policy.KindStr && args[i].Kind() != policy.KindSymbol {
				return false
			}
			sibling := args[i].AsString()
			if args[i+1].Kind() != policy.KindStr && args[i+1].Kind() != policy.KindSymbol {
				return false
			}
			position := args[i+1].AsString()
			var pos splcrypto.MerklePosition
			switch position {
			case string(splcrypto.PositionLeft):
				pos = splcrypto.PositionLeft
			case string(splcrypto.PositionRight):
				pos = splcrypto.PositionRight
			default:
				return false
			}
			proof = append(proof, splcrypto.MerkleStep{SiblingHex: sibling, Position: pos})
		}
		return splcrypto.VerifyMerkleProof([]byte(leaf), proof, rootHex)
	}
}

package splcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA256Hex returns the hex-encoded SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	return hex.EncodeToString(SHA256(data))
}

// HMACSHA256 computes the standard HMAC-SHA-256 MAC of message under key,
// using the standard library construction (64-byte block size; keys longer
// than the block size are hashed first, per RFC 2104).
func HMACSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

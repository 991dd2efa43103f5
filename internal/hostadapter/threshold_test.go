package hostadapter

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agent-safe/splcap/internal/splcrypto"
)

func signMessage(t *testing.T, message []byte) (pubHex, sigHex string) {
	t.Helper()
	pub, seedHex, err := splcrypto.GenerateKeypair()
	require.NoError(t, err)
	seed, err := hex.DecodeString(seedHex)
	require.NoError(t, err)
	sig, err := splcrypto.SignWithSeed(seed, message)
	require.NoError(t, err)
	return pub, hex.EncodeToString(sig)
}

func TestThresholdRegistryMeetsThreshold(t *testing.T) {
	message := []byte("release-funds")
	pubA, sigA := signMessage(t, message)
	pubB, sigB := signMessage(t, message)
	pubC, _ := signMessage(t, message)

	registry := NewThresholdRegistry(2, []string{pubA, pubB, pubC})
	ok := registry.CheckMessage(message, []CoSignature{
		{PublicKeyHex: pubA, SignatureHex: sigA},
		{PublicKeyHex: pubB, SignatureHex: sigB},
	})
	require.True(t, ok)
}

func TestThresholdRegistryFailsBelowThreshold(t *testing.T) {
	message := []byte("release-funds")
	pubA, sigA := signMessage(t, message)
	pubB, _ := signMessage(t, message)

	registry := NewThresholdRegistry(2, []string{pubA, pubB})
	ok := registry.CheckMessage(message, []CoSignature{
		{PublicKeyHex: pubA, SignatureHex: sigA},
	})
	require.False(t, ok)
}

func TestThresholdRegistryIgnoresUnregisteredSigners(t *testing.T) {
	message := []byte("release-funds")
	pubA, sigA := signMessage(t, message)
	pubOutsider, sigOutsider := signMessage(t, message)

	registry := NewThresholdRegistry(2, []string{pubA})
	ok := registry.CheckMessage(message, []CoSignature{
		{PublicKeyHex: pubA, SignatureHex: sigA},
		{PublicKeyHex: pubOutsider, SignatureHex: sigOutsider},
	})
	require.False(t, ok, "an unregistered signer must not count toward the threshold")
}

func TestThresholdRegistryIgnoresDuplicateSigner(t *testing.T) {
	message := []byte("release-funds")
	pubA, sigA := signMessage(t, message)
	pubB, _ := signMessage(t, message)

	registry := NewThresholdRegistry(2, []string{pubA, pubB})
	ok := registry.CheckMessage(message, []CoSignature{
		{PublicKeyHex: pubA, SignatureHex: sigA},
		{PublicKeyHex: pubA, SignatureHex: sigA},
	})
	require.False(t, ok, "counting the same signer twice must not satisfy the threshold")
}

func TestThresholdRegistryRejectsInvalidSignature(t *testing.T) {
	message := []byte("release-funds")
	pubA, sigA := signMessage(t, message)
	pubB, _ := signMessage(t, message)

	registry := NewThresholdRegistry(1, []string{pubA, pubB})
	ok := registry.CheckMessage([]byte("different-message"), []CoSignature{
		{PublicKeyHex: pubA, SignatureHex: sigA},
	})
	require.False(t, ok)
}

func TestThreshOkCallbackBindsMessageAndSignatures(t *testing.T) {
	message := []byte("release-funds")
	pubA, sigA := signMessage(t, message)

	registry := NewThresholdRegistry(1, []string{pubA})
	cb := registry.ThreshOkCallback(message, []CoSignature{
		{PublicKeyHex: pubA, SignatureHex: sigA},
	})
	require.True(t, cb())
}

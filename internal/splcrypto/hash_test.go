package splcrypto

import "testing"

func TestSHA256Hex(t *testing.T) {
	// Known SHA-256("") test vector.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex(nil); got != want {
		t.Fatalf("SHA256Hex(nil) = %s, want %s", got, want)
	}
}

func TestHMACSHA256Deterministic(t *testing.T) {
	a := HMACSHA256([]byte("key"), []byte("message"))
	b := HMACSHA256([]byte("key"), []byte("message"))
	if string(a) != string(b) {
		t.Fatal("HMAC must be deterministic for identical inputs")
	}
	c := HMACSHA256([]byte("key"), []byte("different"))
	if string(a) == string(c) {
		t.Fatal("HMAC must differ for different messages")
	}
}

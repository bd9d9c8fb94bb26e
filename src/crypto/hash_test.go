package crypto

import "testing"

func TestSHA256Hex(t *testing.T) {
	// sha256("abc")
	expected := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	if h := SHA256Hex([]byte("abc")); h != expected {
		t.Fatalf("expected %s, got %s", expected, h)
	}
}

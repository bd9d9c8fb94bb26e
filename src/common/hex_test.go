package common

import (
	"errors"
	"testing"
)

func TestEncodeToString(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	s := EncodeToString(data)
	if s != "deadbeef" {
		t.Fatalf("expected deadbeef, got %s", s)
	}
}

func TestIsStore(t *testing.T) {
	err := NewStoreErr("Block", KeyNotFound, "7")

	if !IsStore(err, KeyNotFound) {
		t.Fatal("expected KeyNotFound")
	}
	if IsStore(errors.New("7 not found"), KeyNotFound) {
		t.Fatal("plain errors are not store errors")
	}
	if err.Error() != "Block, 7, Not Found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

// Package sha256 includes tests for the image digest adapter.
package sha256

import (
	"strings"
	"testing"
)

// TestHasherKnownVectors checks the digest against published SHA-256 vectors.
func TestHasherKnownVectors(t *testing.T) {
	t.Parallel()

	h := New()
	vectors := []struct {
		name string
		in   []byte
		want string
	}{
		{
			name: "empty payload",
			in:   nil,
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "abc",
			in:   []byte("abc"),
			want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range vectors {
		got, err := h.Hash(tt.in)
		if err != nil {
			t.Fatalf("Hash(%s) error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("Hash(%s) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

// TestHasherDigestShape ensures digests are stable, lowercase hex, and
// distinguish distinct payloads.
func TestHasherDigestShape(t *testing.T) {
	t.Parallel()

	h := New()
	payload := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

	first, err := h.Hash(payload)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	second, err := h.Hash(payload)
	if err != nil {
		t.Fatalf("Hash() repeat error = %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic digest, got %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(first))
	}
	if first != strings.ToLower(first) {
		t.Fatalf("expected lowercase hex, got %s", first)
	}

	other, err := h.Hash([]byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if other == first {
		t.Fatal("expected distinct payloads to produce distinct digests")
	}
}

package imagehash

import (
	"bytes"
	"strings"
	"testing"
)

func TestContentHashDeterministic(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x01, 0x02, 0x03}

	first, err := ContentHash(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Unexpected error from ContentHash: %v", err)
	}

	second, err := ContentHash(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Unexpected error from ContentHash: %v", err)
	}

	if first != second {
		t.Errorf("Hashes of identical bytes differ; got %q and %q", first, second)
	}
}

func TestContentHashDiffers(t *testing.T) {
	first, err := ContentHash(strings.NewReader("image-bytes-one"))
	if err != nil {
		t.Fatalf("Unexpected error from ContentHash: %v", err)
	}

	second, err := ContentHash(strings.NewReader("image-bytes-two"))
	if err != nil {
		t.Fatalf("Unexpected error from ContentHash: %v", err)
	}

	if first == second {
		t.Errorf("Hashes of differing bytes collide: %q", first)
	}
}

func TestContentHashEmpty(t *testing.T) {
	got, err := ContentHash(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Unexpected error from ContentHash: %v", err)
	}

	// SHA-256 of the empty string.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("Bad hash for empty input; got %q, want %q", got, want)
	}
}

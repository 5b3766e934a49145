package otp

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	pass, err := Generate(10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(pass) != 10 {
		t.Fatalf("length = %d, want 10", len(pass))
	}
	for _, c := range pass {
		if !strings.ContainsRune(Alphabet, c) {
			t.Fatalf("character %q outside alphabet", c)
		}
	}

	// Zero and negative lengths fall back to the default.
	pass, err = Generate(0)
	if err != nil {
		t.Fatalf("Generate(0): %v", err)
	}
	if len(pass) != DefaultLength {
		t.Fatalf("default length = %d, want %d", len(pass), DefaultLength)
	}
}

func TestAlphabet_OmitsConfusables(t *testing.T) {
	t.Parallel()
	for _, c := range "0O1I" {
		if strings.ContainsRune(Alphabet, c) {
			t.Fatalf("alphabet contains confusable %q", c)
		}
	}
}

func TestHashVerify(t *testing.T) {
	t.Parallel()

	digest := Hash("ABCD2345EF")
	if len(digest) != 64 {
		t.Fatalf("digest length = %d", len(digest))
	}
	if digest != Hash("ABCD2345EF") {
		t.Fatalf("hash is not deterministic")
	}

	if !Verify("ABCD2345EF", digest) {
		t.Fatalf("correct passcode rejected")
	}
	if Verify("ABCD2345EG", digest) {
		t.Fatalf("wrong passcode accepted")
	}
	if Verify("", digest) {
		t.Fatalf("empty passcode accepted")
	}
}

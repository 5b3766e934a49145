// Package otp generates, hashes, and verifies one-time passcodes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

// Alphabet excludes visually confusable characters (no 0/O, no 1/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultLength is the passcode length used when none is configured.
const DefaultLength = 10

// Generate returns a random passcode of the given length drawn from Alphabet.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out), nil
}

// Hash returns the hex SHA-256 digest of a passcode. Deterministic and
// unsalted: each OTP is single-use and bound to one registry entry with its
// own attempt counter, so a stored salt would add nothing here.
func Hash(otp string) string {
	sum := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(sum[:])
}

// Verify compares a submitted passcode against a stored digest in constant
// time. Attempt accounting and lockout belong to the caller: that state
// lives in the export-link record, not here.
func Verify(otp, digest string) bool {
	got := Hash(otp)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

// Package crypto implements key derivation and the message chain MAC.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/hkdf"
)

// KeyLen is the length of every derived symmetric key, in bytes.
const KeyLen = 32

// keyInfo is the HKDF domain-separation label for persistent per-user keys.
const keyInfo = "chatvault-user-key-v1"

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveUserKey derives a per-user storage key via HKDF-SHA256 over
// master||seed with a per-user salt and a fixed domain label.
func DeriveUserKey(master, seed []byte, userID int64) ([]byte, error) {
	salt := sha256.Sum256([]byte(strconv.FormatInt(userID, 10)))
	ikm := make([]byte, 0, len(master)+len(seed))
	ikm = append(ikm, master...)
	ikm = append(ikm, seed...)

	r := hkdf.New(sha256.New, ikm, salt[:], []byte(keyInfo))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

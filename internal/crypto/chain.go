package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ChainKey derives the process-wide chain MAC key from the master secret.
// It is not per-user: chain verification needs no user key material.
func ChainKey(master []byte) []byte {
	h := sha256.New()
	h.Write(master)
	h.Write([]byte(":chain"))
	return h.Sum(nil)
}

// ChainHash computes the hex MAC linking a message to its predecessor:
// HMAC-SHA256(chainKey, prev || timestamp || role || SHA-256(plaintext)).
// prev is empty for the first entry of a log.
func ChainHash(chainKey []byte, prev, timestamp, role string, plaintext []byte) string {
	sum := sha256.Sum256(plaintext)
	mac := hmac.New(sha256.New, chainKey)
	mac.Write([]byte(prev))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(role))
	mac.Write(sum[:])
	return hex.EncodeToString(mac.Sum(nil))
}

// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across vault/registry/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist (or was revoked).
	ErrNotFound = errors.New("not found")

	// ErrStorage indicates the backing store is unreadable or unwritable.
	// Operations surface it instead of falling back to ephemeral state.
	ErrStorage = errors.New("storage failure")

	// ErrDecryption indicates an AEAD authentication failure on a stored ciphertext.
	ErrDecryption = errors.New("decryption failure")

	// ErrTokenInvalid indicates a malformed or tampered signed token.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrOTPInvalid indicates a mismatched one-time passcode.
	ErrOTPInvalid = errors.New("invalid otp")

	// ErrLocked indicates the link exhausted its OTP attempt budget. Terminal for the link.
	ErrLocked = errors.New("locked")

	// ErrIPMismatch indicates a request from an address other than the pinned one.
	// Terminal for the request, not for the link.
	ErrIPMismatch = errors.New("ip mismatch")

	// ErrQuotaExhausted indicates the download limit was reached.
	ErrQuotaExhausted = errors.New("quota exhausted")

	// ErrArtifactMissing indicates the artifact file is gone; the stale entry is purged.
	ErrArtifactMissing = errors.New("artifact missing")
)

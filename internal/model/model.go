// Package model defines domain entities used by services and stores.
package model

import (
	"os"
	"time"
)

// Role identifies the author of a stored conversation message.
type Role string

// Valid message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// EncryptedContent is an AEAD-sealed message body as persisted on disk.
// Field names match the stored record format (alg/iv/ct, base64 payloads).
type EncryptedContent struct {
	Alg        string `json:"alg"`
	Nonce      []byte `json:"iv"`
	Ciphertext []byte `json:"ct"`
}

// StoredMessage is one append-only entry of a user's conversation log.
// Entries are never mutated or reordered after append.
type StoredMessage struct {
	Role    Role             `json:"role"`
	Content EncryptedContent `json:"content_enc"`
	// Timestamp is ISO-8601 UTC as produced by the orchestration layer.
	Timestamp string `json:"timestamp"`
	// ChainHash links this entry to its predecessor (hex HMAC-SHA256).
	// Legacy records may miss it; appends treat an absent hash as the
	// empty predecessor instead of failing.
	ChainHash     string   `json:"chain_hash,omitempty"`
	RedactionTags []string `json:"pii_tags"`
}

// Message is a decrypted view of a stored entry, for display and export.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ExportLink is the registry record behind one single-use download link.
// The opaque token is the registry key and travels out-of-band; it is not
// serialized inside the record itself.
type ExportLink struct {
	Token        string    `json:"-"`
	UserID       int64     `json:"user_id"`
	ArtifactPath string    `json:"file_path"`
	CreatedAt    time.Time `json:"created_at"`
	Downloads    int       `json:"downloads"`
	MaxDownloads int       `json:"max_downloads"`
	// IPLock pins the link to the first redeemer's address; once set it
	// never changes for the life of the entry.
	IPLock *string `json:"ip_lock"`
	Note   string  `json:"note"`
	// OTPHash is hex SHA-256 of the one-time passcode.
	OTPHash     string `json:"otp_hash"`
	OTPAttempts int    `json:"otp_attempts"`
	// Locked is one-way: set when the attempt budget is exhausted, never reset.
	Locked   bool   `json:"locked"`
	RevokeID string `json:"revoke_id"`
}

// ReleaseGrant is an authorized artifact release. The file is already open,
// so streaming survives delete-on-exhaustion cleanup. Caller closes File.
type ReleaseGrant struct {
	File *os.File
	Name string
	Size int64
}

// Package vault encrypts per-user conversation logs at rest and maintains
// the tamper-evident hash chain over them.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/crypto"
	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
)

// Placeholder replaces a message whose ciphertext no longer authenticates.
// A single bad record degrades to this value instead of aborting the batch,
// so the rest of the conversation stays usable.
const Placeholder = "(decryption of this message is not possible due to security policy)"

const gcmNonceLen = 12

// KeySource supplies per-user storage keys.
type KeySource interface {
	GetOrCreateKey(userID int64) ([]byte, error)
}

// Vault is the message store. Appends for all users are serialized by one
// vault-wide mutex; chain order therefore matches append order per user.
type Vault struct {
	store    *logStore
	keys     KeySource
	chainKey []byte
	log      *zap.Logger

	mu sync.Mutex
}

// New constructs a Vault persisting logs under dataDir.
func New(dataDir string, keys KeySource, master []byte, log *zap.Logger) *Vault {
	return &Vault{
		store:    &logStore{dir: dataDir},
		keys:     keys,
		chainKey: crypto.ChainKey(master),
		log:      log,
	}
}

// Encrypt seals plaintext with the user's key (AES-GCM, random 96-bit nonce).
func (v *Vault) Encrypt(userID int64, plaintext string) (model.EncryptedContent, error) {
	aead, err := v.aead(userID)
	if err != nil {
		return model.EncryptedContent{}, err
	}
	nonce, err := crypto.RandBytes(gcmNonceLen)
	if err != nil {
		return model.EncryptedContent{}, fmt.Errorf("nonce: %w", err)
	}
	return model.EncryptedContent{
		Alg:        "AES-GCM",
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, []byte(plaintext), nil),
	}, nil
}

// Decrypt opens a sealed message body. Authentication failure (wrong key,
// corruption, tampering) yields ErrDecryption; callers are expected to
// degrade to Placeholder rather than propagate it as a crash.
func (v *Vault) Decrypt(userID int64, enc model.EncryptedContent) (string, error) {
	aead, err := v.aead(userID)
	if err != nil {
		return "", err
	}
	if len(enc.Nonce) != gcmNonceLen {
		return "", fmt.Errorf("%w: bad nonce length %d", errs.ErrDecryption, len(enc.Nonce))
	}
	pt, err := aead.Open(nil, enc.Nonce, enc.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}
	return string(pt), nil
}

// Append encrypts and appends one message, extending the hash chain from the
// last stored entry (or the empty predecessor for a fresh log). The log file
// is rewritten atomically; a failed write leaves the previous log intact.
func (v *Vault) Append(userID int64, role model.Role, plaintext, timestamp string) error {
	if !role.Valid() {
		return fmt.Errorf("validation: unknown role %q", role)
	}
	enc, err := v.Encrypt(userID, plaintext)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	log, err := v.store.load(userID)
	if err != nil {
		return err
	}
	prev := ""
	if len(log) > 0 {
		prev = log[len(log)-1].ChainHash
	}
	log = append(log, model.StoredMessage{
		Role:          role,
		Content:       enc,
		Timestamp:     timestamp,
		ChainHash:     crypto.ChainHash(v.chainKey, prev, timestamp, string(role), []byte(plaintext)),
		RedactionTags: []string{},
	})
	return v.store.save(userID, log)
}

// VerifyChain recomputes the chain from index 0 and reports whether every
// stored hash matches. Any insertion, deletion, edit, or reorder of a prior
// entry breaks the recomputation.
func (v *Vault) VerifyChain(userID int64) (bool, error) {
	v.mu.Lock()
	log, err := v.store.load(userID)
	v.mu.Unlock()
	if err != nil {
		return false, err
	}

	prev := ""
	for i := range log {
		pt, err := v.Decrypt(userID, log[i].Content)
		if err != nil {
			if errors.Is(err, errs.ErrDecryption) {
				return false, nil
			}
			return false, err
		}
		want := crypto.ChainHash(v.chainKey, prev, log[i].Timestamp, string(log[i].Role), []byte(pt))
		if log[i].ChainHash != want {
			return false, nil
		}
		prev = log[i].ChainHash
	}
	return true, nil
}

// History returns the last n messages decrypted for display. Entries that no
// longer authenticate are replaced with Placeholder and logged.
func (v *Vault) History(userID int64, n int) ([]model.Message, error) {
	v.mu.Lock()
	log, err := v.store.load(userID)
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	return v.decryptAll(userID, log), nil
}

// Range returns up to limit decrypted messages whose timestamps fall within
// [from, to]. Entries with unparseable timestamps are skipped.
func (v *Vault) Range(userID int64, from, to time.Time, limit int) ([]model.Message, error) {
	v.mu.Lock()
	log, err := v.store.load(userID)
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var picked []model.StoredMessage
	for i := range log {
		ts, err := time.Parse(time.RFC3339, log[i].Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}
		picked = append(picked, log[i])
		if limit > 0 && len(picked) == limit {
			break
		}
	}
	return v.decryptAll(userID, picked), nil
}

func (v *Vault) decryptAll(userID int64, log []model.StoredMessage) []model.Message {
	msgs := make([]model.Message, 0, len(log))
	for i := range log {
		pt, err := v.Decrypt(userID, log[i].Content)
		if err != nil {
			v.log.Error("decryption failed, substituting placeholder",
				zap.Int64("user_id", userID),
				zap.String("timestamp", log[i].Timestamp),
				zap.Error(err),
			)
			pt = Placeholder
		}
		msgs = append(msgs, model.Message{
			Role:      log[i].Role,
			Content:   pt,
			Timestamp: log[i].Timestamp,
		})
	}
	return msgs
}

func (v *Vault) aead(userID int64) (cipher.AEAD, error) {
	key, err := v.keys.GetOrCreateKey(userID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// Package vault encrypts and decrypts vendor credentials.
//
// Blob layout: 1-byte key version || 12-byte GCM nonce || ciphertext.
// Decryption tries the current master key first and falls back to the
// previous key to support rotation. Decrypted plaintext must be wiped by the
// caller with Zero once the job is done; it never traverses logs or audit
// records.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

const (
	keyVersionCurrent  byte = 1
	keyVersionPrevious byte = 2

	nonceSize = 12
)

// Vault holds the master keys. Opaque to the rest of the engine: the core only
// sees Encrypt and Decrypt.
type Vault struct {
	current  []byte
	previous []byte // nil when no rotation key is configured
}

// New builds a Vault from hex-encoded 32-byte master keys. previousHex may be
// empty. The constructor runs an encrypt/decrypt self-test so a corrupt key
// aborts startup instead of failing mid-poll.
func New(currentHex, previousHex string) (*Vault, error) {
	current, err := decodeKey(currentHex)
	if err != nil {
		return nil, fmt.Errorf("current master key: %w", err)
	}
	var previous []byte
	if previousHex != "" {
		previous, err = decodeKey(previousHex)
		if err != nil {
			return nil, fmt.Errorf("previous master key: %w", err)
		}
	}

	v := &Vault{current: current, previous: previous}
	if err := v.selfTest(); err != nil {
		return nil, fmt.Errorf("vault self-test: %w", err)
	}
	return v, nil
}

func decodeKey(hexKey string) ([]byte, error) {
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("must be 64 hex chars (32 bytes), got %d", len(hexKey))
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return key, nil
}

// selfTest round-trips a probe value through the current key.
func (v *Vault) selfTest() error {
	probe := []byte("vault-self-test")
	blob, err := v.Encrypt(probe)
	if err != nil {
		return err
	}
	got, err := v.Decrypt(blob)
	if err != nil {
		return err
	}
	defer Zero(got)
	if !bytes.Equal(probe, got) {
		return fmt.Errorf("round-trip mismatch")
	}
	return nil
}

// Encrypt seals plaintext under the current master key.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(v.current)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	blob := make([]byte, 0, 1+nonceSize+len(plaintext)+gcm.Overhead())
	blob = append(blob, keyVersionCurrent)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)
	return blob, nil
}

// Decrypt opens a blob. The current key is tried first; the previous key is
// tried only if the current one fails. A blob neither key can open is an
// AUTH_FAILED error: the plant gets quarantined, not retried.
func (v *Vault) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < 1+nonceSize+1 {
		return nil, apperrors.AuthFailed("credential blob too short")
	}
	nonce := blob[1 : 1+nonceSize]
	ciphertext := blob[1+nonceSize:]

	plaintext, err := open(v.current, nonce, ciphertext)
	if err == nil {
		return plaintext, nil
	}
	if v.previous != nil {
		plaintext, err = open(v.previous, nonce, ciphertext)
		if err == nil {
			return plaintext, nil
		}
	}
	return nil, apperrors.AuthFailed("credential decryption failed")
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm mode: %w", err)
	}
	return gcm, nil
}

// Zero wipes a plaintext buffer in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

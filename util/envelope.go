package util

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/mailio/go-keyless-server/types"
	"golang.org/x/crypto/chacha20poly1305"
)

const DataKeySize = chacha20poly1305.KeySize

// Seal encrypts plaintext with XChaCha20-Poly1305, returns base64(nonce || ciphertext)
func Seal(key, plaintext, additionalData []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, additionalData)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any tampering (ciphertext, nonce, additional data or key) returns ErrDecryptionFailed.
func Open(key []byte, sealed string, additionalData []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, types.ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:], additionalData)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return plaintext, nil
}

// Keyring holds the master keys that wrap per-record data keys. Only the active key wraps,
// every known key unwraps, so old records stay readable after rotation.
type Keyring struct {
	activeID string
	keys     map[string][]byte
}

func NewKeyring(activeID string, keys map[string][]byte) (*Keyring, error) {
	for id, k := range keys {
		if len(k) != DataKeySize {
			return nil, fmt.Errorf("master key %s must be %d bytes: %w", id, DataKeySize, types.ErrBadRequest)
		}
	}
	if _, ok := keys[activeID]; !ok {
		return nil, types.ErrNoActiveMasterKey
	}
	return &Keyring{activeID: activeID, keys: keys}, nil
}

// NewKeyringFromBase64 builds a keyring from config values (id -> base64 key)
func NewKeyringFromBase64(activeID string, encoded map[string]string) (*Keyring, error) {
	keys := make(map[string][]byte, len(encoded))
	for id, e := range encoded {
		k, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("master key %s is not base64: %w", id, types.ErrBadRequest)
		}
		keys[id] = k
	}
	return NewKeyring(activeID, keys)
}

func (k *Keyring) ActiveID() string {
	return k.activeID
}

// WrapKey seals a data key under the active master key
func (k *Keyring) WrapKey(dataKey []byte) (string, string, error) {
	wrapped, err := Seal(k.keys[k.activeID], dataKey, []byte(k.activeID))
	if err != nil {
		return "", "", err
	}
	return k.activeID, wrapped, nil
}

// UnwrapKey opens a data key wrapped by any known master key
func (k *Keyring) UnwrapKey(keyID, wrapped string) ([]byte, error) {
	master, ok := k.keys[keyID]
	if !ok {
		return nil, types.ErrUnknownMasterKey
	}
	return Open(master, wrapped, []byte(keyID))
}

package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// KeylessAccount is the durable credential derived from an id token and an ephemeral key pair.
// It can sign until the id token (and the ephemeral pair) expire upstream.
type KeylessAccount struct {
	Address          string            `cbor:"1,keyasint" json:"address"`
	JWT              string            `cbor:"2,keyasint" json:"-"`
	UIDKey           string            `cbor:"3,keyasint" json:"uidKey"`
	UIDVal           string            `cbor:"4,keyasint" json:"-"`
	Aud              string            `cbor:"5,keyasint" json:"aud"`
	Iss              string            `cbor:"6,keyasint" json:"iss"`
	Pepper           []byte            `cbor:"7,keyasint" json:"-"`
	Proof            []byte            `cbor:"8,keyasint" json:"-"` // opaque proof returned by the prover
	EphemeralKeyPair *EphemeralKeyPair `cbor:"9,keyasint" json:"-"`
}

// EncodeKeylessAccount serializes the account (secret material included) as a hex blob
func EncodeKeylessAccount(account *KeylessAccount) (string, error) {
	if account == nil {
		return "", ErrBadRequest
	}
	data, err := cbor.Marshal(account)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// DecodeKeylessAccount parses a blob written by EncodeKeylessAccount
func DecodeKeylessAccount(blob string) (*KeylessAccount, error) {
	data, err := hex.DecodeString(blob)
	if err != nil {
		return nil, err
	}
	var account KeylessAccount
	if err := cbor.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	if account.Address == "" {
		return nil, fmt.Errorf("keyless account without address: %w", ErrBadRequest)
	}
	ekp := account.EphemeralKeyPair
	if ekp == nil || len(ekp.PrivateKey) != ed25519.PrivateKeySize || len(ekp.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("keyless account without signing key: %w", ErrInvalidPrivateKey)
	}
	return &account, nil
}

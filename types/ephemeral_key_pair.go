package types

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/mailio/go-keyless-server/taggedjson"
)

// EphemeralKeyPair is a short lived signing key bound to one login attempt through its nonce.
type EphemeralKeyPair struct {
	PrivateKey     ed25519.PrivateKey `cbor:"1,keyasint" json:"-"`
	PublicKey      ed25519.PublicKey  `cbor:"2,keyasint" json:"publicKey"`
	Blinder        []byte             `cbor:"3,keyasint" json:"-"`
	ExpiryDateSecs int64              `cbor:"4,keyasint" json:"expiryDateSecs"`
	Nonce          string             `cbor:"5,keyasint" json:"nonce"`
}

// IsExpired reports whether the pair can no longer be used at unix time now
func (e *EphemeralKeyPair) IsExpired(nowSecs int64) bool {
	return e.ExpiryDateSecs <= nowSecs
}

// ToValue converts the pair into its storage representation
func (e *EphemeralKeyPair) ToValue() taggedjson.Value {
	return taggedjson.Object{
		"privateKey":     taggedjson.Bytes(e.PrivateKey.Seed()),
		"publicKey":      taggedjson.Bytes(e.PublicKey),
		"blinder":        taggedjson.Bytes(e.Blinder),
		"expiryDateSecs": taggedjson.NewBigInt(big.NewInt(e.ExpiryDateSecs)),
		"nonce":          taggedjson.String(e.Nonce),
	}
}

// EphemeralKeyPairFromValue validates and converts a storage value back into a pair
func EphemeralKeyPairFromValue(v taggedjson.Value) (*EphemeralKeyPair, error) {
	obj, ok := v.(taggedjson.Object)
	if !ok {
		return nil, fmt.Errorf("ephemeral key pair is not an object: %w", ErrBadRequest)
	}
	seed, ok := obj["privateKey"].(taggedjson.Bytes)
	if !ok || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ephemeral private key: %w", ErrInvalidPrivateKey)
	}
	pub, ok := obj["publicKey"].(taggedjson.Bytes)
	if !ok || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ephemeral public key: %w", ErrInvalidPublicKey)
	}
	blinder, ok := obj["blinder"].(taggedjson.Bytes)
	if !ok {
		return nil, fmt.Errorf("ephemeral blinder missing: %w", ErrBadRequest)
	}
	expiry, ok := obj["expiryDateSecs"].(taggedjson.BigInt)
	if !ok || expiry.Int == nil || !expiry.Int.IsInt64() {
		return nil, fmt.Errorf("ephemeral expiry: %w", ErrBadRequest)
	}
	nonce, ok := obj["nonce"].(taggedjson.String)
	if !ok || nonce == "" {
		return nil, fmt.Errorf("ephemeral nonce: %w", ErrInvalidNonce)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), pub) {
		return nil, fmt.Errorf("ephemeral public key doesn't match private key: %w", ErrInvalidPublicKey)
	}
	return &EphemeralKeyPair{
		PrivateKey:     priv,
		PublicKey:      ed25519.PublicKey(append([]byte(nil), pub...)),
		Blinder:        append([]byte(nil), blinder...),
		ExpiryDateSecs: expiry.Int.Int64(),
		Nonce:          string(nonce),
	}, nil
}

// StoredEphemeralKeyPairs maps nonce -> pair, the unit written to session storage
type StoredEphemeralKeyPairs map[string]*EphemeralKeyPair

// EncodeStoredEphemeralKeyPairs serializes the map as tagged JSON
func EncodeStoredEphemeralKeyPairs(pairs StoredEphemeralKeyPairs) (string, error) {
	obj := make(taggedjson.Object, len(pairs))
	for nonce, pair := range pairs {
		obj[nonce] = pair.ToValue()
	}
	data, err := taggedjson.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeStoredEphemeralKeyPairs parses tagged JSON. Any malformed entry fails the whole decode.
func DecodeStoredEphemeralKeyPairs(encoded string) (StoredEphemeralKeyPairs, error) {
	v, err := taggedjson.Unmarshal([]byte(encoded))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(taggedjson.Object)
	if !ok {
		return nil, fmt.Errorf("stored ephemeral key pairs is not an object: %w", ErrBadRequest)
	}
	pairs := make(StoredEphemeralKeyPairs, len(obj))
	for nonce, item := range obj {
		pair, err := EphemeralKeyPairFromValue(item)
		if err != nil {
			return nil, err
		}
		pairs[nonce] = pair
	}
	return pairs, nil
}

package util

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/mailio/go-keyless-server/types"
)

// DefaultEphemeralLifetime is how long a login attempt (and the account derived from it) stays usable
const DefaultEphemeralLifetime = 14 * 24 * time.Hour

// GenerateEphemeralKeyPair creates a fresh key pair expiring at floor_to_hour(now + lifetime)
func GenerateEphemeralKeyPair(now time.Time, lifetime time.Duration) (*types.EphemeralKeyPair, error) {
	if lifetime <= 0 {
		lifetime = DefaultEphemeralLifetime
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	blinder, err := RandomBytes(BlinderLength)
	if err != nil {
		return nil, err
	}
	expiry := now.Add(lifetime).Truncate(time.Hour).Unix()
	return &types.EphemeralKeyPair{
		PrivateKey:     priv,
		PublicKey:      pub,
		Blinder:        blinder,
		ExpiryDateSecs: expiry,
		Nonce:          DeriveEphemeralNonce(pub, expiry, blinder),
	}, nil
}

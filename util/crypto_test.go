package util

import (
	"crypto/ed25519"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/mailio/go-keyless-server/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEphemeralKeyPair(t *testing.T) {
	now := time.Unix(1_700_000_123, 0)
	ekp, err := GenerateEphemeralKeyPair(now, time.Hour*24)
	require.NoError(t, err)

	assert.Len(t, ekp.PrivateKey, ed25519.PrivateKeySize)
	assert.Len(t, ekp.Blinder, BlinderLength)
	assert.Equal(t, int64(0), ekp.ExpiryDateSecs%3600)
	assert.Greater(t, ekp.ExpiryDateSecs, now.Unix())
	assert.Equal(t, DeriveEphemeralNonce(ekp.PublicKey, ekp.ExpiryDateSecs, ekp.Blinder), ekp.Nonce)
}

func TestNonceIsFieldElement(t *testing.T) {
	ekp, err := GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	n, ok := new(big.Int).SetString(ekp.Nonce, 10)
	require.True(t, ok)
	assert.Equal(t, -1, n.Cmp(fieldOrder))
	assert.GreaterOrEqual(t, n.Sign(), 0)
}

func TestNonceChangesWithInputs(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	blinder := make([]byte, BlinderLength)
	a := DeriveEphemeralNonce(pub, 100, blinder)
	b := DeriveEphemeralNonce(pub, 101, blinder)
	blinder[0] = 1
	c := DeriveEphemeralNonce(pub, 100, blinder)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSignMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	message := []byte("hello world")
	signature, err := Sign(message, priv)
	require.NoError(t, err)
	assert.Len(t, signature, 64)
	assert.True(t, ed25519.Verify(pub, message, signature))

	_, err = Sign(message, priv[:10])
	assert.ErrorIs(t, err, types.ErrInvalidPrivateKey)
}

func TestSecp256k1KeyPair(t *testing.T) {
	priv, pub, err := GenerateSecp256k1KeyPair()
	require.NoError(t, err)
	assert.Len(t, priv, 64)
	assert.Len(t, pub, 130)
	assert.True(t, strings.HasPrefix(pub, "04"))
	assert.True(t, IsSecp256k1PublicKey(pub))

	derived, err := Secp256k1PublicKeyFromPrivate(priv)
	require.NoError(t, err)
	assert.Equal(t, pub, derived)

	_, err = Secp256k1PublicKeyFromPrivate("zz")
	assert.ErrorIs(t, err, types.ErrInvalidPrivateKey)
}

func TestNormalizeAddress(t *testing.T) {
	a, err := NormalizeAddress("0xABC")
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 61)+"abc", a)

	_, err = NormalizeAddress("0xnothex")
	assert.Error(t, err)
	_, err = NormalizeAddress("0x" + strings.Repeat("1", 65))
	assert.ErrorIs(t, err, types.ErrBadRequest)
}

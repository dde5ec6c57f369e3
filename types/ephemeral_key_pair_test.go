package types

import (
	"crypto/ed25519"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPair(i int, expiry int64) *EphemeralKeyPair {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = byte(i + 1)
	priv := ed25519.NewKeyFromSeed(seed)
	blinder := make([]byte, 31)
	blinder[30] = byte(i * 7)
	return &EphemeralKeyPair{
		PrivateKey:     priv,
		PublicKey:      priv.Public().(ed25519.PublicKey),
		Blinder:        blinder,
		ExpiryDateSecs: expiry,
		Nonce:          fmt.Sprintf("1234567890123456789%d", i),
	}
}

func TestStoredEphemeralKeyPairsRoundTrip(t *testing.T) {
	pairs := StoredEphemeralKeyPairs{}
	for i, expiry := range []int64{1735689600, 0, math.MaxInt64} {
		p := testPair(i, expiry)
		pairs[p.Nonce] = p
	}

	encoded, err := EncodeStoredEphemeralKeyPairs(pairs)
	require.NoError(t, err)
	assert.Contains(t, encoded, `"__type":"bigint"`)
	assert.Contains(t, encoded, `"__type":"Uint8Array"`)

	decoded, err := DecodeStoredEphemeralKeyPairs(encoded)
	require.NoError(t, err)
	assert.Equal(t, pairs, decoded)
}

func TestStoredEphemeralKeyPairsEmpty(t *testing.T) {
	encoded, err := EncodeStoredEphemeralKeyPairs(StoredEphemeralKeyPairs{})
	require.NoError(t, err)
	decoded, err := DecodeStoredEphemeralKeyPairs(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeStoredEphemeralKeyPairsRejectsMismatchedKey(t *testing.T) {
	p := testPair(0, 1735689600)
	p.PublicKey = testPair(1, 0).PublicKey
	encoded, err := EncodeStoredEphemeralKeyPairs(StoredEphemeralKeyPairs{p.Nonce: p})
	require.NoError(t, err)

	_, err = DecodeStoredEphemeralKeyPairs(encoded)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

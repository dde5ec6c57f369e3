package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mailio/go-keyless-server/chain"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBinder(deriver *fakeDeriver, node *fakeNode, funder *fakeFunder) *IdentityBinderService {
	var f chain.AccountFunder
	if funder != nil {
		f = funder
	}
	ibs := NewIdentityBinderService(deriver, node, f)
	ibs.fundAmount = 100000000
	return ibs
}

func TestDecodeIDToken(t *testing.T) {
	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), nil)
	claims, err := ibs.DecodeIDToken(context.Background(), newIDToken(t, idTokenOpts{nonce: "123"}))
	require.NoError(t, err)
	assert.Equal(t, "123", claims.Nonce)
	assert.Equal(t, "1234567890", claims.Subject)
	assert.Equal(t, "test-client", claims.Audience)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
}

func TestDecodeIDTokenStringEmailVerified(t *testing.T) {
	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), nil)
	claims, err := ibs.DecodeIDToken(context.Background(), newIDToken(t, idTokenOpts{nonce: "123", emailVerified: "true"}))
	require.NoError(t, err)
	assert.True(t, claims.EmailVerified)
}

func TestDecodeIDTokenRejects(t *testing.T) {
	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), nil)
	cases := map[string]string{
		"garbage":          "not-a-jwt",
		"no nonce":         newIDToken(t, idTokenOpts{}),
		"bad email":        newIDToken(t, idTokenOpts{nonce: "1", email: "not-an-email"}),
		"email unverified": newIDToken(t, idTokenOpts{nonce: "1", emailVerified: false}),
		"no subject":       newIDToken(t, idTokenOpts{nonce: "1", skipSubject: true}),
		"expired":          newIDToken(t, idTokenOpts{nonce: "1", expires: time.Now().Add(-time.Hour)}),
	}
	for name, token := range cases {
		_, err := ibs.DecodeIDToken(context.Background(), token)
		assert.ErrorIs(t, err, types.ErrInvalidIDToken, name)
	}
}

func TestDecodeIDTokenIssuerAndAudience(t *testing.T) {
	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), nil)
	token := newIDToken(t, idTokenOpts{nonce: "1"})

	ibs.issuer = "https://accounts.google.com"
	ibs.audience = "test-client"
	_, err := ibs.DecodeIDToken(context.Background(), token)
	assert.NoError(t, err)

	ibs.audience = "someone-else"
	_, err = ibs.DecodeIDToken(context.Background(), token)
	assert.ErrorIs(t, err, types.ErrInvalidIDToken)

	ibs.audience = ""
	ibs.issuer = "https://evil.example.com"
	_, err = ibs.DecodeIDToken(context.Background(), token)
	assert.ErrorIs(t, err, types.ErrInvalidIDToken)
}

func TestDecodeIDTokenWithKeySet(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	privKey, err := jwk.FromRaw(priv)
	require.NoError(t, err)
	require.NoError(t, privKey.Set(jwk.KeyIDKey, "k1"))
	pubKey, err := jwk.FromRaw(pub)
	require.NoError(t, err)
	require.NoError(t, pubKey.Set(jwk.KeyIDKey, "k1"))
	require.NoError(t, pubKey.Set(jwk.AlgorithmKey, jwa.EdDSA))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pubKey))

	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), nil).WithKeySet(set)

	_, err = ibs.DecodeIDToken(context.Background(), signIDToken(t, privKey, idTokenOpts{nonce: "1"}))
	assert.NoError(t, err)

	// signed by a key that isn't in the set
	_, err = ibs.DecodeIDToken(context.Background(), newIDToken(t, idTokenOpts{nonce: "1"}))
	assert.ErrorIs(t, err, types.ErrInvalidIDToken)
}

func TestBindRejectsMismatchedNonce(t *testing.T) {
	deriver := &fakeDeriver{}
	ibs := newTestBinder(deriver, newFakeNode(), &fakeFunder{})

	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	ekp.Nonce = "A"

	_, err = ibs.Bind(context.Background(), newIDToken(t, idTokenOpts{nonce: "B"}), ekp)
	assert.ErrorIs(t, err, types.ErrInvalidNonce)
	assert.Equal(t, 0, deriver.calls)
}

func TestBindFundsNewAccount(t *testing.T) {
	deriver := &fakeDeriver{}
	funder := &fakeFunder{}
	ibs := newTestBinder(deriver, newFakeNode(), funder)

	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)

	result, err := ibs.Bind(context.Background(), newIDToken(t, idTokenOpts{nonce: ekp.Nonce}), ekp)
	require.NoError(t, err)
	assert.Equal(t, 1, deriver.calls)
	assert.Equal(t, testAddress, result.Account.Address)
	assert.Equal(t, types.FundingFunded, result.Funding.Status)
	assert.Equal(t, []string{"0xfund"}, result.Funding.TxHashes)
}

func TestBindSkipsExistingAccount(t *testing.T) {
	node := newFakeNode()
	node.accounts[testAddress] = &types.AccountInfo{SequenceNumber: "3"}
	funder := &fakeFunder{}
	ibs := newTestBinder(&fakeDeriver{}, node, funder)

	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	result, err := ibs.Bind(context.Background(), newIDToken(t, idTokenOpts{nonce: ekp.Nonce}), ekp)
	require.NoError(t, err)
	assert.Equal(t, types.FundingSkipped, result.Funding.Status)
	assert.Equal(t, 0, funder.calls)
}

func TestBindFaucetFailureIsNotFatal(t *testing.T) {
	funder := &fakeFunder{err: errors.New("faucet down")}
	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), funder)

	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	result, err := ibs.Bind(context.Background(), newIDToken(t, idTokenOpts{nonce: ekp.Nonce}), ekp)
	require.NoError(t, err)
	assert.NotNil(t, result.Account)
	assert.Equal(t, types.FundingFailed, result.Funding.Status)
	assert.Equal(t, "faucet down", result.Funding.Error)
}

func TestBindWithoutFaucet(t *testing.T) {
	ibs := newTestBinder(&fakeDeriver{}, newFakeNode(), nil)
	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	result, err := ibs.Bind(context.Background(), newIDToken(t, idTokenOpts{nonce: ekp.Nonce}), ekp)
	require.NoError(t, err)
	assert.Equal(t, types.FundingSkipped, result.Funding.Status)
}

func TestBindDerivationErrorPropagates(t *testing.T) {
	ibs := newTestBinder(&fakeDeriver{err: errors.New("prover unavailable")}, newFakeNode(), &fakeFunder{})
	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	_, err = ibs.Bind(context.Background(), newIDToken(t, idTokenOpts{nonce: ekp.Nonce}), ekp)
	assert.EqualError(t, err, "prover unavailable")
}

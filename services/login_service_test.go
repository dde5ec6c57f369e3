package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/mailio/go-keyless-server/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogin(deriver *fakeDeriver) (*LoginService, *EphemeralKeyService, *KeylessAccountService) {
	_, eks, kas := newTestServices()
	binder := newTestBinder(deriver, newFakeNode(), &fakeFunder{})
	return NewLoginService(eks, binder, kas), eks, kas
}

func TestAuthorizationURL(t *testing.T) {
	raw, err := AuthorizationURL("https://accounts.google.com/o/oauth2/v2/auth", "client", "https://app.example.com/callback", "987")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "id_token", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "987", q.Get("nonce"))

	_, err = AuthorizationURL("not a url", "client", "cb", "1")
	assert.Error(t, err)
}

func TestLoginRoundTrip(t *testing.T) {
	ls, eks, kas := newTestLogin(&fakeDeriver{})
	ls.authEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"
	ctx := context.Background()

	challenge, err := ls.BeginLogin(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, challenge.AuthorizationURL, "nonce="+challenge.Nonce)

	result, err := ls.CompleteLogin(ctx, "s1", newIDToken(t, idTokenOpts{nonce: challenge.Nonce}))
	require.NoError(t, err)
	assert.Equal(t, testAddress, result.Account.Address)

	account, err := kas.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, challenge.Nonce, account.EphemeralKeyPair.Nonce)

	// the consumed pair is gone, the same token can't be replayed
	pair, err := eks.GetKeyPair(ctx, "s1", challenge.Nonce)
	require.NoError(t, err)
	assert.Nil(t, pair)
	_, err = ls.CompleteLogin(ctx, "s1", newIDToken(t, idTokenOpts{nonce: challenge.Nonce}))
	assert.ErrorIs(t, err, types.ErrInvalidNonce)
}

func TestCompleteLoginUnknownNonce(t *testing.T) {
	deriver := &fakeDeriver{}
	ls, _, kas := newTestLogin(deriver)
	ctx := context.Background()

	_, err := ls.CompleteLogin(ctx, "s1", newIDToken(t, idTokenOpts{nonce: "unknown"}))
	assert.ErrorIs(t, err, types.ErrInvalidNonce)
	assert.Equal(t, 0, deriver.calls)

	account, err := kas.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestCompleteLoginOtherSessionsNonce(t *testing.T) {
	deriver := &fakeDeriver{}
	ls, _, _ := newTestLogin(deriver)
	ls.authEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"
	ctx := context.Background()

	challenge, err := ls.BeginLogin(ctx, "s1")
	require.NoError(t, err)
	_, err = ls.CompleteLogin(ctx, "s2", newIDToken(t, idTokenOpts{nonce: challenge.Nonce}))
	assert.ErrorIs(t, err, types.ErrInvalidNonce)
	assert.Equal(t, 0, deriver.calls)
}

func TestCompleteLoginInvalidToken(t *testing.T) {
	ls, _, _ := newTestLogin(&fakeDeriver{})
	_, err := ls.CompleteLogin(context.Background(), "s1", "garbage")
	assert.ErrorIs(t, err, types.ErrInvalidIDToken)
}

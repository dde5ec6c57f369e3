package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/storage"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T, address string) *types.KeylessAccount {
	ekp, err := util.GenerateEphemeralKeyPair(time.Now(), 0)
	require.NoError(t, err)
	return &types.KeylessAccount{
		Address:          address,
		JWT:              "eyJhbGciOiJSUzI1NiJ9.eyJzdWIiOiI0MiJ9.c2ln",
		UIDKey:           "sub",
		UIDVal:           "42",
		Aud:              "client",
		Iss:              "https://accounts.google.com",
		Pepper:           []byte{9},
		Proof:            []byte("{}"),
		EphemeralKeyPair: ekp,
	}
}

func TestStoreAndGetKeylessAccount(t *testing.T) {
	store, eks, kas := newTestServices()
	ctx := context.Background()

	account := testAccount(t, testAddress)
	require.NoError(t, kas.StoreKeylessAccount(ctx, "s1", account))

	got, err := kas.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, testAddress, got.Address)

	// a fresh process rehydrates from storage
	restarted := NewKeylessAccountService(store, eks)
	got, err = restarted.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.EphemeralKeyPair.PrivateKey, got.EphemeralKeyPair.PrivateKey)
	assert.Equal(t, account.Pepper, got.Pepper)
}

func TestStoreOverwritesAccount(t *testing.T) {
	store, eks, kas := newTestServices()
	ctx := context.Background()

	require.NoError(t, kas.StoreKeylessAccount(ctx, "s1", testAccount(t, testAddress)))
	second := "0x00000000000000000000000000000000000000000000000000000000000000cd"
	require.NoError(t, kas.StoreKeylessAccount(ctx, "s1", testAccount(t, second)))

	got, err := NewKeylessAccountService(store, eks).GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, second, got.Address)
}

func TestGetKeylessAccountAbsent(t *testing.T) {
	_, _, kas := newTestServices()
	got, err := kas.GetKeylessAccount(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetKeylessAccountCorrupted(t *testing.T) {
	store, _, kas := newTestServices()
	ctx := context.Background()

	for _, blob := range []string{"zz-not-hex", "a1", ""} {
		require.NoError(t, store.Set(ctx, storage.SessionKey(blob+"s", keylessAccountKey), blob, 0))
		got, err := kas.GetKeylessAccount(ctx, blob+"s")
		assert.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestExpiredAccountIsDropped(t *testing.T) {
	store, _, kas := newTestServices()
	ctx := context.Background()

	account := testAccount(t, testAddress)
	require.NoError(t, kas.StoreKeylessAccount(ctx, "s1", account))

	kas.now = func() time.Time { return time.Unix(account.EphemeralKeyPair.ExpiryDateSecs+1, 0) }
	got, err := kas.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = store.Get(ctx, storage.SessionKey("s1", keylessAccountKey))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDisconnect(t *testing.T) {
	store, eks, kas := newTestServices()
	ctx := context.Background()

	pair, err := eks.GenerateKeyPair(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, kas.StoreKeylessAccount(ctx, "s1", testAccount(t, testAddress)))
	require.NoError(t, kas.StoreKeylessAccount(ctx, "s2", testAccount(t, testAddress)))

	require.NoError(t, kas.Disconnect(ctx, "s1"))
	require.NoError(t, kas.Disconnect(ctx, "s1"))

	got, err := kas.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
	p, err := eks.GetKeyPair(ctx, "s1", pair.Nonce)
	require.NoError(t, err)
	assert.Nil(t, p)
	_, err = store.Get(ctx, storage.SessionKey("s1", keylessAccountKey))
	assert.ErrorIs(t, err, types.ErrNotFound)

	other, err := kas.GetKeylessAccount(ctx, "s2")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestStoreRejectsAccountWithoutKeyPair(t *testing.T) {
	store, _, kas := newTestServices()
	ctx := context.Background()

	err := kas.StoreKeylessAccount(ctx, "s1", &types.KeylessAccount{Address: testAddress, JWT: "a.b.c"})
	assert.ErrorIs(t, err, types.ErrInvalidPrivateKey)
	assert.ErrorIs(t, kas.StoreKeylessAccount(ctx, "s1", nil), types.ErrInvalidPrivateKey)

	_, err = store.Get(ctx, storage.SessionKey("s1", keylessAccountKey))
	assert.ErrorIs(t, err, types.ErrNotFound)
	got, err := kas.GetKeylessAccount(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountCacheIsBounded(t *testing.T) {
	previous := global.Conf.Server.AccountCacheSize
	global.Conf.Server.AccountCacheSize = 16
	defer func() { global.Conf.Server.AccountCacheSize = previous }()

	_, _, kas := newTestServices()
	ctx := context.Background()

	account := testAccount(t, testAddress)
	require.NoError(t, kas.StoreKeylessAccount(ctx, "connected", account))

	for i := 0; i < 1000; i++ {
		got, err := kas.GetKeylessAccount(ctx, fmt.Sprintf("anon-%d", i))
		require.NoError(t, err)
		require.Nil(t, got)
	}
	assert.Equal(t, 16, kas.accounts.Len())

	// evicted sessions come back from storage
	got, err := kas.GetKeylessAccount(ctx, "connected")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.Address, got.Address)
}

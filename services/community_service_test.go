package services

import (
	"context"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/mailio/go-keyless-server/repository"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const couchURL = "http://localhost:5984"

func testMasterKey(b byte) []byte {
	k := make([]byte, util.DataKeySize)
	for i := range k {
		k[i] = b
	}
	return k
}

func newTestCommunityService(t *testing.T, keyring *util.Keyring) (*CommunityService, *repository.MockCouchDB, repository.DBSelector) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	mock := repository.RegisterMockCouchDB(couchURL, repository.Community)
	db, err := repository.NewCouchDBRepository(couchURL, repository.Community, "admin", "admin", true)
	require.NoError(t, err)
	selector := repository.NewCouchDBSelector()
	selector.AddDB(db)
	return NewCommunityService(selector, keyring), mock, selector
}

func TestCommunityKeyRoundTrip(t *testing.T) {
	keyring, err := util.NewKeyring("k1", map[string][]byte{"k1": testMasterKey(1)})
	require.NoError(t, err)
	cs, mock, _ := newTestCommunityService(t, keyring)
	ctx := context.Background()

	hash, err := cs.GenerateCommunityHash(ctx)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	pair, err := cs.GetCommunityByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, pair.CommunityHash)
	derived, err := util.Secp256k1PublicKeyFromPrivate(pair.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, derived, pair.PublicKey)

	// key material never hits the database in plaintext
	raw := mock.Raw(hash)
	assert.NotEqual(t, pair.PublicKey, raw["publicKey"])
	assert.NotEqual(t, pair.PrivateKey, raw["privateKey"])
	assert.Equal(t, "k1", raw["keyId"])
}

func TestGetCommunityNotFound(t *testing.T) {
	keyring, err := util.NewKeyring("k1", map[string][]byte{"k1": testMasterKey(1)})
	require.NoError(t, err)
	cs, mock, _ := newTestCommunityService(t, keyring)
	ctx := context.Background()

	_, err = cs.GetCommunityByHash(ctx, "00000000000000000000000000000000000000000000000000000000000000ff")
	assert.ErrorIs(t, err, types.ErrCommunityNotFound)
	assert.EqualError(t, err, "Community not found")

	_, err = cs.GetCommunityByHash(ctx, "../_all_dbs")
	assert.ErrorIs(t, err, types.ErrCommunityNotFound)

	hash, err := cs.GenerateCommunityHash(ctx)
	require.NoError(t, err)
	mock.Remove(hash, "privateKey")
	_, err = cs.GetCommunityByHash(ctx, hash)
	assert.ErrorIs(t, err, types.ErrCommunityNotFound)
}

func TestSwappedCiphertextsFail(t *testing.T) {
	keyring, err := util.NewKeyring("k1", map[string][]byte{"k1": testMasterKey(1)})
	require.NoError(t, err)
	cs, _, selector := newTestCommunityService(t, keyring)
	ctx := context.Background()

	hash, err := cs.GenerateCommunityHash(ctx)
	require.NoError(t, err)

	db, err := selector.ChooseDB(repository.Community)
	require.NoError(t, err)
	var community types.Community
	require.NoError(t, db.GetByID(ctx, hash, &community))
	community.PublicKey, community.PrivateKey = community.PrivateKey, community.PublicKey
	require.NoError(t, db.Save(ctx, hash, &community))

	_, err = cs.GetCommunityByHash(ctx, hash)
	assert.ErrorIs(t, err, types.ErrDecryptionFailed)
}

func TestPublicKeyOffCurveFails(t *testing.T) {
	keyring, err := util.NewKeyring("k1", map[string][]byte{"k1": testMasterKey(1)})
	require.NoError(t, err)
	cs, _, selector := newTestCommunityService(t, keyring)
	ctx := context.Background()

	hash, err := cs.GenerateCommunityHash(ctx)
	require.NoError(t, err)

	db, err := selector.ChooseDB(repository.Community)
	require.NoError(t, err)
	var community types.Community
	require.NoError(t, db.GetByID(ctx, hash, &community))
	dataKey, err := keyring.UnwrapKey(community.KeyID, community.WrappedKey)
	require.NoError(t, err)
	notAPoint := "04" + strings.Repeat("ab", 64)
	community.PublicKey, err = util.Seal(dataKey, []byte(notAPoint), communityAAD(hash, "public"))
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, hash, &community))

	_, err = cs.GetCommunityByHash(ctx, hash)
	assert.ErrorIs(t, err, types.ErrInvalidPublicKey)
}

func TestRewrapCommunity(t *testing.T) {
	oldRing, err := util.NewKeyring("k1", map[string][]byte{"k1": testMasterKey(1)})
	require.NoError(t, err)
	cs, mock, selector := newTestCommunityService(t, oldRing)
	ctx := context.Background()

	hash, err := cs.GenerateCommunityHash(ctx)
	require.NoError(t, err)
	before, err := cs.GetCommunityByHash(ctx, hash)
	require.NoError(t, err)

	newRing, err := util.NewKeyring("k2", map[string][]byte{"k1": testMasterKey(1), "k2": testMasterKey(2)})
	require.NoError(t, err)
	rotated := NewCommunityService(selector, newRing)

	changed, err := rotated.RewrapCommunity(ctx, hash)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "k2", mock.Raw(hash)["keyId"])

	changed, err = rotated.RewrapCommunity(ctx, hash)
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := rotated.GetCommunityByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// the retired keyring can no longer read the record
	_, err = cs.GetCommunityByHash(ctx, hash)
	assert.ErrorIs(t, err, types.ErrUnknownMasterKey)
}

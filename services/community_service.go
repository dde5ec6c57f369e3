package services

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/metrics"
	"github.com/mailio/go-keyless-server/repository"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

// length of the community handle in bytes (64 hex characters)
const communityHashBytes = 32

type CommunityService struct {
	communityRepo repository.Repository
	keyring       *util.Keyring
	validate      *validator.Validate
}

func NewCommunityService(dbSelector repository.DBSelector, keyring *util.Keyring) *CommunityService {
	db, err := dbSelector.ChooseDB(repository.Community)
	if err != nil {
		panic(err)
	}
	return &CommunityService{communityRepo: db, keyring: keyring, validate: validator.New()}
}

// the handle is bound into the ciphertexts so sealed values can't be swapped between records
func communityAAD(communityHash, component string) []byte {
	return []byte(communityHash + ":" + component)
}

// GenerateCommunityHash creates the channel key pair of a new community and returns its handle
func (cs *CommunityService) GenerateCommunityHash(ctx context.Context) (string, error) {
	privateKey, publicKey, err := util.GenerateSecp256k1KeyPair()
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to generate community key pair", "err", err)
		return "", err
	}
	communityHash, err := util.RandomHex(communityHashBytes)
	if err != nil {
		return "", err
	}
	dataKey, err := util.RandomBytes(util.DataKeySize)
	if err != nil {
		return "", err
	}
	sealedPublic, err := util.Seal(dataKey, []byte(publicKey), communityAAD(communityHash, "public"))
	if err != nil {
		return "", err
	}
	sealedPrivate, err := util.Seal(dataKey, []byte(privateKey), communityAAD(communityHash, "private"))
	if err != nil {
		return "", err
	}
	keyID, wrappedKey, err := cs.keyring.WrapKey(dataKey)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC().UnixMilli()
	community := &types.Community{
		CommunityHash: communityHash,
		PublicKey:     sealedPublic,
		PrivateKey:    sealedPrivate,
		KeyID:         keyID,
		WrappedKey:    wrappedKey,
		Created:       now,
		Modified:      now,
	}
	if vErr := cs.validate.Struct(community); vErr != nil {
		return "", vErr
	}
	if sErr := cs.communityRepo.Save(ctx, communityHash, community); sErr != nil {
		level.Error(global.Logger).Log("msg", "failed to save community", "communityHash", communityHash, "err", sErr)
		return "", sErr
	}
	metrics.CommunitiesCreatedTotal.Inc()
	return communityHash, nil
}

// GetCommunityByHash returns the decrypted channel key pair.
// Missing records or key components fail with types.ErrCommunityNotFound.
func (cs *CommunityService) GetCommunityByHash(ctx context.Context, communityHash string) (*types.CommunityChannelKeyPair, error) {
	community, err := cs.getCommunity(ctx, communityHash)
	if err != nil {
		return nil, err
	}
	dataKey, err := cs.keyring.UnwrapKey(community.KeyID, community.WrappedKey)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to unwrap community data key", "communityHash", communityHash, "keyId", community.KeyID, "err", err)
		return nil, err
	}
	publicKey, err := util.Open(dataKey, community.PublicKey, communityAAD(communityHash, "public"))
	if err != nil {
		return nil, err
	}
	privateKey, err := util.Open(dataKey, community.PrivateKey, communityAAD(communityHash, "private"))
	if err != nil {
		return nil, err
	}

	if !util.IsSecp256k1PublicKey(string(publicKey)) {
		level.Error(global.Logger).Log("msg", "community public key is not a curve point", "communityHash", communityHash)
		return nil, types.ErrInvalidPublicKey
	}
	derived, err := util.Secp256k1PublicKeyFromPrivate(string(privateKey))
	if err != nil {
		return nil, err
	}
	if derived != string(publicKey) {
		level.Error(global.Logger).Log("msg", "community public key doesn't match its private key", "communityHash", communityHash)
		return nil, types.ErrInvalidPublicKey
	}
	return &types.CommunityChannelKeyPair{
		CommunityHash: communityHash,
		PublicKey:     string(publicKey),
		PrivateKey:    string(privateKey),
	}, nil
}

// RewrapCommunity re-wraps the community data key under the active master key.
// Sealed key material doesn't change. Returns false when the record already uses the active key.
func (cs *CommunityService) RewrapCommunity(ctx context.Context, communityHash string) (bool, error) {
	community, err := cs.getCommunity(ctx, communityHash)
	if err != nil {
		return false, err
	}
	if community.KeyID == cs.keyring.ActiveID() {
		return false, nil
	}
	dataKey, err := cs.keyring.UnwrapKey(community.KeyID, community.WrappedKey)
	if err != nil {
		return false, err
	}
	keyID, wrappedKey, err := cs.keyring.WrapKey(dataKey)
	if err != nil {
		return false, err
	}
	community.KeyID = keyID
	community.WrappedKey = wrappedKey
	community.Modified = time.Now().UTC().UnixMilli()
	if sErr := cs.communityRepo.Save(ctx, communityHash, community); sErr != nil {
		level.Error(global.Logger).Log("msg", "failed to save rewrapped community", "communityHash", communityHash, "err", sErr)
		return false, sErr
	}
	return true, nil
}

func (cs *CommunityService) getCommunity(ctx context.Context, communityHash string) (*types.Community, error) {
	if len(communityHash) != communityHashBytes*2 {
		return nil, types.ErrCommunityNotFound
	}
	if _, hErr := hex.DecodeString(communityHash); hErr != nil {
		return nil, types.ErrCommunityNotFound
	}
	var community types.Community
	if err := cs.communityRepo.GetByID(ctx, communityHash, &community); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrCommunityNotFound
		}
		return nil, err
	}
	if community.PublicKey == "" || community.PrivateKey == "" {
		return nil, types.ErrCommunityNotFound
	}
	return &community, nil
}

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/storage"
	"github.com/mailio/go-keyless-server/types"
)

// storage key (per session) of the active account blob
const keylessAccountKey = "keyless-account"

const defaultAccountCacheSize = 5000

// KeylessAccountService holds exactly one active account per session.
// Storage is read once per session, later reads are served from a bounded LRU cache.
// Evicted sessions are read from storage again.
type KeylessAccountService struct {
	store         storage.KeyValueStore
	ephemeralKeys *EphemeralKeyService
	now           func() time.Time

	mu       sync.Mutex
	accounts *lru.Cache[string, *types.KeylessAccount] // nil value means "loaded, no account"
}

func NewKeylessAccountService(store storage.KeyValueStore, ephemeralKeys *EphemeralKeyService) *KeylessAccountService {
	size := global.Conf.Server.AccountCacheSize
	if size <= 0 {
		size = defaultAccountCacheSize
	}
	accounts, err := lru.New[string, *types.KeylessAccount](size)
	if err != nil {
		panic(err)
	}
	return &KeylessAccountService{
		store:         store,
		ephemeralKeys: ephemeralKeys,
		now:           time.Now,
		accounts:      accounts,
	}
}

// StoreKeylessAccount persists the account, overwriting whatever the session had before
func (kas *KeylessAccountService) StoreKeylessAccount(ctx context.Context, sessionID string, account *types.KeylessAccount) error {
	if account == nil || account.EphemeralKeyPair == nil {
		return types.ErrInvalidPrivateKey
	}
	blob, err := types.EncodeKeylessAccount(account)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to encode keyless account", "err", err)
		return err
	}
	ttl := time.Unix(account.EphemeralKeyPair.ExpiryDateSecs, 0).Sub(kas.now())
	if ttl <= 0 {
		ttl = time.Minute
	}

	kas.mu.Lock()
	defer kas.mu.Unlock()
	if err := kas.store.Set(ctx, storage.SessionKey(sessionID, keylessAccountKey), blob, ttl); err != nil {
		level.Error(global.Logger).Log("msg", "failed to store keyless account", "err", err)
		return err
	}
	kas.accounts.Add(sessionID, account)
	return nil
}

// GetKeylessAccount returns the session's account or nil when there is none.
// Undecodable blobs count as "no account". Accounts whose ephemeral key expired are dropped.
func (kas *KeylessAccountService) GetKeylessAccount(ctx context.Context, sessionID string) (*types.KeylessAccount, error) {
	account, loaded := kas.accounts.Get(sessionID)

	if !loaded {
		var err error
		account, err = kas.rehydrate(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}
	if account == nil || account.EphemeralKeyPair == nil {
		return nil, nil
	}
	if account.EphemeralKeyPair.IsExpired(kas.now().Unix()) {
		if err := kas.forget(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return account, nil
}

// Disconnect clears memory, every ephemeral key pair of the session and the stored blob
func (kas *KeylessAccountService) Disconnect(ctx context.Context, sessionID string) error {
	if err := kas.ephemeralKeys.RemoveAllPairs(ctx, sessionID); err != nil {
		level.Error(global.Logger).Log("msg", "failed to remove ephemeral key pairs", "err", err)
		return err
	}
	return kas.forget(ctx, sessionID)
}

func (kas *KeylessAccountService) forget(ctx context.Context, sessionID string) error {
	kas.mu.Lock()
	defer kas.mu.Unlock()
	if err := kas.store.Delete(ctx, storage.SessionKey(sessionID, keylessAccountKey)); err != nil {
		level.Error(global.Logger).Log("msg", "failed to remove keyless account", "err", err)
		return err
	}
	kas.accounts.Remove(sessionID)
	return nil
}

func (kas *KeylessAccountService) rehydrate(ctx context.Context, sessionID string) (*types.KeylessAccount, error) {
	kas.mu.Lock()
	defer kas.mu.Unlock()
	if account, loaded := kas.accounts.Get(sessionID); loaded {
		return account, nil
	}

	blob, err := kas.store.Get(ctx, storage.SessionKey(sessionID, keylessAccountKey))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			kas.accounts.Add(sessionID, nil)
			return nil, nil
		}
		level.Error(global.Logger).Log("msg", "failed to read keyless account", "err", err)
		return nil, err
	}
	account, dErr := types.DecodeKeylessAccount(blob)
	if dErr != nil {
		level.Warn(global.Logger).Log("msg", "undecodable keyless account, treating as disconnected", "err", dErr)
		account = nil
	}
	kas.accounts.Add(sessionID, account)
	return account, nil
}

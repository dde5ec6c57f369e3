package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/storage"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

// storage key (per session) holding the tagged JSON nonce -> pair map
const ephemeralKeyPairsKey = "ephemeral-key-pairs"

// EphemeralKeyService keeps the in-flight login attempts of every session, keyed by nonce
type EphemeralKeyService struct {
	store    storage.KeyValueStore
	lifetime time.Duration
	now      func() time.Time
	mu       sync.Mutex // serializes read-modify-write of a session map
}

func NewEphemeralKeyService(store storage.KeyValueStore) *EphemeralKeyService {
	lifetime := time.Duration(global.Conf.Identity.EphemeralLifetimeHours) * time.Hour
	if lifetime <= 0 {
		lifetime = util.DefaultEphemeralLifetime
	}
	return &EphemeralKeyService{store: store, lifetime: lifetime, now: time.Now}
}

// GenerateKeyPair creates a new pair, persists it under its nonce and returns it
func (eks *EphemeralKeyService) GenerateKeyPair(ctx context.Context, sessionID string) (*types.EphemeralKeyPair, error) {
	pair, err := util.GenerateEphemeralKeyPair(eks.now(), eks.lifetime)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to generate ephemeral key pair", "err", err)
		return nil, err
	}

	eks.mu.Lock()
	defer eks.mu.Unlock()

	key := storage.SessionKey(sessionID, ephemeralKeyPairsKey)
	pairs, err := eks.load(ctx, key)
	if err != nil {
		return nil, err
	}
	pairs[pair.Nonce] = pair
	if err := eks.save(ctx, key, pairs); err != nil {
		return nil, err
	}
	return pair, nil
}

// GetKeyPair returns the live pair for nonce or nil (never an error) when it's missing.
// Entries stored under a different nonce or already expired are evicted.
func (eks *EphemeralKeyService) GetKeyPair(ctx context.Context, sessionID string, nonce string) (*types.EphemeralKeyPair, error) {
	eks.mu.Lock()
	defer eks.mu.Unlock()

	key := storage.SessionKey(sessionID, ephemeralKeyPairsKey)
	pairs, err := eks.load(ctx, key)
	if err != nil {
		return nil, err
	}
	pair, ok := pairs[nonce]
	if !ok {
		return nil, nil
	}
	if pair.Nonce != nonce || pair.IsExpired(eks.now().Unix()) {
		delete(pairs, nonce)
		if err := eks.save(ctx, key, pairs); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return pair, nil
}

// RemoveKeyPair evicts a single pair
func (eks *EphemeralKeyService) RemoveKeyPair(ctx context.Context, sessionID string, nonce string) error {
	eks.mu.Lock()
	defer eks.mu.Unlock()

	key := storage.SessionKey(sessionID, ephemeralKeyPairsKey)
	pairs, err := eks.load(ctx, key)
	if err != nil {
		return err
	}
	if _, ok := pairs[nonce]; !ok {
		return nil
	}
	delete(pairs, nonce)
	return eks.save(ctx, key, pairs)
}

// RemoveAllPairs clears the session's pairs (logout). Calling it again is a no-op.
func (eks *EphemeralKeyService) RemoveAllPairs(ctx context.Context, sessionID string) error {
	eks.mu.Lock()
	defer eks.mu.Unlock()
	return eks.store.Delete(ctx, storage.SessionKey(sessionID, ephemeralKeyPairsKey))
}

// PurgeExpired evicts expired pairs across all sessions and returns how many were removed
func (eks *EphemeralKeyService) PurgeExpired(ctx context.Context) (int, error) {
	keys, err := eks.store.Keys(ctx, storage.SessionPattern(ephemeralKeyPairsKey))
	if err != nil {
		return 0, err
	}
	nowSecs := eks.now().Unix()
	removed := 0
	for _, key := range keys {
		eks.mu.Lock()
		pairs, lErr := eks.load(ctx, key)
		if lErr != nil {
			eks.mu.Unlock()
			level.Error(global.Logger).Log("msg", "failed to load ephemeral key pairs", "session", storage.SessionIDFromKey(key, ephemeralKeyPairsKey), "err", lErr)
			continue
		}
		before := len(pairs)
		for nonce, pair := range pairs {
			if pair.Nonce != nonce || pair.IsExpired(nowSecs) {
				delete(pairs, nonce)
			}
		}
		if len(pairs) != before || before == 0 {
			if sErr := eks.save(ctx, key, pairs); sErr != nil {
				level.Error(global.Logger).Log("msg", "failed to save ephemeral key pairs", "key", key, "err", sErr)
			} else {
				removed += before - len(pairs)
			}
		}
		eks.mu.Unlock()
	}
	return removed, nil
}

// load reads the map at key. Missing keys and corrupted data both yield an empty map.
func (eks *EphemeralKeyService) load(ctx context.Context, key string) (types.StoredEphemeralKeyPairs, error) {
	encoded, err := eks.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.StoredEphemeralKeyPairs{}, nil
		}
		level.Error(global.Logger).Log("msg", "failed to read ephemeral key pairs", "key", key, "err", err)
		return nil, err
	}
	pairs, dErr := types.DecodeStoredEphemeralKeyPairs(encoded)
	if dErr != nil {
		level.Warn(global.Logger).Log("msg", "corrupted ephemeral key pairs, treating as empty", "key", key, "err", dErr)
		return types.StoredEphemeralKeyPairs{}, nil
	}
	return pairs, nil
}

// save writes the map back (deletes the key when empty). TTL follows the latest expiry.
func (eks *EphemeralKeyService) save(ctx context.Context, key string, pairs types.StoredEphemeralKeyPairs) error {
	if len(pairs) == 0 {
		return eks.store.Delete(ctx, key)
	}
	encoded, err := types.EncodeStoredEphemeralKeyPairs(pairs)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to encode ephemeral key pairs", "key", key, "err", err)
		return err
	}
	var latest int64
	for _, pair := range pairs {
		if pair.ExpiryDateSecs > latest {
			latest = pair.ExpiryDateSecs
		}
	}
	ttl := time.Unix(latest, 0).Sub(eks.now())
	if ttl <= 0 {
		ttl = time.Minute
	}
	return eks.store.Set(ctx, key, encoded, ttl)
}

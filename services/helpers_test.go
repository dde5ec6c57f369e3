package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/mailio/go-keyless-server/storage"
	"github.com/mailio/go-keyless-server/types"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x00000000000000000000000000000000000000000000000000000000000000ab"

type fakeDeriver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeDeriver) DeriveKeylessAccount(ctx context.Context, jwt string, claims *types.IDTokenClaims, ekp *types.EphemeralKeyPair) (*types.KeylessAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.KeylessAccount{
		Address:          testAddress,
		JWT:              jwt,
		UIDKey:           "sub",
		UIDVal:           claims.Subject,
		Aud:              claims.Audience,
		Iss:              claims.Issuer,
		Pepper:           []byte{1, 2, 3},
		Proof:            []byte(`{"a":"1"}`),
		EphemeralKeyPair: ekp,
	}, nil
}

type fakeFunder struct {
	calls int
	err   error
}

func (f *fakeFunder) FundAccount(ctx context.Context, address string, amount uint64) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []string{"0xfund"}, nil
}

// fakeNode is an in-process node: accounts, signing messages and submissions
type fakeNode struct {
	accounts  map[string]*types.AccountInfo
	submitted []*types.SignedTransaction
	encoded   []*types.RawTransaction
	submitErr error
	calls     int
}

func newFakeNode() *fakeNode {
	return &fakeNode{accounts: map[string]*types.AccountInfo{}}
}

func (n *fakeNode) GetAccount(ctx context.Context, address string) (*types.AccountInfo, error) {
	n.calls++
	if a, ok := n.accounts[address]; ok {
		return a, nil
	}
	return nil, types.ErrNotFound
}

func (n *fakeNode) EncodeSubmission(ctx context.Context, txn *types.RawTransaction) ([]byte, error) {
	n.calls++
	n.encoded = append(n.encoded, txn)
	return []byte("signing:" + txn.Sender + ":" + txn.SequenceNumber), nil
}

func (n *fakeNode) SubmitTransaction(ctx context.Context, txn *types.SignedTransaction) (*types.PendingTransaction, error) {
	n.calls++
	if n.submitErr != nil {
		return nil, n.submitErr
	}
	n.submitted = append(n.submitted, txn)
	return &types.PendingTransaction{Hash: "0xpending", Sender: txn.Sender, SequenceNumber: txn.SequenceNumber, Payload: txn.Payload}, nil
}

type idTokenOpts struct {
	nonce         string
	email         string
	emailVerified interface{}
	expires       time.Time
	skipSubject   bool
}

func newIDToken(t *testing.T, opts idTokenOpts) string {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return signIDToken(t, priv, opts)
}

func signIDToken(t *testing.T, key interface{}, opts idTokenOpts) string {
	if opts.email == "" {
		opts.email = "alice@example.com"
	}
	if opts.emailVerified == nil {
		opts.emailVerified = true
	}
	if opts.expires.IsZero() {
		opts.expires = time.Now().Add(time.Hour)
	}
	b := jwt.NewBuilder().
		Issuer("https://accounts.google.com").
		Audience([]string{"test-client"}).
		IssuedAt(time.Now().Add(-time.Minute)).
		Expiration(opts.expires).
		Claim("nonce", opts.nonce).
		Claim("email", opts.email).
		Claim("email_verified", opts.emailVerified)
	if !opts.skipSubject {
		b = b.Subject("1234567890")
	}
	token, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.EdDSA, key))
	require.NoError(t, err)
	return string(signed)
}

func newTestServices() (*storage.MemoryStore, *EphemeralKeyService, *KeylessAccountService) {
	store := storage.NewMemoryStore()
	eks := NewEphemeralKeyService(store)
	kas := NewKeylessAccountService(store, eks)
	return store, eks, kas
}

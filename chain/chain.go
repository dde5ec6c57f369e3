// Package chain talks to the blockchain node REST API, the faucet and the keyless pepper/prover services.
package chain

import (
	"context"
	"time"

	"github.com/mailio/go-keyless-server/types"
)

// AccountReader reads on-chain account state
type AccountReader interface {
	GetAccount(ctx context.Context, address string) (*types.AccountInfo, error)
}

// AccountFunder mints test coins into an account
type AccountFunder interface {
	FundAccount(ctx context.Context, address string, amount uint64) ([]string, error)
}

// AccountDeriver turns an id token and an ephemeral key pair into a keyless account
type AccountDeriver interface {
	DeriveKeylessAccount(ctx context.Context, jwt string, claims *types.IDTokenClaims, ekp *types.EphemeralKeyPair) (*types.KeylessAccount, error)
}

// LedgerReader reads the node's view of the chain
type LedgerReader interface {
	GetLedgerInfo(ctx context.Context) (*types.LedgerInfo, error)
}

// TransactionSubmitter is everything the gateway needs to build, sign and submit a transaction
type TransactionSubmitter interface {
	AccountReader
	EncodeSubmission(ctx context.Context, txn *types.RawTransaction) ([]byte, error)
	SubmitTransaction(ctx context.Context, txn *types.SignedTransaction) (*types.PendingTransaction, error)
}

// TransactionWatcher waits for a submitted transaction to leave the mempool
type TransactionWatcher interface {
	GetTransactionByHash(ctx context.Context, hash string) (*types.TransactionStatus, error)
	WaitForTransaction(ctx context.Context, hash string, interval time.Duration) (*types.TransactionStatus, error)
}

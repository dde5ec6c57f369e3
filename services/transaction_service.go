package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/mailio/go-keyless-server/chain"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/metrics"
	"github.com/mailio/go-keyless-server/storage"
	"github.com/mailio/go-keyless-server/types"
)

const (
	defaultMaxGasAmount     = 200000
	defaultGasUnitPrice     = 100
	defaultTxExpirationSecs = 600
)

// <address>::<module>::<function>
var entryFunctionRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}::[A-Za-z_][A-Za-z0-9_]*::[A-Za-z_][A-Za-z0-9_]*$`)

// TaskEnqueuer is implemented by *asynq.Client
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TransactionService is the single place state changing transactions are signed and submitted
type TransactionService struct {
	accounts  *KeylessAccountService
	submitter chain.TransactionSubmitter
	store     storage.KeyValueStore
	enqueuer  TaskEnqueuer // optional, schedules status watching
	validate  *validator.Validate
	now       func() time.Time

	maxGasAmount   uint64
	gasUnitPrice   uint64
	expirationSecs int64
}

func NewTransactionService(accounts *KeylessAccountService, submitter chain.TransactionSubmitter, store storage.KeyValueStore, enqueuer TaskEnqueuer) *TransactionService {
	ts := &TransactionService{
		accounts:       accounts,
		submitter:      submitter,
		store:          store,
		enqueuer:       enqueuer,
		validate:       validator.New(),
		now:            time.Now,
		maxGasAmount:   global.Conf.Chain.MaxGasAmount,
		gasUnitPrice:   global.Conf.Chain.GasUnitPrice,
		expirationSecs: global.Conf.Chain.TxExpirationSecs,
	}
	if ts.maxGasAmount == 0 {
		ts.maxGasAmount = defaultMaxGasAmount
	}
	if ts.gasUnitPrice == 0 {
		ts.gasUnitPrice = defaultGasUnitPrice
	}
	if ts.expirationSecs <= 0 {
		ts.expirationSecs = defaultTxExpirationSecs
	}
	return ts
}

// ValidatePayload checks the payload shape before anything touches the network
func (ts *TransactionService) ValidatePayload(payload *types.EntryFunctionPayload) error {
	if payload == nil {
		return types.ErrInvalidPayload
	}
	if err := ts.validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidPayload, err.Error())
	}
	if !entryFunctionRe.MatchString(payload.Function) {
		return fmt.Errorf("%w: function must be address::module::name", types.ErrInvalidPayload)
	}
	return nil
}

// SignAndSubmitTransaction submits payload once on behalf of the session's account.
// It returns nil, nil when the session has no account. Submission errors are returned as is, nothing is retried.
func (ts *TransactionService) SignAndSubmitTransaction(ctx context.Context, sessionID string, payload *types.EntryFunctionPayload) (*types.PendingTransaction, error) {
	account, err := ts.accounts.GetKeylessAccount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	if vErr := ts.ValidatePayload(payload); vErr != nil {
		return nil, vErr
	}

	info, err := ts.submitter.GetAccount(ctx, account.Address)
	if err != nil {
		return nil, err
	}

	typeArgs := payload.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	args := payload.FunctionArguments
	if args == nil {
		args = []interface{}{}
	}
	raw := &types.RawTransaction{
		Sender:                  account.Address,
		SequenceNumber:          info.SequenceNumber,
		MaxGasAmount:            strconv.FormatUint(ts.maxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(ts.gasUnitPrice, 10),
		ExpirationTimestampSecs: strconv.FormatInt(ts.now().Unix()+ts.expirationSecs, 10),
		Payload: types.NodeEntryFunctionPayload{
			Type:          "entry_function_payload",
			Function:      payload.Function,
			TypeArguments: typeArgs,
			Arguments:     args,
		},
	}

	message, err := ts.submitter.EncodeSubmission(ctx, raw)
	if err != nil {
		return nil, err
	}
	authenticator, err := chain.BuildAuthenticator(account, message)
	if err != nil {
		return nil, err
	}

	pending, err := ts.submitter.SubmitTransaction(ctx, &types.SignedTransaction{RawTransaction: *raw, Signature: *authenticator})
	if err != nil {
		metrics.TransactionsSubmittedTotal.WithLabelValues("rejected").Inc()
		level.Error(global.Logger).Log("msg", "transaction submission failed", "sender", account.Address, "err", err)
		return nil, err
	}
	metrics.TransactionsSubmittedTotal.WithLabelValues("submitted").Inc()
	ts.watch(ctx, sessionID, pending.Hash)
	return pending, nil
}

// watch records the pending status and schedules the background watcher (best effort)
func (ts *TransactionService) watch(ctx context.Context, sessionID string, hash string) {
	if err := ts.SaveWatchedTransaction(ctx, &types.WatchedTransaction{Hash: hash, Status: types.WatchStatusPending, Updated: ts.now().UnixMilli()}); err != nil {
		level.Warn(global.Logger).Log("msg", "failed to record pending transaction", "hash", hash, "err", err)
	}
	if ts.enqueuer == nil {
		return
	}
	task, err := types.NewTransactionWatchTask(&types.TransactionWatchTask{Hash: hash, SessionID: sessionID})
	if err != nil {
		level.Warn(global.Logger).Log("msg", "failed to create transaction watch task", "hash", hash, "err", err)
		return
	}
	if _, err := ts.enqueuer.EnqueueContext(ctx, task); err != nil {
		level.Warn(global.Logger).Log("msg", "failed to enqueue transaction watch task", "hash", hash, "err", err)
	}
}

func watchedTransactionKey(hash string) string {
	return "tx:" + strings.ToLower(hash)
}

// SaveWatchedTransaction records the last known status of a submitted transaction (kept for a day)
func (ts *TransactionService) SaveWatchedTransaction(ctx context.Context, watched *types.WatchedTransaction) error {
	data, err := json.Marshal(watched)
	if err != nil {
		return err
	}
	return ts.store.Set(ctx, watchedTransactionKey(watched.Hash), string(data), 24*time.Hour)
}

// GetWatchedTransaction returns types.ErrNotFound for hashes this server never submitted
func (ts *TransactionService) GetWatchedTransaction(ctx context.Context, hash string) (*types.WatchedTransaction, error) {
	data, err := ts.store.Get(ctx, watchedTransactionKey(hash))
	if err != nil {
		return nil, err
	}
	var watched types.WatchedTransaction
	if uErr := json.Unmarshal([]byte(data), &watched); uErr != nil {
		level.Warn(global.Logger).Log("msg", "corrupted watched transaction", "hash", hash, "err", uErr)
		return nil, types.ErrNotFound
	}
	return &watched, nil
}

// RecordFinalStatus maps the node's committed transaction onto the watched record
func (ts *TransactionService) RecordFinalStatus(ctx context.Context, status *types.TransactionStatus) error {
	if status == nil {
		return errors.New("nil transaction status")
	}
	watched := &types.WatchedTransaction{
		Hash:     status.Hash,
		Status:   types.WatchStatusFailed,
		VMStatus: status.VMStatus,
		Version:  status.Version,
		Updated:  ts.now().UnixMilli(),
	}
	if status.Success {
		watched.Status = types.WatchStatusSuccess
	}
	return ts.SaveWatchedTransaction(ctx, watched)
}

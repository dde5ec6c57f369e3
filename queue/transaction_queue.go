package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/mailio/go-keyless-server/chain"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
)

const (
	// how long a single watch attempt waits for the node to commit the transaction
	watchTimeout  = 60 * time.Second
	watchInterval = time.Second
)

type TransactionQueue struct {
	watcher            chain.TransactionWatcher
	transactionService *services.TransactionService
}

func NewTransactionQueue(watcher chain.TransactionWatcher, transactionService *services.TransactionService) *TransactionQueue {
	return &TransactionQueue{watcher: watcher, transactionService: transactionService}
}

// ProcessTransactionWatchTask waits for a submitted transaction and records its final status.
// Returning an error makes asynq retry the task (timeouts, node hiccups).
func (tq *TransactionQueue) ProcessTransactionWatchTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != types.QueueTypeTransactionWatch {
		return fmt.Errorf("unexpected task type: %s, %w", t.Type(), asynq.SkipRetry)
	}
	var task types.TransactionWatchTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if task.Hash == "" {
		return fmt.Errorf("missing transaction hash: %w", asynq.SkipRetry)
	}

	wctx, cancel := context.WithTimeout(ctx, watchTimeout)
	defer cancel()

	status, err := tq.watcher.WaitForTransaction(wctx, task.Hash, watchInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			level.Info(global.Logger).Log("msg", "transaction still pending", "hash", task.Hash)
		} else {
			level.Error(global.Logger).Log("msg", "failed to watch transaction", "hash", task.Hash, "err", err)
		}
		return err
	}
	if sErr := tq.transactionService.RecordFinalStatus(ctx, status); sErr != nil {
		level.Error(global.Logger).Log("msg", "failed to record transaction status", "hash", task.Hash, "err", sErr)
		return sErr
	}
	return nil
}

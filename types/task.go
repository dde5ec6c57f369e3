package types

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

var (
	QueueTypeTransactionWatch = "transaction:watch"
)

// TransactionWatchTask waits for a submitted transaction and records its final status
type TransactionWatchTask struct {
	Hash      string `json:"hash" validate:"required"`
	SessionID string `json:"sessionId,omitempty"`
}

func NewTransactionWatchTask(task *TransactionWatchTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeTransactionWatch, payload, asynq.MaxRetry(3)), nil
}

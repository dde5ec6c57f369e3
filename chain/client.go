package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

// Client is a thin node REST API client
type Client struct {
	restyClient *resty.Client
}

func NewClient(nodeURL string) *Client {
	rc := resty.New().SetBaseURL(strings.TrimRight(nodeURL, "/")).SetTimeout(10 * time.Second)
	rc.SetHeader("Accept", "application/json")
	rc.SetHeader("Content-Type", "application/json")
	return &Client{restyClient: rc}
}

// GetClient exposes the underlying http client (httpmock in tests)
func (c *Client) GetClient() *http.Client {
	return c.restyClient.GetClient()
}

// nodeError maps a node error response, 404 becomes types.ErrNotFound
func nodeError(response *resty.Response) error {
	if response.StatusCode() == http.StatusNotFound {
		return types.ErrNotFound
	}
	var ne types.NodeError
	if err := json.Unmarshal(response.Body(), &ne); err != nil || ne.Message == "" {
		return fmt.Errorf("node responded with %d: %s", response.StatusCode(), response.String())
	}
	return fmt.Errorf("node responded with %d (%s): %s", response.StatusCode(), ne.ErrorCode, ne.Message)
}

// GetAccount returns the account's sequence number and auth key, types.ErrNotFound when the account doesn't exist on chain
func (c *Client) GetAccount(ctx context.Context, address string) (*types.AccountInfo, error) {
	addr, err := util.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	var account types.AccountInfo
	response, rErr := c.restyClient.R().SetContext(ctx).SetResult(&account).Get("/v1/accounts/" + addr)
	if rErr != nil {
		return nil, rErr
	}
	if response.IsError() {
		return nil, nodeError(response)
	}
	return &account, nil
}

func (c *Client) GetLedgerInfo(ctx context.Context) (*types.LedgerInfo, error) {
	var info types.LedgerInfo
	response, err := c.restyClient.R().SetContext(ctx).SetResult(&info).Get("/v1")
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, nodeError(response)
	}
	return &info, nil
}

// EncodeSubmission asks the node for the signing message of an unsigned transaction
func (c *Client) EncodeSubmission(ctx context.Context, txn *types.RawTransaction) ([]byte, error) {
	var encoded string
	response, err := c.restyClient.R().SetContext(ctx).SetBody(txn).SetResult(&encoded).Post("/v1/transactions/encode_submission")
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, nodeError(response)
	}
	message, dErr := util.DecodeHexWithPrefix(encoded)
	if dErr != nil {
		return nil, fmt.Errorf("invalid signing message %q: %w", encoded, dErr)
	}
	return message, nil
}

// SubmitTransaction submits a signed transaction once. It never retries.
func (c *Client) SubmitTransaction(ctx context.Context, txn *types.SignedTransaction) (*types.PendingTransaction, error) {
	var pending types.PendingTransaction
	response, err := c.restyClient.R().SetContext(ctx).SetBody(txn).SetResult(&pending).Post("/v1/transactions")
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, nodeError(response)
	}
	return &pending, nil
}

func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*types.TransactionStatus, error) {
	var status types.TransactionStatus
	response, err := c.restyClient.R().SetContext(ctx).SetResult(&status).Get("/v1/transactions/by_hash/" + hash)
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, nodeError(response)
	}
	return &status, nil
}

// WaitForTransaction polls until the transaction is committed or ctx is done.
// Unknown hashes are treated as pending since the node may not have indexed them yet.
func (c *Client) WaitForTransaction(ctx context.Context, hash string, interval time.Duration) (*types.TransactionStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.GetTransactionByHash(ctx, hash)
		if err == nil && !status.IsPending() {
			return status, nil
		}
		if err != nil && err != types.ErrNotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

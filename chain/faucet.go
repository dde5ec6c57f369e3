package chain

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mailio/go-keyless-server/util"
)

// Faucet funds fresh accounts on test networks
type Faucet struct {
	restyClient *resty.Client
}

func NewFaucet(faucetURL string) *Faucet {
	rc := resty.New().SetBaseURL(strings.TrimRight(faucetURL, "/")).SetTimeout(30 * time.Second)
	return &Faucet{restyClient: rc}
}

func (f *Faucet) GetClient() *http.Client {
	return f.restyClient.GetClient()
}

// FundAccount mints amount into address and returns the funding transaction hashes
func (f *Faucet) FundAccount(ctx context.Context, address string, amount uint64) ([]string, error) {
	addr, err := util.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	var hashes []string
	response, rErr := f.restyClient.R().SetContext(ctx).
		SetQueryParam("amount", strconv.FormatUint(amount, 10)).
		SetQueryParam("address", addr).
		SetResult(&hashes).
		Post("/mint")
	if rErr != nil {
		return nil, rErr
	}
	if response.IsError() {
		return nil, fmt.Errorf("faucet responded with %d: %s", response.StatusCode(), response.String())
	}
	return hashes, nil
}

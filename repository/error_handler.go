package repository

import (
	"encoding/json"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/types"
)

func handleError(reqErr *resty.Response) error {
	if reqErr.StatusCode() == 404 {
		return types.ErrNotFound
	}
	if reqErr.StatusCode() == 409 {
		return types.ErrConflict
	}
	if reqErr.IsError() {
		var dbErr types.CouchDBError
		uErr := json.Unmarshal(reqErr.Body(), &dbErr)
		if uErr != nil {
			level.Error(global.Logger).Log("msg", "failed to unmarshal couchdb error", "err", uErr)
			return uErr
		}
		if dbErr.Error != "" {
			return fmt.Errorf("%s: %s", dbErr.Error, dbErr.Reason)
		}
		return types.ErrBadRequest
	}
	return nil
}

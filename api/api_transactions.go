package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/mailio/go-keyless-server/api/interceptors"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
)

type TransactionApi struct {
	transactionService *services.TransactionService
	validate           *validator.Validate
}

func NewTransactionApi(transactionService *services.TransactionService) *TransactionApi {
	return &TransactionApi{transactionService: transactionService, validate: validator.New()}
}

// Submit a transaction
// @Security Bearer
// @Summary Sign the entry function payload with the session's keyless account and submit it once
// @Tags Transactions
// @Param payload body types.EntryFunctionPayload true "entry function payload"
// @Success 202 {object} types.PendingTransaction
// @Failure 400 {object} api.ApiError "invalid payload"
// @Failure 401 {object} api.ApiError "no keyless account connected"
// @Failure 502 {object} api.ApiError "node rejected the transaction"
// @Router /api/v1/transactions [post]
func (ta *TransactionApi) Submit(c *gin.Context) {
	sessionID, err := interceptors.GetSessionID(c)
	if err != nil {
		ApiErrorf(c, http.StatusUnauthorized, "session not found")
		return
	}
	var payload types.EntryFunctionPayload
	if bErr := c.ShouldBindJSON(&payload); bErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if vErr := ta.validate.Struct(payload); vErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "%s", ValidatorErrorToUser(vErr.(validator.ValidationErrors)))
		return
	}

	pending, err := ta.transactionService.SignAndSubmitTransaction(c.Request.Context(), sessionID, &payload)
	if err != nil {
		if errors.Is(err, types.ErrInvalidPayload) {
			ApiErrorf(c, http.StatusBadRequest, "invalid entry function")
			return
		}
		level.Error(global.Logger).Log("msg", "failed to submit transaction", "err", err)
		ApiErrorf(c, http.StatusBadGateway, "failed to submit transaction")
		return
	}
	if pending == nil {
		ApiErrorf(c, http.StatusUnauthorized, "no keyless account connected")
		return
	}
	c.JSON(http.StatusAccepted, pending)
}

// Transaction status
// @Security Bearer
// @Summary Last known status of a transaction submitted through this server
// @Tags Transactions
// @Param hash path string true "transaction hash"
// @Success 200 {object} types.WatchedTransaction
// @Failure 404 {object} api.ApiError "unknown transaction"
// @Router /api/v1/transactions/{hash} [get]
func (ta *TransactionApi) GetStatus(c *gin.Context) {
	hash := c.Param("hash")
	watched, err := ta.transactionService.GetWatchedTransaction(c.Request.Context(), hash)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "transaction not found")
			return
		}
		level.Error(global.Logger).Log("msg", "failed to read transaction status", "hash", hash, "err", err)
		ApiErrorf(c, http.StatusInternalServerError, "failed to read transaction status")
		return
	}
	c.JSON(http.StatusOK, watched)
}

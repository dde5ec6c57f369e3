package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/api/interceptors"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
)

type AccountApi struct {
	accountService *services.KeylessAccountService
}

func NewAccountApi(accountService *services.KeylessAccountService) *AccountApi {
	return &AccountApi{accountService: accountService}
}

// Get the session's keyless account
// @Security Bearer
// @Summary Returns the connected keyless account address
// @Tags Account
// @Success 200 {object} types.OutputAccount
// @Failure 401 {object} api.ApiError "invalid session"
// @Failure 404 {object} api.ApiError "no account connected"
// @Router /api/v1/account [get]
func (aa *AccountApi) GetAccount(c *gin.Context) {
	sessionID, err := interceptors.GetSessionID(c)
	if err != nil {
		ApiErrorf(c, http.StatusUnauthorized, "session not found")
		return
	}
	account, err := aa.accountService.GetKeylessAccount(c.Request.Context(), sessionID)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to load keyless account", "err", err)
		ApiErrorf(c, http.StatusInternalServerError, "failed to load account")
		return
	}
	if account == nil {
		ApiErrorf(c, http.StatusNotFound, "no account connected")
		return
	}
	c.JSON(http.StatusOK, &types.OutputAccount{Address: account.Address, Connected: true})
}

// Disconnect
// @Security Bearer
// @Summary Forget the session's keyless account and every pending ephemeral key pair
// @Tags Account
// @Success 204
// @Failure 401 {object} api.ApiError "invalid session"
// @Router /api/v1/logout [post]
func (aa *AccountApi) Logout(c *gin.Context) {
	sessionID, err := interceptors.GetSessionID(c)
	if err != nil {
		ApiErrorf(c, http.StatusUnauthorized, "session not found")
		return
	}
	if err := aa.accountService.Disconnect(c.Request.Context(), sessionID); err != nil {
		level.Error(global.Logger).Log("msg", "failed to disconnect", "err", err)
		ApiErrorf(c, http.StatusInternalServerError, "failed to disconnect")
		return
	}
	c.Status(http.StatusNoContent)
}

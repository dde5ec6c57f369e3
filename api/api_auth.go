package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/api/interceptors"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

// largest auth message accepted from the login popup
const maxAuthMessageBytes = 64 * 1024

type AuthApi struct {
	loginService *services.LoginService
}

func NewAuthApi(loginService *services.LoginService) *AuthApi {
	return &AuthApi{loginService: loginService}
}

// Start a keyless login
// @Summary Generate an ephemeral key pair for the session and return the identity provider URL
// @Description A new session token is returned (and set as cookie) when the request carries no valid session
// @Tags Auth
// @Success 200 {object} types.LoginChallenge
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Failure 500 {object} api.ApiError "internal error"
// @Router /api/v1/auth/login [get]
func (aa *AuthApi) Login(c *gin.Context) {
	sessionID, err := interceptors.GetSessionID(c)
	if err != nil {
		ApiErrorf(c, http.StatusUnauthorized, "session not found")
		return
	}
	challenge, err := aa.loginService.BeginLogin(c.Request.Context(), sessionID)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to begin login", "err", err)
		ApiErrorf(c, http.StatusInternalServerError, "failed to begin login")
		return
	}
	challenge.SessionToken = interceptors.GetIssuedSessionToken(c)
	c.JSON(http.StatusOK, challenge)
}

// Complete a keyless login
// @Summary Bind the id token relayed by the login popup to the session's ephemeral key pair
// @Description Only accepted from allowed origins and only as {"type":"GOOGLE_AUTH_SUCCESS","id_token":"..."}
// @Tags Auth
// @Param message body types.AuthMessage true "auth message"
// @Success 200 {object} types.OutputLogin
// @Failure 400 {object} api.ApiError "invalid message or id token"
// @Failure 401 {object} api.ApiError "nonce doesn't match a pending login"
// @Failure 403 {object} api.ApiError "origin not allowed"
// @Failure 502 {object} api.ApiError "account derivation failed"
// @Router /api/v1/auth/callback [post]
func (aa *AuthApi) Callback(c *gin.Context) {
	sessionID, err := interceptors.GetSessionID(c)
	if err != nil {
		ApiErrorf(c, http.StatusUnauthorized, "session not found")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuthMessageBytes))
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	msg, err := util.ParseAuthMessage(c.GetHeader("Origin"), global.Conf.Identity.AllowedOrigins, body)
	if err != nil {
		if errors.Is(err, types.ErrInvalidOrigin) {
			level.Warn(global.Logger).Log("msg", "auth message from disallowed origin", "origin", c.GetHeader("Origin"))
			ApiErrorf(c, http.StatusForbidden, "origin not allowed")
			return
		}
		ApiErrorf(c, http.StatusBadRequest, "invalid auth message")
		return
	}

	result, err := aa.loginService.CompleteLogin(c.Request.Context(), sessionID, msg.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidNonce):
			ApiErrorf(c, http.StatusUnauthorized, "no pending login for this id token")
		case errors.Is(err, types.ErrInvalidIDToken):
			ApiErrorf(c, http.StatusBadRequest, "invalid id token")
		default:
			level.Error(global.Logger).Log("msg", "failed to complete login", "err", err)
			ApiErrorf(c, http.StatusBadGateway, "failed to derive keyless account")
		}
		return
	}
	c.JSON(http.StatusOK, &types.OutputLogin{Address: result.Account.Address, Funding: result.Funding})
}

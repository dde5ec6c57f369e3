package services

import (
	"context"
	"errors"
	"net/url"

	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/metrics"
	"github.com/mailio/go-keyless-server/types"
)

// LoginService drives the redirect based login: issue an ephemeral pair, then bind the returned id token to it
type LoginService struct {
	ephemeralKeys *EphemeralKeyService
	binder        *IdentityBinderService
	accounts      *KeylessAccountService
	authEndpoint  string
	clientID      string
	redirectURI   string
}

func NewLoginService(ephemeralKeys *EphemeralKeyService, binder *IdentityBinderService, accounts *KeylessAccountService) *LoginService {
	return &LoginService{
		ephemeralKeys: ephemeralKeys,
		binder:        binder,
		accounts:      accounts,
		authEndpoint:  global.Conf.Identity.AuthorizationEndpoint,
		clientID:      global.Conf.Identity.ClientID,
		redirectURI:   global.Conf.Identity.RedirectURI,
	}
}

// BeginLogin creates the session's ephemeral pair and the identity provider URL embedding its nonce
func (ls *LoginService) BeginLogin(ctx context.Context, sessionID string) (*types.LoginChallenge, error) {
	pair, err := ls.ephemeralKeys.GenerateKeyPair(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	authURL, uErr := AuthorizationURL(ls.authEndpoint, ls.clientID, ls.redirectURI, pair.Nonce)
	if uErr != nil {
		level.Error(global.Logger).Log("msg", "invalid authorization endpoint", "err", uErr)
		return nil, uErr
	}
	return &types.LoginChallenge{
		AuthorizationURL: authURL,
		Nonce:            pair.Nonce,
		ExpiryDateSecs:   pair.ExpiryDateSecs,
	}, nil
}

// AuthorizationURL builds the implicit flow URL: response_type=id_token, scope openid email profile
func AuthorizationURL(endpoint, clientID, redirectURI, nonce string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", types.ErrBadRequest
	}
	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "id_token")
	q.Set("scope", "openid email profile")
	q.Set("nonce", nonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CompleteLogin binds the id token to the pair named by its nonce, stores the account and discards the consumed pair
func (ls *LoginService) CompleteLogin(ctx context.Context, sessionID string, idToken string) (*types.BindResult, error) {
	claims, err := ls.binder.DecodeIDToken(ctx, idToken)
	if err != nil {
		metrics.KeylessLoginsTotal.WithLabelValues("invalid_token").Inc()
		return nil, err
	}
	pair, err := ls.ephemeralKeys.GetKeyPair(ctx, sessionID, claims.Nonce)
	if err != nil {
		metrics.KeylessLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if pair == nil {
		metrics.KeylessLoginsTotal.WithLabelValues("invalid_nonce").Inc()
		return nil, types.ErrInvalidNonce
	}

	result, err := ls.binder.Bind(ctx, idToken, pair)
	if err != nil {
		if errors.Is(err, types.ErrInvalidNonce) {
			metrics.KeylessLoginsTotal.WithLabelValues("invalid_nonce").Inc()
		} else {
			metrics.KeylessLoginsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if err := ls.accounts.StoreKeylessAccount(ctx, sessionID, result.Account); err != nil {
		metrics.KeylessLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := ls.ephemeralKeys.RemoveKeyPair(ctx, sessionID, pair.Nonce); err != nil {
		// the account is stored, a leftover pair just expires later
		level.Warn(global.Logger).Log("msg", "failed to discard consumed ephemeral key pair", "err", err)
	}
	metrics.KeylessLoginsTotal.WithLabelValues("success").Inc()
	return result, nil
}

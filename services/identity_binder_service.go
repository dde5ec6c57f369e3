package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/mailio/go-keyless-server/chain"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/metrics"
	"github.com/mailio/go-keyless-server/types"
)

// IdentityBinderService turns an id token plus the ephemeral key pair that started the login into a keyless account
type IdentityBinderService struct {
	deriver      chain.AccountDeriver
	reader       chain.AccountReader
	funder       chain.AccountFunder // nil disables the faucet step
	fundAmount   uint64
	issuer       string
	audience     string
	keySet       jwk.Set // nil defers signature verification to the prover
	claimsChecks *validator.Validate
	now          func() time.Time
}

func NewIdentityBinderService(deriver chain.AccountDeriver, reader chain.AccountReader, funder chain.AccountFunder) *IdentityBinderService {
	return &IdentityBinderService{
		deriver:      deriver,
		reader:       reader,
		funder:       funder,
		fundAmount:   global.Conf.Chain.FaucetAmount,
		issuer:       global.Conf.Identity.Issuer,
		audience:     global.Conf.Identity.ClientID,
		claimsChecks: validator.New(),
		now:          time.Now,
	}
}

// WithKeySet enables local id token signature verification
func (ibs *IdentityBinderService) WithKeySet(keySet jwk.Set) *IdentityBinderService {
	ibs.keySet = keySet
	return ibs
}

// NewCachedKeySet keeps the provider's JWKS fresh in the background
func NewCachedKeySet(ctx context.Context, jwksURL string) (jwk.Set, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, err
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, err
	}
	return jwk.NewCachedSet(cache, jwksURL), nil
}

// DecodeIDToken parses the token and validates the claims it must carry.
// All failures wrap types.ErrInvalidIDToken.
func (ibs *IdentityBinderService) DecodeIDToken(ctx context.Context, idToken string) (*types.IDTokenClaims, error) {
	var (
		token jwt.Token
		err   error
	)
	if ibs.keySet != nil {
		token, err = jwt.Parse([]byte(idToken), jwt.WithKeySet(ibs.keySet), jwt.WithValidate(false))
	} else {
		token, err = jwt.ParseInsecure([]byte(idToken))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidIDToken, err.Error())
	}

	claims := &types.IDTokenClaims{
		Issuer:  token.Issuer(),
		Subject: token.Subject(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Audience = aud[0]
	}
	if !token.Expiration().IsZero() {
		claims.ExpiresAt = token.Expiration().Unix()
	}
	if !token.IssuedAt().IsZero() {
		claims.IssuedAt = token.IssuedAt().Unix()
	}
	private := token.PrivateClaims()
	claims.Nonce, _ = private["nonce"].(string)
	claims.Email, _ = private["email"].(string)
	claims.Name, _ = private["name"].(string)
	claims.Picture, _ = private["picture"].(string)
	switch v := private["email_verified"].(type) {
	case bool:
		claims.EmailVerified = v
	case string:
		claims.EmailVerified, _ = strconv.ParseBool(v)
	}

	if vErr := ibs.claimsChecks.Struct(claims); vErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidIDToken, vErr.Error())
	}
	if claims.ExpiresAt <= ibs.now().Unix() {
		return nil, fmt.Errorf("%w: token expired", types.ErrInvalidIDToken)
	}
	if ibs.issuer != "" && claims.Issuer != ibs.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %s", types.ErrInvalidIDToken, claims.Issuer)
	}
	if ibs.audience != "" {
		matched := false
		for _, aud := range token.Audience() {
			if aud == ibs.audience {
				matched = true
				claims.Audience = aud
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: unexpected audience", types.ErrInvalidIDToken)
		}
	}
	return claims, nil
}

// Bind checks the token's nonce against the pair and derives the account.
// The derivation is never attempted when the nonce doesn't match.
func (ibs *IdentityBinderService) Bind(ctx context.Context, idToken string, ekp *types.EphemeralKeyPair) (*types.BindResult, error) {
	if ekp == nil {
		return nil, types.ErrInvalidNonce
	}
	claims, err := ibs.DecodeIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if claims.Nonce != ekp.Nonce {
		return nil, types.ErrInvalidNonce
	}

	start := time.Now()
	account, dErr := ibs.deriver.DeriveKeylessAccount(ctx, idToken, claims, ekp)
	metrics.KeylessDerivationLatency.Observe(float64(time.Since(start).Milliseconds()))
	if dErr != nil {
		level.Error(global.Logger).Log("msg", "failed to derive keyless account", "err", dErr)
		return nil, dErr
	}

	funding := ibs.FundAccount(ctx, account.Address)
	return &types.BindResult{Account: account, Funding: funding}, nil
}

// FundAccount provisions a new account with the faucet. Existing accounts are skipped.
// Failures are reported in the result, never returned as errors.
func (ibs *IdentityBinderService) FundAccount(ctx context.Context, address string) types.FundingResult {
	result := ibs.fund(ctx, address)
	metrics.FaucetFundingsTotal.WithLabelValues(string(result.Status)).Inc()
	if result.Status == types.FundingFailed {
		level.Warn(global.Logger).Log("msg", "faucet funding failed", "address", address, "err", result.Error)
	}
	return result
}

func (ibs *IdentityBinderService) fund(ctx context.Context, address string) types.FundingResult {
	if ibs.funder == nil || ibs.fundAmount == 0 {
		return types.FundingResult{Status: types.FundingSkipped}
	}
	if ibs.reader != nil {
		_, err := ibs.reader.GetAccount(ctx, address)
		if err == nil {
			return types.FundingResult{Status: types.FundingSkipped}
		}
		if !errors.Is(err, types.ErrNotFound) {
			return types.FundingResult{Status: types.FundingFailed, Error: err.Error()}
		}
	}
	hashes, err := ibs.funder.FundAccount(ctx, address, ibs.fundAmount)
	if err != nil {
		return types.FundingResult{Status: types.FundingFailed, Error: err.Error()}
	}
	return types.FundingResult{Status: types.FundingFunded, TxHashes: hashes}
}

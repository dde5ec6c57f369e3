package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

const uidKeySub = "sub"

// KeylessProver derives keyless accounts through the pepper service and the zk prover.
// Neither the id token signature nor the nonce binding is checked here, the prover does that.
type KeylessProver struct {
	pepperClient *resty.Client
	proverClient *resty.Client
}

type pepperRequest struct {
	JWT            string `json:"jwt_b64"`
	EPK            string `json:"epk"`
	ExpDateSecs    int64  `json:"exp_date_secs"`
	EPKBlinder     string `json:"epk_blinder"`
	UIDKey         string `json:"uid_key"`
	DerivationPath string `json:"derivation_path,omitempty"`
}

type pepperResponse struct {
	Pepper  string `json:"pepper"`
	Address string `json:"address"`
}

type proverRequest struct {
	JWT            string `json:"jwt_b64"`
	EPK            string `json:"epk"`
	EPKBlinder     string `json:"epk_blinder"`
	ExpDateSecs    int64  `json:"exp_date_secs"`
	ExpHorizonSecs int64  `json:"exp_horizon_secs"`
	Pepper         string `json:"pepper"`
	UIDKey         string `json:"uid_key"`
}

type proverResponse struct {
	Proof json.RawMessage `json:"proof"`
}

func NewKeylessProver(pepperURL, proverURL string) *KeylessProver {
	return &KeylessProver{
		pepperClient: resty.New().SetBaseURL(strings.TrimRight(pepperURL, "/")).SetTimeout(10 * time.Second),
		proverClient: resty.New().SetBaseURL(strings.TrimRight(proverURL, "/")).SetTimeout(30 * time.Second),
	}
}

// Clients returns the pepper and prover http clients (httpmock in tests)
func (kp *KeylessProver) Clients() (*resty.Client, *resty.Client) {
	return kp.pepperClient, kp.proverClient
}

func (kp *KeylessProver) DeriveKeylessAccount(ctx context.Context, jwt string, claims *types.IDTokenClaims, ekp *types.EphemeralKeyPair) (*types.KeylessAccount, error) {
	if claims == nil || ekp == nil {
		return nil, types.ErrBadRequest
	}
	epk := util.HexWithPrefix(ekp.PublicKey)
	blinder := util.HexWithPrefix(ekp.Blinder)

	var pepper pepperResponse
	response, err := kp.pepperClient.R().SetContext(ctx).
		SetBody(&pepperRequest{JWT: jwt, EPK: epk, ExpDateSecs: ekp.ExpiryDateSecs, EPKBlinder: blinder, UIDKey: uidKeySub}).
		SetResult(&pepper).
		Post("/v0/fetch")
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, fmt.Errorf("pepper service responded with %d: %s", response.StatusCode(), response.String())
	}
	pepperBytes, pErr := util.DecodeHexWithPrefix(pepper.Pepper)
	if pErr != nil || len(pepperBytes) == 0 {
		return nil, fmt.Errorf("invalid pepper: %w", types.ErrInvalidPayload)
	}
	address, aErr := util.NormalizeAddress(pepper.Address)
	if aErr != nil {
		return nil, fmt.Errorf("invalid derived address %q: %w", pepper.Address, types.ErrInvalidPayload)
	}

	var proof proverResponse
	response, err = kp.proverClient.R().SetContext(ctx).
		SetBody(&proverRequest{
			JWT:            jwt,
			EPK:            epk,
			EPKBlinder:     blinder,
			ExpDateSecs:    ekp.ExpiryDateSecs,
			ExpHorizonSecs: ekp.ExpiryDateSecs - claims.IssuedAt,
			Pepper:         pepper.Pepper,
			UIDKey:         uidKeySub,
		}).
		SetResult(&proof).
		Post("/v0/prove")
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, fmt.Errorf("prover responded with %d: %s", response.StatusCode(), response.String())
	}
	if len(proof.Proof) == 0 {
		return nil, fmt.Errorf("prover returned no proof: %w", types.ErrInvalidPayload)
	}

	return &types.KeylessAccount{
		Address:          address,
		JWT:              jwt,
		UIDKey:           uidKeySub,
		UIDVal:           claims.Subject,
		Aud:              claims.Audience,
		Iss:              claims.Issuer,
		Pepper:           pepperBytes,
		Proof:            []byte(proof.Proof),
		EphemeralKeyPair: ekp,
	}, nil
}

// JWTHeader returns the base64url header segment of a compact JWT
func JWTHeader(jwt string) (string, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return "", types.ErrInvalidIDToken
	}
	if _, err := util.FixAndDecodeURLBase64(parts[0]); err != nil {
		return "", fmt.Errorf("invalid jwt header: %w", types.ErrInvalidIDToken)
	}
	return parts[0], nil
}

// BuildAuthenticator signs the node's signing message with the account's ephemeral key
func BuildAuthenticator(account *types.KeylessAccount, signingMessage []byte) (*types.TransactionAuthenticator, error) {
	ekp := account.EphemeralKeyPair
	if ekp == nil {
		return nil, types.ErrInvalidPrivateKey
	}
	signature, err := util.Sign(signingMessage, ekp.PrivateKey)
	if err != nil {
		return nil, err
	}
	header, hErr := JWTHeader(account.JWT)
	if hErr != nil {
		return nil, hErr
	}
	return &types.TransactionAuthenticator{
		Type: "keyless_signature",
		PublicKey: types.KeylessPublicKey{
			Iss:    account.Iss,
			Aud:    account.Aud,
			UIDKey: account.UIDKey,
			Pepper: util.HexWithPrefix(account.Pepper),
		},
		Signature: types.KeylessSignature{
			EphemeralPublicKey: util.HexWithPrefix(ekp.PublicKey),
			EphemeralSignature: util.HexWithPrefix(signature),
			ExpiryDateSecs:     strconv.FormatInt(ekp.ExpiryDateSecs, 10),
			Proof:              util.HexWithPrefix(account.Proof),
			JWTHeader:          header,
		},
	}, nil
}

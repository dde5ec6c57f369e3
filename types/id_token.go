package types

// IDTokenClaims are the claims read from the federated identity token.
// email_verified is required, so false is rejected by validation.
type IDTokenClaims struct {
	Issuer        string `json:"iss" validate:"required"`
	Subject       string `json:"sub" validate:"required"`
	Audience      string `json:"aud" validate:"required"`
	Nonce         string `json:"nonce" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	EmailVerified bool   `json:"email_verified" validate:"required"`
	ExpiresAt     int64  `json:"exp" validate:"required"`
	IssuedAt      int64  `json:"iat" validate:"required"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

const (
	AuthMessageTypeGoogleSuccess = "GOOGLE_AUTH_SUCCESS"
)

// AuthMessage is the only message the login popup may relay back to the initiating window
type AuthMessage struct {
	Type    string `json:"type" validate:"required,eq=GOOGLE_AUTH_SUCCESS"`
	IDToken string `json:"id_token" validate:"required"`
}

// LoginChallenge is returned when a login starts, the client opens AuthorizationURL in a popup
type LoginChallenge struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Nonce            string `json:"nonce"`
	ExpiryDateSecs   int64  `json:"expiryDateSecs"`
	SessionToken     string `json:"sessionToken,omitempty"`
}

type FundingStatus string

const (
	FundingFunded  FundingStatus = "funded"
	FundingSkipped FundingStatus = "skipped"
	FundingFailed  FundingStatus = "failed"
)

// FundingResult is the observable outcome of the post derivation faucet step
type FundingResult struct {
	Status   FundingStatus `json:"status"`
	TxHashes []string      `json:"txHashes,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// BindResult is returned after a successful identity binding
type BindResult struct {
	Account *KeylessAccount `json:"account"`
	Funding FundingResult   `json:"funding"`
}

package types

// EntryFunctionPayload is what callers hand to the transaction gateway
type EntryFunctionPayload struct {
	Function          string        `json:"function" validate:"required"`
	TypeArguments     []string      `json:"typeArguments"`
	FunctionArguments []interface{} `json:"functionArguments"`
}

// node JSON representation of an entry function payload
type NodeEntryFunctionPayload struct {
	Type          string        `json:"type"`
	Function      string        `json:"function"`
	TypeArguments []string      `json:"type_arguments"`
	Arguments     []interface{} `json:"arguments"`
}

// RawTransaction is the unsigned envelope (numbers are strings as the node expects u64 in JSON)
type RawTransaction struct {
	Sender                  string                   `json:"sender"`
	SequenceNumber          string                   `json:"sequence_number"`
	MaxGasAmount            string                   `json:"max_gas_amount"`
	GasUnitPrice            string                   `json:"gas_unit_price"`
	ExpirationTimestampSecs string                   `json:"expiration_timestamp_secs"`
	Payload                 NodeEntryFunctionPayload `json:"payload"`
}

// KeylessSignature carries the ephemeral signature together with the material the node needs
// to check it against the account's identity commitment
type KeylessSignature struct {
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	EphemeralSignature string `json:"ephemeral_signature"`
	ExpiryDateSecs     string `json:"expiry_date_secs"`
	Proof              string `json:"proof"`
	JWTHeader          string `json:"jwt_header"`
}

type KeylessPublicKey struct {
	Iss    string `json:"iss"`
	Aud    string `json:"aud"`
	UIDKey string `json:"uid_key"`
	Pepper string `json:"pepper"`
}

type TransactionAuthenticator struct {
	Type      string           `json:"type"`
	PublicKey KeylessPublicKey `json:"public_key"`
	Signature KeylessSignature `json:"signature"`
}

type SignedTransaction struct {
	RawTransaction
	Signature TransactionAuthenticator `json:"signature"`
}

// PendingTransaction is the handle returned after submission
type PendingTransaction struct {
	Hash                    string                   `json:"hash"`
	Sender                  string                   `json:"sender"`
	SequenceNumber          string                   `json:"sequence_number"`
	MaxGasAmount            string                   `json:"max_gas_amount"`
	GasUnitPrice            string                   `json:"gas_unit_price"`
	ExpirationTimestampSecs string                   `json:"expiration_timestamp_secs"`
	Payload                 NodeEntryFunctionPayload `json:"payload"`
}

// TransactionStatus is the subset of a committed (or pending) transaction we care about
type TransactionStatus struct {
	Hash     string `json:"hash"`
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status,omitempty"`
	Version  string `json:"version,omitempty"`
}

const PendingTransactionType = "pending_transaction"

// IsPending reports whether the node hasn't committed the transaction yet
func (ts *TransactionStatus) IsPending() bool {
	return ts.Type == PendingTransactionType
}

type AccountInfo struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

type LedgerInfo struct {
	ChainID       int    `json:"chain_id"`
	LedgerVersion string `json:"ledger_version"`
}

// NodeError is the error body returned by the node REST API
type NodeError struct {
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VMErrorCode int    `json:"vm_error_code,omitempty"`
}

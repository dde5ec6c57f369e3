package types

import "errors"

var (
	// ErrNotFound is returned when the resource (document, session slot, account) doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInternal (for unahandled exceptions)
	ErrInternal = errors.New("internal error")

	// ErrConflict is returned when the resource conflicts (e.g. update of old revision)
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned for malformed input
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned when the session has no usable credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAuthorized is returned by the pinning gateway on access denied
	ErrNotAuthorized = errors.New("not authorized")

	ErrInvalidNonce       = errors.New("invalid nonce")
	ErrInvalidIDToken     = errors.New("invalid id token")
	ErrInvalidOrigin      = errors.New("invalid origin")
	ErrInvalidAuthMessage = errors.New("invalid auth message")
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
	ErrInvalidPayload     = errors.New("invalid transaction payload")

	// ErrCommunityNotFound is returned when a community record or one of its key components is missing
	ErrCommunityNotFound = errors.New("Community not found")
	ErrNoActiveMasterKey = errors.New("no active master key")
	ErrUnknownMasterKey  = errors.New("unknown master key")
	ErrDecryptionFailed  = errors.New("decryption failed")

	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("empty file")
)

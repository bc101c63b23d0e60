package domain

import "errors"

var (
	ErrNoActiveKey          = errors.New("no active signing key")
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrKeyNotFound          = errors.New("key not found")
	ErrKeyRevoked           = errors.New("key revoked")
	ErrDuplicateKey         = errors.New("key already registered")
	ErrReplay               = errors.New("nonce already consumed")
	ErrNonceExpired         = errors.New("nonce expired")
	ErrMalformedSignature   = errors.New("malformed signature")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrNotFound             = errors.New("not found")
)

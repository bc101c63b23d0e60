package domain

import (
	"encoding/json"
	"time"
)

type Algorithm string

const (
	AlgEd25519 Algorithm = "ed25519"
	AlgRSAPSS  Algorithm = "rsa-pss"
)

type TrustLevel string

const (
	TrustNone     TrustLevel = "none"
	TrustLow      TrustLevel = "low"
	TrustMedium   TrustLevel = "medium"
	TrustHigh     TrustLevel = "high"
	TrustCritical TrustLevel = "critical"
)

// SignedExecution is the wire form of one signed tool invocation. Every field
// a third party needs to re-verify the record offline is present; the
// signature covers the canonical byte form of (alg, input, nonce, output,
// timestamp, tool_id).
type SignedExecution struct {
	ExecutionID string          `json:"execution_id"`
	ToolID      string          `json:"tool_id"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output"`
	Signature   string          `json:"signature"` // base64
	KeyID       string          `json:"key_id"`
	Alg         Algorithm       `json:"alg"`
	Nonce       string          `json:"nonce,omitempty"`
	SignedAt    time.Time       `json:"signed_at"`
	TrustLevel  TrustLevel      `json:"trust_level"`
}

// SignedAtMillis is the timestamp value included in the signed canonical
// payload. Milliseconds keep the encoding stable across languages.
func (e SignedExecution) SignedAtMillis() int64 {
	return e.SignedAt.UnixMilli()
}

type VerificationErrorKind string

const (
	VerifyErrNone               VerificationErrorKind = ""
	VerifyErrKeyNotFound        VerificationErrorKind = "key_not_found"
	VerifyErrKeyRevoked         VerificationErrorKind = "key_revoked"
	VerifyErrSignatureInvalid   VerificationErrorKind = "signature_invalid"
	VerifyErrMalformedSignature VerificationErrorKind = "malformed_signature"
	VerifyErrUnsupportedAlg     VerificationErrorKind = "unsupported_algorithm"
	VerifyErrReplay             VerificationErrorKind = "nonce_replayed"
	VerifyErrNonceExpired       VerificationErrorKind = "nonce_expired"
)

// VerificationResult reports the outcome of verifying one SignedExecution.
// Routine invalidity is carried here, not as a Go error; only infrastructure
// faults (storage unavailable) surface as errors from the verify usecase.
type VerificationResult struct {
	Valid       bool                  `json:"valid"`
	ExecutionID string                `json:"execution_id"`
	ToolID      string                `json:"tool_id"`
	KeyID       string                `json:"key_id"`
	TrustLevel  TrustLevel            `json:"trust_level"`
	ErrorKind   VerificationErrorKind `json:"error_kind,omitempty"`
	VerifiedAt  time.Time             `json:"verified_at"`
}

type Nonce struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (n Nonce) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

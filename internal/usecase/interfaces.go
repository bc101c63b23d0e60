package usecase

import (
	"context"
	"time"

	"sigil/internal/domain"
	"sigil/internal/infra/crypto"
	"sigil/internal/infra/execstore"
	"sigil/internal/infra/nonce"
)

// TrustRegistry is the full read/write surface over registered keys. It
// extends domain.TrustSource with registration and revocation.
type TrustRegistry interface {
	domain.TrustSource
	Register(ctx context.Context, entry domain.TrustEntry) error
	Revoke(ctx context.Context, keyID, reason string) error
	Lookup(ctx context.Context, keyID string) (*domain.TrustEntry, error)
}

// NonceLedger issues single-use nonces and consumes them exactly once.
// Consume returns domain.ErrReplay on a second consumption and
// domain.ErrNonceExpired when the nonce's window has lapsed.
type NonceLedger interface {
	Issue() domain.Nonce
	Consume(ctx context.Context, n domain.Nonce) error
	Stats(ctx context.Context) (nonce.Stats, error)
}

// ExecutionStore records signed executions and serves the recent window the
// claim matcher searches.
type ExecutionStore interface {
	Record(ctx context.Context, exec domain.SignedExecution) error
	Recent(ctx context.Context, toolID string, within time.Duration) ([]domain.SignedExecution, error)
	Stats(ctx context.Context) (execstore.Stats, error)
}

// Keyring serves signing key material.
type Keyring interface {
	Active() (*crypto.KeyPair, error)
	Lookup(keyID string) (*crypto.KeyPair, error)
	Rotate(alg domain.Algorithm) (*crypto.KeyPair, error)
}

// CryptoService canonicalizes and checks execution signatures.
type CryptoService interface {
	CanonicalizeExecution(exec domain.SignedExecution) ([]byte, error)
	VerifyExecution(exec domain.SignedExecution, publicKey []byte) error
}

// VerificationCache memoizes verification results by execution id.
type VerificationCache interface {
	Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error)
	Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error
}

// ClaimExtractor pulls tool-result claims out of free-form text.
type ClaimExtractor interface {
	Extract(text string) []domain.Claim
}

// Clock lets tests pin time.
type Clock func() time.Time

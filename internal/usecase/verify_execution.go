package usecase

import (
	"context"
	"errors"
	"time"

	"sigil/internal/domain"
)

type VerifyExecutionRequest struct {
	Execution domain.SignedExecution
	// ConsumeNonce also burns the execution's nonce, making this call the
	// single accepted presentation of the record.
	ConsumeNonce bool
}

// VerifyExecution checks a signed execution against the trust registry and,
// when asked, consumes its nonce. Invalid records come back as a result with
// an error kind; Go errors are reserved for infrastructure faults.
type VerifyExecution struct {
	Trust    TrustRegistry
	Crypto   CryptoService
	Nonces   NonceLedger
	Cache    VerificationCache
	CacheTTL time.Duration
	NonceTTL time.Duration
	Now      Clock
}

const defaultNonceTTL = 10 * time.Minute

func (uc *VerifyExecution) Execute(ctx context.Context, req VerifyExecutionRequest) (domain.VerificationResult, error) {
	exec := req.Execution
	result := domain.VerificationResult{
		ExecutionID: exec.ExecutionID,
		ToolID:      exec.ToolID,
		KeyID:       exec.KeyID,
		VerifiedAt:  uc.now().UTC(),
	}

	entry, err := uc.Trust.Lookup(ctx, exec.KeyID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			result.ErrorKind = domain.VerifyErrKeyNotFound
			return result, nil
		}
		return result, err
	}
	if entry.Revoked {
		result.ErrorKind = domain.VerifyErrKeyRevoked
		return result, nil
	}

	// The cache only short-circuits the signature check; it is consulted
	// after the trust lookup so a revocation is always observed, and never
	// on nonce-consuming calls.
	if !req.ConsumeNonce && uc.Cache != nil && exec.ExecutionID != "" {
		if cached, ok, err := uc.Cache.Get(ctx, exec.ExecutionID); err == nil && ok && cached.Valid {
			return *cached, nil
		}
	}

	if err := uc.Crypto.VerifyExecution(exec, entry.PublicKey); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedAlgorithm):
			result.ErrorKind = domain.VerifyErrUnsupportedAlg
		case errors.Is(err, domain.ErrMalformedSignature):
			result.ErrorKind = domain.VerifyErrMalformedSignature
		default:
			result.ErrorKind = domain.VerifyErrSignatureInvalid
		}
		return result, nil
	}

	if req.ConsumeNonce && exec.Nonce != "" {
		if uc.Nonces == nil {
			return result, errors.New("nonce ledger is not configured")
		}
		if err := uc.Nonces.Consume(ctx, uc.nonceFor(exec)); err != nil {
			switch {
			case errors.Is(err, domain.ErrReplay):
				result.ErrorKind = domain.VerifyErrReplay
			case errors.Is(err, domain.ErrNonceExpired):
				result.ErrorKind = domain.VerifyErrNonceExpired
			default:
				return result, err
			}
			return result, nil
		}
	}

	result.Valid = true
	// The record's stamped level is the one in force when the tool ran;
	// later registry changes must not rewrite history.
	result.TrustLevel = exec.TrustLevel
	if result.TrustLevel == "" {
		result.TrustLevel = entry.TrustLevel
	}

	if !req.ConsumeNonce && uc.Cache != nil && exec.ExecutionID != "" && uc.CacheTTL > 0 {
		_ = uc.Cache.Put(ctx, exec.ExecutionID, result, uc.CacheTTL)
	}
	return result, nil
}

// ExecuteBatch verifies a slice of executions, keeping input order. A single
// infrastructure fault aborts the batch.
func (uc *VerifyExecution) ExecuteBatch(ctx context.Context, execs []domain.SignedExecution, consumeNonces bool) ([]domain.VerificationResult, error) {
	results := make([]domain.VerificationResult, 0, len(execs))
	for _, exec := range execs {
		res, err := uc.Execute(ctx, VerifyExecutionRequest{Execution: exec, ConsumeNonce: consumeNonces})
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// nonceFor reconstructs the nonce window from the execution's own signed
// timestamp, so expiry decisions do not depend on ledger residency.
func (uc *VerifyExecution) nonceFor(exec domain.SignedExecution) domain.Nonce {
	ttl := uc.NonceTTL
	if ttl <= 0 {
		ttl = defaultNonceTTL
	}
	return domain.Nonce{
		Value:     exec.Nonce,
		IssuedAt:  exec.SignedAt,
		ExpiresAt: exec.SignedAt.Add(ttl),
	}
}

func (uc *VerifyExecution) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

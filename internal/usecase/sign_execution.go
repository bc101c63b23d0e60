package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"sigil/internal/domain"
)

type SignExecutionRequest struct {
	ToolID   string
	Input    json.RawMessage
	Output   json.RawMessage
	UseNonce bool
}

// SignExecution produces signed execution records for tool outputs. Trust
// is stamped from the registry so callers see the level verifiers will see.
type SignExecution struct {
	Keys   Keyring
	Crypto CryptoService
	Nonces NonceLedger
	Store  ExecutionStore
	Trust  domain.TrustSource
	Now    Clock
}

func (uc *SignExecution) Execute(ctx context.Context, req SignExecutionRequest) (*domain.SignedExecution, error) {
	if req.ToolID == "" {
		return nil, errors.New("tool_id is required")
	}
	if len(req.Output) == 0 {
		return nil, errors.New("output is required")
	}

	key, err := uc.Keys.Active()
	if err != nil {
		return nil, err
	}

	exec := domain.SignedExecution{
		ExecutionID: uuid.NewString(),
		ToolID:      req.ToolID,
		Input:       req.Input,
		Output:      req.Output,
		KeyID:       key.KeyID(),
		Alg:         key.Algorithm(),
		SignedAt:    uc.now().UTC(),
	}

	if req.UseNonce {
		if uc.Nonces == nil {
			return nil, errors.New("nonce ledger is not configured")
		}
		exec.Nonce = uc.Nonces.Issue().Value
	}

	canonical, err := uc.Crypto.CanonicalizeExecution(exec)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(canonical)
	if err != nil {
		return nil, err
	}
	exec.Signature = base64.StdEncoding.EncodeToString(sig)

	if uc.Trust != nil {
		level, err := uc.Trust.TrustLevelOf(ctx, exec.KeyID)
		if err != nil {
			return nil, err
		}
		exec.TrustLevel = level
	}

	if uc.Store != nil {
		if err := uc.Store.Record(ctx, exec); err != nil {
			return nil, err
		}
	}
	return &exec, nil
}

func (uc *SignExecution) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

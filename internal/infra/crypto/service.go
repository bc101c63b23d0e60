package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"sigil/internal/domain"
)

// Service canonicalizes and verifies signed executions. Stateless; any
// number of goroutines may use one instance concurrently.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// executionPayload is the exact structure covered by the signature. Field
// set and encoding must never change without a version bump, or previously
// issued records stop verifying.
type executionPayload struct {
	Alg       string          `json:"alg"`
	Input     json.RawMessage `json:"input,omitempty"`
	Nonce     string          `json:"nonce,omitempty"`
	Output    json.RawMessage `json:"output"`
	Timestamp int64           `json:"timestamp"`
	ToolID    string          `json:"tool_id"`
}

func (s *Service) CanonicalizeExecution(exec domain.SignedExecution) ([]byte, error) {
	if exec.ToolID == "" {
		return nil, errors.New("tool id is required")
	}
	payload := executionPayload{
		Alg:       string(exec.Alg),
		Input:     exec.Input,
		Nonce:     exec.Nonce,
		Output:    exec.Output,
		Timestamp: exec.SignedAtMillis(),
		ToolID:    exec.ToolID,
	}
	return CanonicalizeAny(payload)
}

// VerifyExecution recomputes the canonical payload and checks the signature
// against pubKey. The returned error is one of the domain sentinels.
func (s *Service) VerifyExecution(exec domain.SignedExecution, pubKey []byte) error {
	switch exec.Alg {
	case domain.AlgEd25519, domain.AlgRSAPSS:
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, exec.Alg)
	}
	if exec.Signature == "" {
		return domain.ErrMalformedSignature
	}
	sigBytes, err := base64.StdEncoding.DecodeString(exec.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedSignature, err)
	}
	canonical, err := s.CanonicalizeExecution(exec)
	if err != nil {
		return err
	}
	ok, err := Verify(exec.Alg, pubKey, canonical, sigBytes)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// Package intercept wraps tool functions so their outputs are signed
// transparently. Callers receive a SignedExecution in place of the raw
// return value; the raw value stays available inside it.
package intercept

import (
	"context"
	"encoding/json"
	"fmt"

	"sigil/internal/domain"
	"sigil/internal/usecase"
)

// ToolFunc is the shape of a wrappable tool body: JSON in, JSON out.
type ToolFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Hook observes a call around the tool body. PreCall may rewrite the input;
// PostCall sees the signed record before it is returned.
type Hook interface {
	PreCall(ctx context.Context, toolID string, input json.RawMessage) (json.RawMessage, error)
	PostCall(ctx context.Context, exec *domain.SignedExecution) error
}

// HookFuncs adapts plain functions to Hook; nil members are skipped.
type HookFuncs struct {
	Pre  func(ctx context.Context, toolID string, input json.RawMessage) (json.RawMessage, error)
	Post func(ctx context.Context, exec *domain.SignedExecution) error
}

func (h HookFuncs) PreCall(ctx context.Context, toolID string, input json.RawMessage) (json.RawMessage, error) {
	if h.Pre == nil {
		return input, nil
	}
	return h.Pre(ctx, toolID, input)
}

func (h HookFuncs) PostCall(ctx context.Context, exec *domain.SignedExecution) error {
	if h.Post == nil {
		return nil
	}
	return h.Post(ctx, exec)
}

// Wrapper binds tool functions to a signing engine.
type Wrapper struct {
	signer   *usecase.SignExecution
	useNonce bool
	hooks    []Hook
}

type Option func(*Wrapper)

// WithNonce attaches a single-use nonce to every signed call.
func WithNonce() Option {
	return func(w *Wrapper) { w.useNonce = true }
}

// WithHook registers a hook; hooks run in registration order.
func WithHook(h Hook) Option {
	return func(w *Wrapper) { w.hooks = append(w.hooks, h) }
}

func NewWrapper(signer *usecase.SignExecution, opts ...Option) *Wrapper {
	w := &Wrapper{signer: signer}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wrap returns a function that runs the tool body and signs its output. A
// signing failure fails the call; the raw output is never returned unsigned.
func (w *Wrapper) Wrap(toolID string, fn ToolFunc) func(ctx context.Context, input json.RawMessage) (*domain.SignedExecution, error) {
	return func(ctx context.Context, input json.RawMessage) (*domain.SignedExecution, error) {
		var err error
		for _, h := range w.hooks {
			input, err = h.PreCall(ctx, toolID, input)
			if err != nil {
				return nil, fmt.Errorf("pre-call hook: %w", err)
			}
		}

		output, err := fn(ctx, input)
		if err != nil {
			return nil, err
		}

		exec, err := w.signer.Execute(ctx, usecase.SignExecutionRequest{
			ToolID:   toolID,
			Input:    input,
			Output:   output,
			UseNonce: w.useNonce,
		})
		if err != nil {
			return nil, fmt.Errorf("sign %s output: %w", toolID, err)
		}

		for _, h := range w.hooks {
			if err := h.PostCall(ctx, exec); err != nil {
				return nil, fmt.Errorf("post-call hook: %w", err)
			}
		}
		return exec, nil
	}
}

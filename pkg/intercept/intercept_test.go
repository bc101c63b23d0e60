package intercept

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sigil/internal/domain"
	"sigil/internal/infra/crypto"
	"sigil/internal/infra/execstore"
	"sigil/internal/infra/keyring"
	"sigil/internal/infra/nonce"
	"sigil/internal/infra/registry"
	"sigil/internal/usecase"
)

func newSigner(t *testing.T) (*usecase.SignExecution, *registry.MemoryRegistry, *execstore.MemoryStore) {
	t.Helper()

	kp, err := crypto.GenerateKeyPair(domain.AlgEd25519)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ring := keyring.New()
	ring.Add(kp, true)

	trust := registry.NewMemoryRegistry()
	if err := trust.Register(context.Background(), domain.TrustEntry{
		KeyID:      kp.KeyID(),
		Alg:        kp.Algorithm(),
		PublicKey:  kp.PublicKey(),
		TrustLevel: domain.TrustMedium,
	}); err != nil {
		t.Fatalf("register key: %v", err)
	}

	store := execstore.NewMemoryStore(0)
	signer := &usecase.SignExecution{
		Keys:   ring,
		Crypto: crypto.NewService(),
		Nonces: nonce.NewMemoryLedger(nonce.MemoryLedgerConfig{}),
		Store:  store,
		Trust:  trust,
	}
	return signer, trust, store
}

func echoTool(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"echo":` + string(input) + `}`), nil
}

func TestWrapSignsToolOutput(t *testing.T) {
	signer, trust, store := newSigner(t)
	wrapped := NewWrapper(signer).Wrap("echo_tool", echoTool)

	exec, err := wrapped(context.Background(), json.RawMessage(`{"q":"hi"}`))
	if err != nil {
		t.Fatalf("wrapped call: %v", err)
	}
	if exec.ToolID != "echo_tool" {
		t.Fatalf("tool id = %q", exec.ToolID)
	}
	if string(exec.Output) != `{"echo":{"q":"hi"}}` {
		t.Fatalf("output = %s", exec.Output)
	}

	entry, err := trust.Lookup(context.Background(), exec.KeyID)
	if err != nil {
		t.Fatalf("lookup signing key: %v", err)
	}
	if err := crypto.NewService().VerifyExecution(*exec, entry.PublicKey); err != nil {
		t.Fatalf("signed record does not verify: %v", err)
	}

	recent, err := store.Recent(context.Background(), "echo_tool", 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("execution not recorded: n=%d err=%v", len(recent), err)
	}
}

func TestWrapWithNonce(t *testing.T) {
	signer, _, _ := newSigner(t)
	wrapped := NewWrapper(signer, WithNonce()).Wrap("echo_tool", echoTool)

	exec, err := wrapped(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("wrapped call: %v", err)
	}
	if exec.Nonce == "" {
		t.Fatal("nonce missing from signed record")
	}
}

func TestHooksRunInOrder(t *testing.T) {
	signer, _, _ := newSigner(t)

	var trace []string
	hook := func(name string) Hook {
		return HookFuncs{
			Pre: func(_ context.Context, _ string, input json.RawMessage) (json.RawMessage, error) {
				trace = append(trace, "pre:"+name)
				return input, nil
			},
			Post: func(_ context.Context, _ *domain.SignedExecution) error {
				trace = append(trace, "post:"+name)
				return nil
			},
		}
	}

	wrapped := NewWrapper(signer, WithHook(hook("a")), WithHook(hook("b"))).Wrap("echo_tool", echoTool)
	if _, err := wrapped(context.Background(), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("wrapped call: %v", err)
	}

	want := []string{"pre:a", "pre:b", "post:a", "post:b"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestPreCallHookRewritesInput(t *testing.T) {
	signer, _, _ := newSigner(t)

	redact := HookFuncs{
		Pre: func(_ context.Context, _ string, _ json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"q":"[redacted]"}`), nil
		},
	}
	wrapped := NewWrapper(signer, WithHook(redact)).Wrap("echo_tool", echoTool)

	exec, err := wrapped(context.Background(), json.RawMessage(`{"q":"secret"}`))
	if err != nil {
		t.Fatalf("wrapped call: %v", err)
	}
	if string(exec.Input) != `{"q":"[redacted]"}` {
		t.Fatalf("signed input = %s, rewrite not applied", exec.Input)
	}
}

func TestToolErrorShortCircuits(t *testing.T) {
	signer, _, store := newSigner(t)
	boom := errors.New("upstream down")

	wrapped := NewWrapper(signer).Wrap("broken_tool", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, boom
	})
	if _, err := wrapped(context.Background(), json.RawMessage(`{}`)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the tool's own error", err)
	}
	if recent, _ := store.Recent(context.Background(), "broken_tool", 0); len(recent) != 0 {
		t.Fatal("failed call was recorded")
	}
}

func TestSigningFailureFailsTheCall(t *testing.T) {
	signer, _, _ := newSigner(t)
	signer.Keys = keyring.New()

	wrapped := NewWrapper(signer).Wrap("echo_tool", echoTool)
	if _, err := wrapped(context.Background(), json.RawMessage(`{}`)); !errors.Is(err, domain.ErrNoActiveKey) {
		t.Fatalf("err = %v, want ErrNoActiveKey", err)
	}
}

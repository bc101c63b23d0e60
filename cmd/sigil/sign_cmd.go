package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	cryptoinfra "sigil/internal/infra/crypto"
	"sigil/internal/infra/keyring"
	"sigil/internal/infra/nonce"
	"sigil/internal/usecase"
)

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var toolID string
	var inputJSON string
	var outputJSON string
	var useNonce bool
	var seedHex string
	var seedBase64 string
	var outPath string

	fs.StringVar(&toolID, "tool-id", "", "tool identifier")
	fs.StringVar(&inputJSON, "input", "", "tool input as JSON")
	fs.StringVar(&outputJSON, "output", "", "tool output as JSON")
	fs.BoolVar(&useNonce, "nonce", false, "attach a single-use nonce")
	fs.StringVar(&seedHex, "key-seed-hex", "", "ed25519 seed hex")
	fs.StringVar(&seedBase64, "key-seed-base64", "", "ed25519 seed base64")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if toolID == "" || outputJSON == "" {
		fmt.Fprintln(os.Stderr, "sign requires --tool-id and --output")
		return 1
	}

	kp, err := loadKeyPair(seedHex, seedBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
		return 1
	}

	ring := keyring.New()
	ring.Add(kp, true)
	uc := &usecase.SignExecution{
		Keys:   ring,
		Crypto: cryptoinfra.NewService(),
		Nonces: nonce.NewMemoryLedger(nonce.MemoryLedgerConfig{}),
	}

	var input json.RawMessage
	if inputJSON != "" {
		input = json.RawMessage(inputJSON)
	}
	exec, err := uc.Execute(context.Background(), usecase.SignExecutionRequest{
		ToolID:   toolID,
		Input:    input,
		Output:   json.RawMessage(outputJSON),
		UseNonce: useNonce,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
		return 1
	}

	payload, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
		return 1
	}
	return 0
}

func loadKeyPair(seedHex, seedBase64 string) (*cryptoinfra.KeyPair, error) {
	switch {
	case seedHex != "":
		raw, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("invalid --key-seed-hex: %w", err)
		}
		return cryptoinfra.NewEd25519KeyPairFromSeed(raw)
	case seedBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(seedBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid --key-seed-base64: %w", err)
		}
		return cryptoinfra.NewEd25519KeyPairFromSeed(raw)
	default:
		return nil, fmt.Errorf("a signing key is required (--key-seed-hex or --key-seed-base64)")
	}
}

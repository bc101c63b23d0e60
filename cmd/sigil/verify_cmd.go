package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"sigil/internal/domain"
	cryptoinfra "sigil/internal/infra/crypto"
)

type verifyOutput struct {
	Valid       bool   `json:"valid"`
	ExecutionID string `json:"execution_id"`
	ToolID      string `json:"tool_id"`
	KeyID       string `json:"key_id"`
	Error       string `json:"error,omitempty"`
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var pubHex string
	var pubBase64 string

	fs.StringVar(&inPath, "in", "", "signed execution JSON path")
	fs.StringVar(&pubHex, "pubkey-hex", "", "public key hex")
	fs.StringVar(&pubBase64, "pubkey-base64", "", "public key base64")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in")
		return 1
	}

	pubKey, err := loadPublicKey(pubHex, pubBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		return 1
	}

	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		return 1
	}
	var exec domain.SignedExecution
	if err := json.Unmarshal(raw, &exec); err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: invalid execution JSON: %v\n", err)
		return 1
	}

	out := verifyOutput{
		Valid:       true,
		ExecutionID: exec.ExecutionID,
		ToolID:      exec.ToolID,
		KeyID:       exec.KeyID,
	}
	if err := cryptoinfra.NewService().VerifyExecution(exec, pubKey); err != nil {
		out.Valid = false
		out.Error = err.Error()
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		return 1
	}
	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		return 1
	}
	if !out.Valid {
		return 2
	}
	return 0
}

func loadPublicKey(pubHex, pubBase64 string) ([]byte, error) {
	switch {
	case pubHex != "":
		return cryptoinfra.ParsePublicKeyHex(pubHex)
	case pubBase64 != "":
		return cryptoinfra.ParsePublicKeyBase64(pubBase64)
	default:
		return nil, errors.New("a public key is required (--pubkey-hex or --pubkey-base64)")
	}
}

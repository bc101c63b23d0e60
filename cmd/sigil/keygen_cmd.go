package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"sigil/internal/domain"
	cryptoinfra "sigil/internal/infra/crypto"
)

type keygenOutput struct {
	KeyID           string `json:"key_id"`
	Alg             string `json:"alg"`
	PublicKeyBase64 string `json:"public_key_base64"`
	SeedHex         string `json:"seed_hex,omitempty"`
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var alg string
	var outPath string
	fs.StringVar(&alg, "alg", string(domain.AlgEd25519), "key algorithm (ed25519 or rsa-pss)")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	kp, err := cryptoinfra.GenerateKeyPair(domain.Algorithm(alg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen failed: %v\n", err)
		return 1
	}

	out := keygenOutput{
		KeyID:           kp.KeyID(),
		Alg:             string(kp.Algorithm()),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(kp.PublicKey()),
		SeedHex:         kp.SeedHex(),
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen failed: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "keygen failed: %v\n", err)
		return 1
	}
	return 0
}

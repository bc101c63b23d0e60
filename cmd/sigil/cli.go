package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "sign":
		return runSign(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "scan":
		return runScan(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "sigil"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s keygen [--alg ed25519|rsa-pss] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s sign --tool-id <id> --output <json> [--input <json>] [--nonce] (--key-seed-hex <hex>|--key-seed-base64 <b64>) [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <execution.json> (--pubkey-hex <hex>|--pubkey-base64 <b64>) \n", name)
	fmt.Fprintf(os.Stderr, "  %s scan --in <text file> [--patterns <yaml>]\n", name)
}

func writeOutput(path string, payload []byte) error {
	if path == "" {
		if _, err := os.Stdout.Write(payload); err != nil {
			return err
		}
		_, err := fmt.Fprintln(os.Stdout)
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

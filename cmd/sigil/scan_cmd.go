package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"sigil/internal/claimscan"
)

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var patternsPath string
	fs.StringVar(&inPath, "in", "", "text file to scan")
	fs.StringVar(&patternsPath, "patterns", "", "YAML pattern config path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "scan requires --in")
		return 1
	}

	patterns, err := claimscan.LoadPatterns(patternsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return 1
	}
	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return 1
	}

	claims := claimscan.NewExtractor(claimscan.WithPatterns(patterns)).Extract(string(raw))
	payload, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return 1
	}
	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return 1
	}
	return 0
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/noah-isme/tour-quote/internal/settings"
)

// rules_check parses a pricing rules file and reports findings that would make
// quotes silently fall back to defaults.
// Exit code 0 = ok, 1 = findings, 2 = the file could not be loaded.
func main() {
	path := flag.String("file", "config/pricing.yaml", "pricing rules file to check")
	flag.Parse()

	snap, err := settings.FileSource{Path: *path}.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "rules_check error: %v\n", err)
		os.Exit(2)
	}
	findings := settings.Lint(snap)
	if len(findings) > 0 {
		for _, f := range findings {
			fmt.Fprintf(os.Stderr, "FINDING: %s\n", f)
		}
		os.Exit(1)
	}
	fmt.Printf("rules_check: OK (%s, %d slabs, %d tax rules)\n", snap.Version, len(snap.Settings.MarkupSlabs), len(snap.Taxes.Rules))
}

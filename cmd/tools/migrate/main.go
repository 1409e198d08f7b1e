package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/tour-quote/internal/store"
)

// migrate applies or inspects the proposal_quotes schema.
// Usage: migrate [-database URL] up|version
func main() {
	_ = godotenv.Load()

	dbURL := flag.String("database", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.Parse()
	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "migrate: DATABASE_URL is not set")
		os.Exit(2)
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}
	switch cmd {
	case "up":
		if err := store.Migrate(*dbURL); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrate: up to date")
	case "version":
		version, dirty, err := store.MigrationVersion(*dbURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("migrate: version %d dirty=%t\n", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "migrate: unknown command %q\n", cmd)
		os.Exit(2)
	}
}

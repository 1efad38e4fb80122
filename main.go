// Engram - persistent knowledge-graph memory for AI assistants.
//
// Engram stores a small labeled graph of entities and relations in a flat
// file and exposes it to a single caller over MCP, with CLI commands for
// inspection, integrity checking, and snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/engramdev/engram-go/cmd"
)

func main() {
	// Optional .env for MEMORY_FILE_PATH and friends.
	_ = godotenv.Load()

	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

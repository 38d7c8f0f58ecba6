package main

import (
	"os"

	"github.com/quantfolio/reindexer/cmd/reindexer/commands"
)

// main is the entry point for the reindexer CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

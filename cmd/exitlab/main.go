package main

import (
	"os"

	"github.com/wonny/exitlab/cmd/exitlab/commands"
)

// main is the entry point for the exitlab CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/exitlab [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

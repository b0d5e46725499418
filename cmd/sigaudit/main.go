package main

import (
	"os"

	"github.com/wonny/sigaudit/cmd/sigaudit/commands"
)

// main is the entry point for the sigaudit CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/sigaudit [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

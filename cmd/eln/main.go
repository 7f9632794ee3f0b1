package main

import (
	"os"

	"github.com/wonny/eln-backtest/cmd/eln/commands"
)

// main is the entry point for the ELN backtest CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/eln [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

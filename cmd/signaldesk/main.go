package main

import (
	"os"
	_ "time/tzdata" // MARKET_TZ must resolve on hosts without a zoneinfo database

	"github.com/wonny/signaldesk/cmd/signaldesk/commands"
)

// main is the entry point for the signaldesk CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/signaldesk [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

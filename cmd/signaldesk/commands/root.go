package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "signaldesk",
	Short: "signaldesk - 뉴스 기반 시가 방향 예측 및 검증",
	Long: `signaldesk Unified CLI

Predicts the next-session opening direction of tracked stocks from collected
news and trading data, then reconciles predictions against realized prices.

Usage:
  go run ./cmd/signaldesk [command]

Examples:
  go run ./cmd/signaldesk api
  go run ./cmd/signaldesk predictor
  go run ./cmd/signaldesk orchestrate
  go run ./cmd/signaldesk highlights --stock sz002594`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

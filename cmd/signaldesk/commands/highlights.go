package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/signaldesk/internal/evaluation"
)

// highlightsCmd represents the highlights command
var highlightsCmd = &cobra.Command{
	Use:   "highlights",
	Short: "하이라이트 재계산 (1회)",
	Long: `Reconciles stored conclusions against realized prices and upserts highlights.
Running it twice with unchanged data produces identical highlights.

Example:
  go run ./cmd/signaldesk highlights
  go run ./cmd/signaldesk highlights --stock sz002594`,
	RunE: runHighlights,
}

var highlightsStock string

func init() {
	rootCmd.AddCommand(highlightsCmd)

	highlightsCmd.Flags().StringVar(&highlightsStock, "stock", "", "recompute only this stock")
}

func runHighlights(cmd *cobra.Command, args []string) error {
	a, err := newApp("highlights")
	if err != nil {
		return err
	}
	defer a.close()

	repo, closeDB, err := a.openPostgres()
	if err != nil {
		return err
	}
	defer closeDB()

	engine := evaluation.NewEngine(repo, a.metrics, a.tracer, a.log.Zerolog())
	summaries, err := engine.Recompute(cmd.Context(), highlightsStock)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}

	total := 0
	for _, s := range summaries {
		fmt.Printf("\n[%s] %d highlight(s)\n", s.StockID, s.Generated)
		for _, h := range s.Items {
			fmt.Printf("  %s\n", h.Summary)
		}
		total += s.Generated
	}
	fmt.Printf("\n✅ %d stock(s), %d highlight(s)\n", len(summaries), total)
	return nil
}

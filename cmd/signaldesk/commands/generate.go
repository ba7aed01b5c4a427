package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/signaldesk/internal/llm"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "rate-limited generator 1회 호출",
	Long: `Sends one prompt through the rate-limited generator and prints the text.
The high tier falls back to the low tier once on failure.

Example:
  go run ./cmd/signaldesk generate "Summarize today's BYD news" --tier high`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

var (
	generateTier  string
	generateStrip bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateTier, "tier", "low", "quality tier (low|high)")
	generateCmd.Flags().BoolVar(&generateStrip, "strip", false, "strip markdown code fences from the answer")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	tier, err := llm.ParseTier(generateTier)
	if err != nil {
		return err
	}

	a, err := newApp("generate")
	if err != nil {
		return err
	}
	defer a.close()

	generator, err := a.newGenerator()
	if err != nil {
		return err
	}

	text, err := generator.Generate(cmd.Context(), strings.Join(args, " "), tier)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if generateStrip {
		text = llm.StripCodeFence(text)
	}

	fmt.Println(text)
	return nil
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 적용",
	Long: `Applies the embedded schema. Safe to run repeatedly.

Example:
  go run ./cmd/signaldesk migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp("migrate")
	if err != nil {
		return err
	}
	defer a.close()

	repo, closeDB, err := a.openPostgres()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	a.log.Info("Schema applied")
	fmt.Println("✅ Schema applied")
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codequest/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		db, err := database.InitializeWithConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		pending, err := db.PendingMigrations()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		}
		if err := db.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		for _, name := range pending {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
		}
		return nil
	},
}

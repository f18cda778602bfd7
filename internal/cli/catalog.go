package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"codequest/internal/service"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Import or export the question catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert questions from a YAML or JSON catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown(a)

		stats, err := a.Services.Catalog.Import(cmd.Context(), f, service.FormatFromPath(path))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d created, %d updated\n", path, stats.Created, stats.Updated)
		return nil
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the question catalog to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("catalog_%s.yaml", time.Now().Format("20060102_150405"))
		}
		if dir := filepath.Dir(output); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown(a)

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := a.Services.Catalog.Export(cmd.Context(), f, service.FormatFromPath(output)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog written to %s\n", output)
		return nil
	},
}

func init() {
	catalogExportCmd.Flags().StringP("output", "o", "", "Output file path (default: catalog_YYYYMMDD_HHMMSS.yaml)")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogExportCmd)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/report"
	"github.com/geoscraper/tile-service/internal/types"
)

var (
	exportFormat string
	exportKind   string
	exportOutput string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect a task's missing and non-existent tile ledger",
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export <task-id>",
	Short: "Export ledger rows as XLSX or CSV",
	Example: `  tile-service ledger export 12 --format xlsx --output task-12.xlsx
  tile-service ledger export 12 --format csv --kind missing`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerExport,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerExportCmd)

	ledgerExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: xlsx or csv")
	ledgerExportCmd.Flags().StringVar(&exportKind, "kind", "", "Only export one kind: missing or non-existent")
	ledgerExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
}

func runLedgerExport(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	var kinds []types.TileKind
	if exportKind != "" {
		k := types.TileKind(exportKind)
		if !k.Valid() {
			return fmt.Errorf("invalid kind %q (want missing or non-existent)", exportKind)
		}
		kinds = append(kinds, k)
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.Machine.Get(ctx, id)
	if err != nil {
		return err
	}
	provider, err := a.Registry.Get(t.MapType)
	if err != nil {
		logger.Warn().Err(err).Msg("Exporting without tile URLs")
		provider = providers.Provider{}
	}

	rows, err := report.Collect(ctx, a.Ledger, t, provider, kinds...)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}

	if err := report.Write(out, format, rows); err != nil {
		return err
	}
	if exportOutput != "" {
		logger.Info().Int("rows", len(rows)).Str("file", exportOutput).Msg("Ledger exported")
	}
	return nil
}

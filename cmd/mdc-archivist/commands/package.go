package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/archive"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
)

func packageCmd() *cobra.Command {
	var (
		dataRoot  string
		outPath   string
		symbolCSV string
		typeCSV   string
		fromStr   string
		toStr     string
	)

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Build a portable, verifiable zip archive of sink output",
		Long: `Package enumerates event files beneath --data-root matching the given
filters and writes a self-contained zip archive: manifest.json, a
checksums.sha256 sidecar, per-event-type schema placeholders, and a
README, alongside the data files themselves.`,
		Example: `  mdc-archivist package --data-root data --out archive.zip \
    --symbol AAPL,MSFT --type Trade --from 2026-07-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := archive.Filter{
				Symbols:    splitCSV(symbolCSV),
				EventTypes: splitCSV(typeCSV),
			}
			var err error
			if fromStr != "" {
				filter.From, err = time.Parse(time.RFC3339, fromStr)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if toStr != "" {
				filter.To, err = time.Parse(time.RFC3339, toStr)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}

			logger.Log.Info("Packaging {root} into {out}", dataRoot, outPath)
			if err := archive.Create(dataRoot, filter, outPath, archive.WithVerifyAfterCreation(true)); err != nil {
				return fmt.Errorf("package failed: %w", err)
			}
			logger.Log.Info("Package written and verified: {out}", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataRoot, "data-root", "data", "Sink output directory to package")
	cmd.Flags().StringVar(&outPath, "out", "", "Destination zip path (required)")
	cmd.Flags().StringVar(&symbolCSV, "symbol", "", "Comma-separated symbol allowlist")
	cmd.Flags().StringVar(&typeCSV, "type", "", "Comma-separated event type allowlist")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start time, RFC3339 (inclusive, by file mtime)")
	cmd.Flags().StringVar(&toStr, "to", "", "End time, RFC3339 (inclusive, by file mtime)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

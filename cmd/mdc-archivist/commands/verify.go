package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/wal"
)

func verifyCmd() *cobra.Command {
	var walDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify WAL integrity",
		Long: `Verify the integrity of a WAL directory, including archived
segments.

This command checks every segment's records for:
- Checksum mismatches (corruption)
- Parseable record framing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Log.Info("Verifying WAL: {path}", walDir)

			report, err := wal.VerifyIntegrityReport(walDir, true)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			logger.Log.Info("")
			logger.Log.Info("=== INTEGRITY REPORT ===")
			if report.CorruptedRecords == 0 {
				logger.Log.Info("Integrity check passed")
			} else {
				logger.Log.Error("Integrity check failed")
			}
			logger.Log.Info("Total records: {count}", report.TotalRecords)
			logger.Log.Info("Valid records: {count}", report.ValidRecords)
			if report.CorruptedRecords > 0 {
				logger.Log.Warn("Corrupted records: {count}", report.CorruptedRecords)
			}
			logger.Log.Info("Last sequence: {seq}", report.LastSequence)

			if report.CorruptedRecords > 0 {
				return fmt.Errorf("integrity check failed: %d corrupted records", report.CorruptedRecords)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&walDir, "wal", "", "Path to WAL directory (required)")
	_ = cmd.MarkFlagRequired("wal")

	return cmd
}

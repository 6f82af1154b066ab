package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/archive"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
)

func packageVerifyCmd() *cobra.Command {
	var pkgPath string

	cmd := &cobra.Command{
		Use:   "package-verify",
		Short: "Verify a portable archive's checksums against its manifest",
		Long: `Re-open a zip package produced by "package" and recompute every
data/<relpath> entry's SHA-256, comparing it against manifest.json, without
extracting anything to disk.`,
		Example: `  mdc-archivist package-verify --pkg archive.zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := archive.Verify(pkgPath)
			logger.Log.Info("=== PACKAGE VERIFY REPORT ===")
			logger.Log.Info("Total files: {count}", report.TotalFiles)
			logger.Log.Info("Matched files: {count}", report.MatchedFiles)
			if len(report.MismatchFiles) > 0 {
				logger.Log.Error("Mismatched files: {count}", len(report.MismatchFiles))
				for _, f := range report.MismatchFiles {
					logger.Log.Error("  - {path}", f)
				}
			}
			if err != nil {
				return fmt.Errorf("package verification failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pkgPath, "pkg", "", "Path to the package zip (required)")
	_ = cmd.MarkFlagRequired("pkg")

	return cmd
}

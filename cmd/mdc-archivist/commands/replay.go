package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/replay"
)

func replayCmd() *cobra.Command {
	var (
		dataRoot  string
		fromStr   string
		toStr     string
		symbolCSV string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay committed events from sink output",
		Long: `Replay committed events from a sink's on-disk output directory.

This command forward-scans every JSONL file beneath --data-root, in
path order, optionally narrowed to a time range and/or a symbol set, and
streams the matching events to stdout as JSON lines.`,
		Example: `  # Replay every committed event
  mdc-archivist replay --data-root data

  # Replay a time range for two symbols
  mdc-archivist replay --data-root data \
    --from 2026-07-30T00:00:00Z --to 2026-07-30T23:59:59Z \
    --symbol AAPL,MSFT`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from, to time.Time
			var err error
			if fromStr != "" {
				from, err = time.Parse(time.RFC3339, fromStr)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if toStr != "" {
				to, err = time.Parse(time.RFC3339, toStr)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}
			if !from.IsZero() && !to.IsZero() && from.After(to) {
				return fmt.Errorf("--from cannot be after --to")
			}

			symbols := splitCSV(symbolCSV)

			reader := replay.New(replay.Config{DataRoot: dataRoot})
			encoder := json.NewEncoder(os.Stdout)

			count := 0
			err = reader.Each(context.Background(), replay.Filter{From: from, To: to, Symbols: symbols}, func(evt event.MarketEvent) error {
				count++
				return encoder.Encode(evt)
			})
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}

			fmt.Fprintf(os.Stderr, "replayed %d events\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataRoot, "data-root", "data", "Sink output directory to replay")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start time, RFC3339 (inclusive)")
	cmd.Flags().StringVar(&toStr, "to", "", "End time, RFC3339 (inclusive)")
	cmd.Flags().StringVar(&symbolCSV, "symbol", "", "Comma-separated symbol allowlist")

	return cmd
}

package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	apperrors "github.com/rieriver/sextsieve/internal/errors"
	"github.com/rieriver/sextsieve/internal/monitoring"
	"github.com/rieriver/sextsieve/internal/sieve"
)

// statsLoop refreshes the Prometheus registry and prints a human-readable
// stats table on a fixed interval until ctx is cancelled.
func statsLoop(ctx context.Context, logger *zap.Logger, miner *sieve.Miner, errHandler *apperrors.Handler, exporter *monitoring.MetricsExporter, interval time.Duration, quiet bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := miner.Stats()
			exporter.Observe(snap)
			if quiet {
				logger.Info("stats", zap.Uint64("height", snap.CurrentHeight), zap.Uint64("shares_submitted", snap.SharesSubmitted))
				continue
			}
			printStatsTable(snap, errHandler.Counts())
		}
	}
}

// printStatsTable renders the latest snapshot the way an operator watching
// a terminal expects: large counters humanized, tuple counts by length.
func printStatsTable(snap sieve.Snapshot, errCounts map[apperrors.ErrorType]int64) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"metric", "value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"height", humanize.Comma(int64(snap.CurrentHeight))})
	table.Append([]string{"difficulty", fmt.Sprintf("%d", snap.Difficulty)})
	table.Append([]string{"candidates scanned", humanize.Comma(int64(snap.CandidatesScanned))})
	table.Append([]string{"shares submitted", humanize.Comma(int64(snap.SharesSubmitted))})
	table.Append([]string{"blocks processed", humanize.Comma(int64(snap.BlocksProcessed))})
	for k := 1; k < len(snap.FoundTuples); k++ {
		if snap.FoundTuples[k] == 0 {
			continue
		}
		table.Append([]string{fmt.Sprintf("tuples (k=%d)", k), humanize.Comma(int64(snap.FoundTuples[k]))})
	}
	for errType, count := range errCounts {
		table.Append([]string{fmt.Sprintf("errors (%s)", errType), humanize.Comma(count)})
	}

	table.Render()
}

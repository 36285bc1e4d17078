package ports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/mevexec/sandwichd/executor"
)

// Handler wires the executor into CLI commands.
type Handler struct {
	Executor  *executor.Executor
	Scanner   *executor.Scanner
	Submitter *executor.Submitter
	Relay     executor.Relay

	MetricsAddr string
}

// Run starts the metrics endpoint and drives the scan loop until the process
// is signalled.
func (h *Handler) Run(ctx context.Context) func(*cli.Context) error {
	return func(cCtx *cli.Context) error {
		if h.MetricsAddr != "" {
			go h.serveMetrics(ctx)
		}

		err := h.Executor.Run(ctx)
		if errors.Is(err, context.Canceled) {
			h.logTotals()
			return nil
		}
		return err
	}
}

// ScanOnce runs a single detection cycle and logs the candidates without
// building anything. Useful to verify router configuration.
func (h *Handler) ScanOnce(ctx context.Context) func(*cli.Context) error {
	return func(cCtx *cli.Context) error {
		opps := h.Scanner.Scan(ctx)
		if len(opps) == 0 {
			slog.Info("No opportunities in this cycle")
			return nil
		}

		for _, opp := range opps {
			slog.Info("Candidate",
				"kind", opp.Kind,
				"victim", opp.Victim.Hash,
				"value", opp.Victim.Value,
				"estimated_profit", opp.Profit,
				"target_block", opp.TargetBlock)
		}

		return nil
	}
}

// BundleStats queries relay statistics for a previously submitted bundle.
func (h *Handler) BundleStats(ctx context.Context) func(*cli.Context) error {
	return func(cCtx *cli.Context) error {
		rawHash := cCtx.String("bundle-hash")
		if rawHash == "" {
			return errors.New("bundle-hash expected")
		}
		block := cCtx.Uint64("block")
		if block == 0 {
			return errors.New("block expected")
		}

		stats, err := h.Relay.Stats(ctx, common.HexToHash(rawHash), block)
		if err != nil {
			return fmt.Errorf("failed to query bundle stats error %w", err)
		}
		if stats == nil {
			slog.Info("Relay does not know this bundle", "bundle_hash", rawHash)
			return nil
		}

		slog.Info("Bundle stats",
			"bundle_hash", rawHash,
			"simulated", stats.IsSimulated,
			"high_priority", stats.IsHighPriority,
			"considered_by_builders", stats.ConsideredByBuilders,
			"sealed_by_builders", stats.SealedByBuilders)

		return nil
	}
}

func (h *Handler) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: h.MetricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics endpoint listening", "addr", h.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("Metrics endpoint failed", "error", err)
	}
}

func (h *Handler) logTotals() {
	totals := h.Submitter.Totals()
	slog.Info("Session totals",
		"submitted", totals.Submitted,
		"included", totals.Included,
		"not_included", totals.NotIncluded,
		"stale", totals.Stale,
		"discarded", totals.Discarded,
		"accrued_profit", totals.AccruedProfit,
		"accrued_gas", totals.AccruedGas)
}

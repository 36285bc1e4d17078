package executor

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevexec/sandwichd/chain"
)

const defaultScanLimit = 10

// Scanner classifies pending transactions into opportunities. Each cycle is
// independent and carries no state from the previous one; failures skip the
// cycle or the single transaction, never the process.
type Scanner struct {
	chain     chain.Client
	estimator ProfitEstimator
	routers   map[common.Address]struct{}
	limit     int
	log       *slog.Logger
}

func NewScanner(c chain.Client, estimator ProfitEstimator, routers []common.Address, limit int, log *slog.Logger) *Scanner {
	if limit <= 0 {
		limit = defaultScanLimit
	}
	if log == nil {
		log = slog.Default()
	}

	set := make(map[common.Address]struct{}, len(routers))
	for _, r := range routers {
		set[r] = struct{}{}
	}

	return &Scanner{
		chain:     c,
		estimator: estimator,
		routers:   set,
		limit:     limit,
		log:       log,
	}
}

func (s *Scanner) Scan(ctx context.Context) []Opportunity {
	height, err := s.chain.BlockNumber(ctx)
	if err != nil {
		s.log.Warn("Failed to get chain height, skipping scan cycle", "error", err)
		return nil
	}

	pending, err := s.chain.PendingTransactions(ctx, s.limit)
	if err != nil {
		s.log.Warn("Failed to get pending transactions, skipping scan cycle", "error", err)
		return nil
	}

	var opps []Opportunity
	for _, tx := range pending {
		opp, ok := s.classify(ctx, tx, height)
		if !ok {
			continue
		}

		s.log.Info("Opportunity found",
			"kind", opp.Kind,
			"victim", opp.Victim.Hash,
			"router", opp.Victim.To,
			"estimated_profit", opp.Profit,
			"target_block", opp.TargetBlock)
		opportunitiesFound.WithLabelValues(string(opp.Kind)).Inc()

		opps = append(opps, opp)
	}

	return opps
}

func (s *Scanner) classify(ctx context.Context, tx chain.PendingTransaction, height uint64) (Opportunity, bool) {
	if tx.To == nil {
		// contract creation, not a swap
		return Opportunity{}, false
	}
	if _, interesting := s.routers[*tx.To]; !interesting {
		return Opportunity{}, false
	}
	if tx.Value == nil || tx.Value.Sign() <= 0 {
		s.log.Debug("Skipping router tx without value", "tx", tx.Hash)
		return Opportunity{}, false
	}

	profit, viable := s.estimator.Estimate(ctx, tx)
	if !viable {
		s.log.Debug("Estimator rejected candidate", "tx", tx.Hash)
		return Opportunity{}, false
	}

	return Opportunity{
		Kind:        KindSandwich,
		Victim:      tx,
		Profit:      profit,
		TargetBlock: height + 1,
	}, true
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
)

// Gate runs the relay dry-run and decides whether a bundle may be submitted.
// Simulation pass is a precondition of submission: a reverting bundle never
// reaches the relay's send path.
type Gate struct {
	relay Relay

	// MinProposerPayment, when set, additionally rejects bundles that pay
	// the proposer less than this after gas. Policy, not correctness.
	minProposerPayment *big.Int

	log *slog.Logger
}

func NewGate(relay Relay, minProposerPayment *big.Int, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		relay:              relay,
		minProposerPayment: minProposerPayment,
		log:                log,
	}
}

func (g *Gate) Check(ctx context.Context, bundle *Bundle) (*SimulationOutcome, error) {
	outcome, err := g.relay.Simulate(ctx, bundle)
	if err != nil {
		return nil, errors.Join(ErrAdapterUnavailable, err)
	}

	if !outcome.Pass {
		g.log.Warn("Simulation rejected bundle",
			"bundle", bundle.ID,
			"target_block", bundle.TargetBlock,
			"revert_reason", outcome.RevertReason)
		simulationRejects.Inc()
		return outcome, fmt.Errorf("bundle %v: %w: %v", bundle.ID, ErrSimulationReverted, outcome.RevertReason)
	}

	if g.minProposerPayment != nil && outcome.ProposerPayment != nil &&
		outcome.ProposerPayment.Cmp(g.minProposerPayment) < 0 {
		g.log.Info("Bundle below minimum proposer payment",
			"bundle", bundle.ID,
			"payment", outcome.ProposerPayment,
			"min", g.minProposerPayment)
		simulationRejects.Inc()
		return outcome, fmt.Errorf("bundle %v: %w: proposer payment %v below minimum", bundle.ID, ErrBelowMinPayment, outcome.ProposerPayment)
	}

	g.log.Debug("Simulation passed",
		"bundle", bundle.ID,
		"gas_used", outcome.GasUsed,
		"proposer_payment", outcome.ProposerPayment)

	return outcome, nil
}

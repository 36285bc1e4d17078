package executor

import (
	"context"
	"math/big"

	"github.com/mevexec/sandwichd/chain"
)

// ProfitEstimator decides whether a target transaction is worth sandwiching
// and what the expected profit is. Returning ok=false drops the candidate.
type ProfitEstimator interface {
	Estimate(ctx context.Context, victim chain.PendingTransaction) (profit *big.Int, ok bool)
}

// StaticEstimator emits a fixed estimate for every candidate.
//
// TODO(strategy): replace with a quote-based computation against the router's
// pool reserves; the interface stays as is.
type StaticEstimator struct {
	Profit *big.Int
}

func (e *StaticEstimator) Estimate(_ context.Context, _ chain.PendingTransaction) (*big.Int, bool) {
	if e.Profit == nil || e.Profit.Sign() <= 0 {
		return nil, false
	}
	return new(big.Int).Set(e.Profit), true
}

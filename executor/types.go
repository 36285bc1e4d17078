package executor

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mevexec/sandwichd/chain"
)

type OpportunityKind string

const (
	KindSandwich    OpportunityKind = "sandwich"
	KindArbitrage   OpportunityKind = "arbitrage"
	KindLiquidation OpportunityKind = "liquidation"
)

// Opportunity is a single-use candidate produced by one scan cycle. It is
// consumed once by the bundle builder and never persisted or retried.
type Opportunity struct {
	Kind        OpportunityKind
	Victim      chain.PendingTransaction
	Profit      *big.Int
	TargetBlock uint64
}

// TransactionIntent is the unsigned description of one transaction. The
// builder owns it until it is handed to the signer.
type TransactionIntent struct {
	From                 common.Address
	To                   common.Address
	Data                 []byte
	Value                *big.Int
	Gas                  uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	ChainID              *big.Int
	Nonce                uint64
}

// Bundle is an ordered pair of signed transactions (front-run then back-run)
// plus the block they must land in. The order presented to the relay is the
// atomicity contract and must never change.
type Bundle struct {
	ID          string
	VictimHash  common.Hash
	Txs         []*types.Transaction
	TargetBlock uint64

	nonces *Reservation
}

// settleNonces closes the bundle's nonce reservation once its fate is known.
// Inclusion keeps the nonces spent; any other outcome returns them so the
// next build fetches a fresh pending nonce instead of stacking on top of
// transactions that will never land. Safe to call more than once.
func (b *Bundle) settleNonces(included bool) {
	if included {
		b.nonces.Done()
		return
	}
	b.nonces.Abort()
}

// SimulationOutcome gates one submission and is then discarded.
type SimulationOutcome struct {
	Pass            bool
	RevertReason    string
	GasUsed         uint64
	ProposerPayment *big.Int
	StateBlock      uint64
}

// SubmissionResult identifies one relay submission for a single target-block
// attempt. A retarget supersedes it.
type SubmissionResult struct {
	BundleHash  common.Hash
	TargetBlock uint64
	SubmittedAt time.Time
}

// BundleStats mirrors the relay's best-effort inclusion statistics.
type BundleStats struct {
	IsSimulated    bool
	IsHighPriority bool
	SimulatedAt    time.Time
	ReceivedAt     time.Time

	ConsideredByBuilders int
	SealedByBuilders     int
}

// Signer produces a signed transaction from an intent. Key material never
// leaves the implementation.
type Signer interface {
	Address() common.Address
	Sign(intent *TransactionIntent) (*types.Transaction, error)
}

// Relay is the private bundle relay capability set.
type Relay interface {
	Simulate(ctx context.Context, bundle *Bundle) (*SimulationOutcome, error)
	Submit(ctx context.Context, bundle *Bundle) (*SubmissionResult, error)

	// Stats returns (nil, nil) for bundle hashes the relay does not know.
	Stats(ctx context.Context, bundleHash common.Hash, targetBlock uint64) (*BundleStats, error)
}

package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTransaction is an immutable snapshot of a transaction observed in the
// pending pool. It references chain data, it does not own it.
type PendingTransaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Value *big.Int
	Data  []byte
	Seen  time.Time
}

// FeeEstimate carries the current EIP-1559 fee-market data.
type FeeEstimate struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Client is the chain client capability set consumed by the executor.
// Implementations must bound every call with a timeout.
type Client interface {
	// BlockNumber returns the current chain height.
	BlockNumber(ctx context.Context) (uint64, error)

	// PendingTransactions returns up to limit transactions from the pending pool.
	PendingTransactions(ctx context.Context, limit int) ([]PendingTransaction, error)

	// TransactionDetail fetches a single pending transaction by hash.
	// Returns (nil, nil) when the transaction is unknown.
	TransactionDetail(ctx context.Context, hash common.Hash) (*PendingTransaction, error)

	// FeeEstimate returns fresh fee-market data.
	FeeEstimate(ctx context.Context) (*FeeEstimate, error)

	// PendingNonceAt returns the next usable nonce for the account.
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
}

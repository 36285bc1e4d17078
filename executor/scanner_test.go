package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevexec/sandwichd/chain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func routerTx(hash byte, router common.Address, value *big.Int) chain.PendingTransaction {
	return chain.PendingTransaction{
		Hash:  common.BytesToHash([]byte{hash}),
		From:  common.BytesToAddress([]byte{0xaa}),
		To:    &router,
		Value: value,
		Data:  []byte{0x01, 0x02},
	}
}

func TestScanEmitsSandwichOpportunity(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	fc := newFakeChain(100)
	fc.pending = []chain.PendingTransaction{
		routerTx(1, router, big.NewInt(2_000_000_000_000_000_000)),
	}

	profit := big.NewInt(10_000_000_000_000_000)
	scanner := NewScanner(fc, &StaticEstimator{Profit: profit}, []common.Address{router}, 10, quietLogger())

	opps := scanner.Scan(context.Background())
	require.Len(t, opps, 1)

	opp := opps[0]
	require.Equal(t, KindSandwich, opp.Kind)
	require.Equal(t, fc.pending[0].Hash, opp.Victim.Hash)
	require.Equal(t, uint64(101), opp.TargetBlock)
	require.Zero(t, opp.Profit.Cmp(profit))
}

func TestScanSkipsUninterestingTransactions(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	other := common.BytesToAddress([]byte{0xca, 0xfe})

	fc := newFakeChain(100)
	fc.pending = []chain.PendingTransaction{
		// not a router
		routerTx(1, other, big.NewInt(1_000_000_000_000_000_000)),
		// router but no value attached
		routerTx(2, router, big.NewInt(0)),
		// contract creation
		{Hash: common.BytesToHash([]byte{3}), Value: big.NewInt(1)},
	}

	scanner := NewScanner(fc, &StaticEstimator{Profit: big.NewInt(1)}, []common.Address{router}, 10, quietLogger())
	require.Empty(t, scanner.Scan(context.Background()))
}

func TestScanSkipsEstimatorRejects(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	fc := newFakeChain(100)
	fc.pending = []chain.PendingTransaction{
		routerTx(1, router, big.NewInt(1_000_000_000_000_000_000)),
	}

	// a nil static profit means nothing is viable
	scanner := NewScanner(fc, &StaticEstimator{}, []common.Address{router}, 10, quietLogger())
	require.Empty(t, scanner.Scan(context.Background()))
}

func TestScanSkipsCycleOnChainErrors(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})

	fc := newFakeChain(100)
	fc.pending = []chain.PendingTransaction{
		routerTx(1, router, big.NewInt(1_000_000_000_000_000_000)),
	}
	fc.errHeight = errors.New("rpc down")

	scanner := NewScanner(fc, &StaticEstimator{Profit: big.NewInt(1)}, []common.Address{router}, 10, quietLogger())
	require.Empty(t, scanner.Scan(context.Background()))

	fc.errHeight = nil
	fc.errPending = errors.New("rpc down")
	require.Empty(t, scanner.Scan(context.Background()))

	fc.errPending = nil
	require.Len(t, scanner.Scan(context.Background()), 1)
}

func TestScanHonorsLimit(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	fc := newFakeChain(100)
	for i := byte(1); i <= 5; i++ {
		fc.pending = append(fc.pending, routerTx(i, router, big.NewInt(1_000_000_000_000_000_000)))
	}

	scanner := NewScanner(fc, &StaticEstimator{Profit: big.NewInt(1)}, []common.Address{router}, 3, quietLogger())
	require.Len(t, scanner.Scan(context.Background()), 3)
}

package executor

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mevexec/sandwichd/chain"
)

type fakeChain struct {
	mu sync.Mutex

	height  uint64
	pending []chain.PendingTransaction
	fees    *chain.FeeEstimate
	nonces  map[common.Address]uint64

	errHeight  error
	errPending error
	errFees    error
	errNonce   error
	errDetail  error
}

func newFakeChain(height uint64) *fakeChain {
	return &fakeChain{
		height: height,
		fees: &chain.FeeEstimate{
			MaxFeePerGas:         big.NewInt(30_000_000_000),
			MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
		},
		nonces: make(map[common.Address]uint64),
	}
}

func (f *fakeChain) setHeight(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = h
}

func (f *fakeChain) setPending(txs []chain.PendingTransaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = txs
}

func (f *fakeChain) setDetailErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errDetail = err
}

func (f *fakeChain) BlockNumber(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errHeight != nil {
		return 0, f.errHeight
	}
	return f.height, nil
}

func (f *fakeChain) PendingTransactions(_ context.Context, limit int) ([]chain.PendingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errPending != nil {
		return nil, f.errPending
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeChain) TransactionDetail(_ context.Context, hash common.Hash) (*chain.PendingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errDetail != nil {
		return nil, f.errDetail
	}
	for _, tx := range f.pending {
		if tx.Hash == hash {
			cp := tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeChain) FeeEstimate(_ context.Context) (*chain.FeeEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errFees != nil {
		return nil, f.errFees
	}
	return f.fees, nil
}

func (f *fakeChain) PendingNonceAt(_ context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errNonce != nil {
		return 0, f.errNonce
	}
	return f.nonces[addr], nil
}

type fakeRelay struct {
	mu sync.Mutex

	simOutcome *SimulationOutcome
	simErr     error

	submitted []*Bundle
	submitErr error

	stats    *BundleStats
	statsErr error
}

func (f *fakeRelay) Simulate(_ context.Context, _ *Bundle) (*SimulationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.simErr != nil {
		return nil, f.simErr
	}
	return f.simOutcome, nil
}

func (f *fakeRelay) Submit(_ context.Context, bundle *Bundle) (*SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, bundle)
	return &SubmissionResult{
		BundleHash:  common.BytesToHash([]byte{byte(len(f.submitted))}),
		TargetBlock: bundle.TargetBlock,
	}, nil
}

func (f *fakeRelay) Stats(_ context.Context, _ common.Hash, _ uint64) (*BundleStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeRelay) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
	err  error
}

func newFakeSigner() *fakeSigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &fakeSigner{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *fakeSigner) Address() common.Address {
	return s.addr
}

func (s *fakeSigner) Sign(intent *TransactionIntent) (*types.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}

	to := intent.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   intent.ChainID,
		Nonce:     intent.Nonce,
		GasTipCap: intent.MaxPriorityFeePerGas,
		GasFeeCap: intent.MaxFeePerGas,
		Gas:       intent.Gas,
		To:        &to,
		Value:     intent.Value,
		Data:      intent.Data,
	})

	return types.SignTx(tx, types.LatestSignerForChainID(intent.ChainID), s.key)
}

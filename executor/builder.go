package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/mevexec/sandwichd/chain"
)

const defaultBundleGasLimit = 250_000

// Builder turns one opportunity into a signed, nonce-consistent bundle.
// Fee and nonce data are fetched fresh at build time, never reused from the
// scan step. A failed step aborts the whole build; partial bundles are never
// returned.
type Builder struct {
	chain  chain.Client
	signer Signer
	nonces *NonceAllocator

	chainID  *big.Int
	gasLimit uint64
	log      *slog.Logger
}

func NewBuilder(c chain.Client, signer Signer, nonces *NonceAllocator, chainID *big.Int, gasLimit uint64, log *slog.Logger) *Builder {
	if gasLimit == 0 {
		gasLimit = defaultBundleGasLimit
	}
	if log == nil {
		log = slog.Default()
	}

	return &Builder{
		chain:    c,
		signer:   signer,
		nonces:   nonces,
		chainID:  chainID,
		gasLimit: gasLimit,
		log:      log,
	}
}

func (b *Builder) Build(ctx context.Context, opp Opportunity) (*Bundle, error) {
	if opp.Victim.To == nil {
		return nil, fmt.Errorf("opportunity victim %v has no recipient", opp.Victim.Hash)
	}
	if opp.Victim.Value == nil || opp.Victim.Value.Sign() <= 0 {
		return nil, fmt.Errorf("opportunity victim %v carries no value to mirror", opp.Victim.Hash)
	}

	fees, err := b.chain.FeeEstimate(ctx)
	if err != nil {
		return nil, errors.Join(ErrAdapterUnavailable, err)
	}

	sender := b.signer.Address()
	reservation, err := b.nonces.Reserve(ctx, sender, 2)
	if err != nil {
		return nil, err
	}

	front := b.frontRunIntent(opp, sender, fees, reservation.Base)
	back := b.backRunIntent(opp, sender, fees, reservation.Base+1)

	frontTx, err := b.signer.Sign(front)
	if err != nil {
		reservation.Abort()
		return nil, errors.Join(ErrSigning, err)
	}
	backTx, err := b.signer.Sign(back)
	if err != nil {
		reservation.Abort()
		return nil, errors.Join(ErrSigning, err)
	}

	height, err := b.chain.BlockNumber(ctx)
	if err != nil {
		reservation.Abort()
		return nil, errors.Join(ErrAdapterUnavailable, err)
	}

	// the reservation stays open until the attempt resolves; the submitter
	// settles it by outcome so non-included nonces are reissued
	bundle := &Bundle{
		ID:          uuid.NewString(),
		VictimHash:  opp.Victim.Hash,
		Txs:         []*types.Transaction{frontTx, backTx},
		TargetBlock: height + 1,
		nonces:      reservation,
	}

	b.log.Info("Bundle built",
		"bundle", bundle.ID,
		"victim", opp.Victim.Hash,
		"front_nonce", reservation.Base,
		"back_nonce", reservation.Base+1,
		"target_block", bundle.TargetBlock)
	bundlesBuilt.Inc()

	return bundle, nil
}

// frontRunIntent mirrors the victim's swap on the same router, sized to move
// the price ahead of it.
func (b *Builder) frontRunIntent(opp Opportunity, sender common.Address, fees *chain.FeeEstimate, nonce uint64) *TransactionIntent {
	return &TransactionIntent{
		From:                 sender,
		To:                   *opp.Victim.To,
		Data:                 opp.Victim.Data,
		Value:                new(big.Int).Set(opp.Victim.Value),
		Gas:                  b.gasLimit,
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
		ChainID:              b.chainID,
		Nonce:                nonce,
	}
}

// backRunIntent unwinds the front-run position. Value is zero: it sells what
// the front-run bought rather than committing new capital. The reverse-path
// calldata comes from the strategy; the placeholder reuses the router call.
func (b *Builder) backRunIntent(opp Opportunity, sender common.Address, fees *chain.FeeEstimate, nonce uint64) *TransactionIntent {
	return &TransactionIntent{
		From:                 sender,
		To:                   *opp.Victim.To,
		Data:                 opp.Victim.Data,
		Value:                new(big.Int),
		Gas:                  b.gasLimit,
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
		ChainID:              b.chainID,
		Nonce:                nonce,
	}
}

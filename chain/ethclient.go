package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const defaultCallTimeout = time.Second * 5

// baseFeeHeadroomPct gives the fee cap room for the next-block base fee bump.
const baseFeeHeadroomPct = 110

// EthClient implements Client on top of a standard JSON-RPC execution node.
type EthClient struct {
	eth *ethclient.Client
	rpc *rpc.Client

	callTimeout time.Duration
}

type EthClientOpts struct {
	CallTimeout time.Duration
}

func Dial(rawURL string, opts *EthClientOpts) (*EthClient, error) {
	rpcClient, err := rpc.Dial(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint error %w", err)
	}

	callTimeout := defaultCallTimeout
	if opts != nil && opts.CallTimeout > 0 {
		callTimeout = opts.CallTimeout
	}

	return &EthClient{
		eth:         ethclient.NewClient(rpcClient),
		rpc:         rpcClient,
		callTimeout: callTimeout,
	}, nil
}

func (c *EthClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	bn, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number error %w", err)
	}

	return bn, nil
}

// rpcPendingTx is the subset of the eth_getBlockByNumber transaction object the
// scanner cares about. The from field comes straight from the node so no
// signature recovery is needed here.
type rpcPendingTx struct {
	Hash  common.Hash     `json:"hash"`
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
	Input hexutil.Bytes   `json:"input"`
}

type rpcPendingBlock struct {
	Transactions []rpcPendingTx `json:"transactions"`
}

func (c *EthClient) PendingTransactions(ctx context.Context, limit int) ([]PendingTransaction, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var block rpcPendingBlock
	if err := c.rpc.CallContext(ctx, &block, "eth_getBlockByNumber", "pending", true); err != nil {
		return nil, fmt.Errorf("failed to get pending block error %w", err)
	}

	now := time.Now()
	txs := make([]PendingTransaction, 0, limit)
	for _, tx := range block.Transactions {
		if len(txs) >= limit {
			break
		}
		txs = append(txs, toPendingTransaction(tx, now))
	}

	return txs, nil
}

func (c *EthClient) TransactionDetail(ctx context.Context, hash common.Hash) (*PendingTransaction, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var tx *rpcPendingTx
	if err := c.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("failed to get transaction %v error %w", hash, err)
	}
	if tx == nil {
		return nil, nil
	}

	ptx := toPendingTransaction(*tx, time.Now())
	return &ptx, nil
}

func (c *EthClient) FeeEstimate(ctx context.Context) (*FeeEstimate, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head error %w", err)
	}
	if head.BaseFee == nil {
		return nil, fmt.Errorf("chain head %v has no base fee", head.Number)
	}

	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggested gas tip error %w", err)
	}

	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(baseFeeHeadroomPct))
	feeCap = feeCap.Div(feeCap, big.NewInt(100))
	feeCap = feeCap.Add(feeCap, tip)

	return &FeeEstimate{
		MaxFeePerGas:         feeCap,
		MaxPriorityFeePerGas: tip,
	}, nil
}

func (c *EthClient) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce error %w", err)
	}

	return nonce, nil
}

func toPendingTransaction(tx rpcPendingTx, seen time.Time) PendingTransaction {
	value := new(big.Int)
	if tx.Value != nil {
		value = tx.Value.ToInt()
	}

	return PendingTransaction{
		Hash:  tx.Hash,
		From:  tx.From,
		To:    tx.To,
		Value: value,
		Data:  tx.Input,
		Seen:  seen,
	}
}

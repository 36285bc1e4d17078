// Package relay talks to a Flashbots-style bundle relay over signed JSON-RPC.
package relay

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/flashbots/go-utils/rpcclient"
	"github.com/flashbots/go-utils/rpctypes"
	"github.com/flashbots/go-utils/signature"

	"github.com/mevexec/sandwichd/executor"
	"github.com/mevexec/sandwichd/mevutil"
)

const (
	defaultAPIVersion  = "v0.1"
	defaultCallTimeout = time.Second * 5
)

// Client implements executor.Relay. Every request is signed with the auth key
// (X-Flashbots-Signature) and carries a bounded timeout.
type Client struct {
	relay       rpcclient.RPCClient
	callTimeout time.Duration
}

type Opts struct {
	CallTimeout time.Duration
}

func New(relayURL string, authKey *ecdsa.PrivateKey, opts *Opts) *Client {
	callTimeout := defaultCallTimeout
	if opts != nil && opts.CallTimeout > 0 {
		callTimeout = opts.CallTimeout
	}

	signer := signature.NewSigner(authKey)
	return &Client{
		relay:       rpcclient.NewClientWithOpts(relayURL, &rpcclient.RPCClientOpts{Signer: &signer}),
		callTimeout: callTimeout,
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) Simulate(ctx context.Context, bundle *executor.Bundle) (*executor.SimulationOutcome, error) {
	args, err := c.bundleArgs(bundle)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var resp SimBundleResponse
	if err := c.relay.CallFor(ctx, &resp, "mev_simBundle", args); err != nil {
		return nil, fmt.Errorf("failed to call mev_simBundle error %w", err)
	}

	outcome := &executor.SimulationOutcome{
		Pass:            resp.Success,
		GasUsed:         uint64(resp.GasUsed),
		ProposerPayment: resp.Profit.ToInt(),
		StateBlock:      uint64(resp.StateBlock),
	}
	if !resp.Success {
		outcome.RevertReason = revertReason(&resp)
	}

	return outcome, nil
}

func (c *Client) Submit(ctx context.Context, bundle *executor.Bundle) (*executor.SubmissionResult, error) {
	args, err := c.bundleArgs(bundle)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var resp SendBundleResponse
	if err := c.relay.CallFor(ctx, &resp, "mev_sendBundle", args); err != nil {
		return nil, fmt.Errorf("failed to call mev_sendBundle error %w", err)
	}

	return &executor.SubmissionResult{
		BundleHash:  resp.BundleHash,
		TargetBlock: bundle.TargetBlock,
		SubmittedAt: time.Now(),
	}, nil
}

func (c *Client) Stats(ctx context.Context, bundleHash common.Hash, targetBlock uint64) (*executor.BundleStats, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var resp BundleStatsResponse
	err := c.relay.CallFor(ctx, &resp, "flashbots_getBundleStatsV2", bundleStatsArgs{
		BundleHash:  bundleHash,
		BlockNumber: hexutil.Uint64(targetBlock),
	})
	if err != nil {
		// an unknown bundle hash is a normal outcome, not a failure
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to call flashbots_getBundleStatsV2 error %w", err)
	}

	return &executor.BundleStats{
		IsSimulated:          resp.IsSimulated,
		IsHighPriority:       resp.IsHighPriority,
		SimulatedAt:          resp.SimulatedAt,
		ReceivedAt:           resp.ReceivedAt,
		ConsideredByBuilders: len(resp.ConsideredByBuildersAt),
		SealedByBuilders:     len(resp.SealedByBuildersAt),
	}, nil
}

// bundleArgs converts a bundle into a mev_sendBundle body. The victim is
// referenced first by its matching hash, then the signed front-run and
// back-run follow in their given order; the relay must preserve it.
func (c *Client) bundleArgs(bundle *executor.Bundle) (*rpctypes.MevSendBundleArgs, error) {
	matchHash, err := mevutil.MatchingHash(bundle.VictimHash)
	if err != nil {
		return nil, err
	}

	args := &rpctypes.MevSendBundleArgs{
		Version: defaultAPIVersion,
		Inclusion: rpctypes.MevBundleInclusion{
			BlockNumber: hexutil.Uint64(bundle.TargetBlock),
			MaxBlock:    hexutil.Uint64(bundle.TargetBlock),
		},
		Body: []rpctypes.MevBundleBody{
			{
				Hash: &matchHash,
			},
		},
	}

	for _, tx := range bundle.Txs {
		binaryTx, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal binary tx: tx_hash: %v error %w", tx.Hash(), err)
		}
		args.Body = append(args.Body, rpctypes.MevBundleBody{
			Tx:         (*hexutil.Bytes)(&binaryTx),
			RevertMode: rpctypes.RevertModeFail,
		})
	}

	return args, nil
}

func revertReason(resp *SimBundleResponse) string {
	if resp.ExecError != "" {
		return resp.ExecError
	}
	if resp.Error != "" {
		return resp.Error
	}
	if len(resp.Revert) > 0 {
		return resp.Revert.String()
	}
	return "reverted"
}

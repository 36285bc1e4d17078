package executor

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testPoll = time.Millisecond * 10

func TestAttemptLifecycleIncluded(t *testing.T) {
	fc := newFakeChain(100)
	relay := &fakeRelay{
		stats: &BundleStats{IsSimulated: true, SealedByBuilders: 2},
	}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	profit := big.NewInt(10_000_000_000_000_000)
	att := sub.Register(testBundle(101), profit)
	require.Equal(t, StateBuilt, att.State)

	sub.ApplySimulation(att, &SimulationOutcome{Pass: true, GasUsed: 180_000})
	require.Equal(t, StateSimulated, att.State)

	result, err := sub.Submit(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateSubmitted, att.State)
	require.Equal(t, uint64(101), result.TargetBlock)
	require.Equal(t, 1, relay.submitCount())

	fc.setHeight(102)
	state, err := sub.Track(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateIncluded, state)

	totals := sub.Totals()
	require.Equal(t, 1, totals.Submitted)
	require.Equal(t, 1, totals.Included)
	require.Zero(t, totals.AccruedProfit.Cmp(profit))
	require.Equal(t, uint64(180_000), totals.AccruedGas)
}

func TestFailedSimulationDiscardsAndBlocksSubmit(t *testing.T) {
	fc := newFakeChain(100)
	relay := &fakeRelay{}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: false, RevertReason: "reverted"})
	require.Equal(t, StateDiscarded, att.State)
	require.True(t, att.State.Terminal())

	_, err := sub.Submit(context.Background(), att)
	require.Error(t, err)
	require.Zero(t, relay.submitCount(), "a rejected bundle must never reach the relay")
	require.Equal(t, 1, sub.Totals().Discarded)
}

func TestUnknownBundleResolvesStale(t *testing.T) {
	fc := newFakeChain(100)
	relay := &fakeRelay{} // stats stays nil: relay never saw the bundle
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})
	_, err := sub.Submit(context.Background(), att)
	require.NoError(t, err)

	fc.setHeight(102)
	state, err := sub.Track(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateStale, state)
	require.Equal(t, 1, sub.Totals().Stale)
}

func TestStatsFailureResolvesStale(t *testing.T) {
	fc := newFakeChain(102)
	relay := &fakeRelay{}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})
	_, err := sub.Submit(context.Background(), att)
	require.NoError(t, err)

	relay.mu.Lock()
	relay.statsErr = errors.New("relay down")
	relay.mu.Unlock()

	state, err := sub.Track(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateStale, state)
}

func TestKnownButUnsealedResolvesNotIncluded(t *testing.T) {
	fc := newFakeChain(102)
	relay := &fakeRelay{
		stats: &BundleStats{IsSimulated: true, ConsideredByBuilders: 3},
	}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})
	_, err := sub.Submit(context.Background(), att)
	require.NoError(t, err)

	state, err := sub.Track(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateNotIncluded, state)

	totals := sub.Totals()
	require.Equal(t, 1, totals.NotIncluded)
	require.Zero(t, totals.AccruedProfit.Sign())
}

func TestMarkStaleBeforeSubmission(t *testing.T) {
	fc := newFakeChain(100)
	relay := &fakeRelay{}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.MarkStale(att)
	require.Equal(t, StateStale, att.State)

	// terminal states never move again
	sub.MarkStale(att)
	sub.Discard(att, "late")
	require.Equal(t, StateStale, att.State)
	require.Equal(t, 1, sub.Totals().Stale)

	_, err := sub.Submit(context.Background(), att)
	require.ErrorIs(t, err, ErrStaleTarget)
	require.Zero(t, relay.submitCount())
}

func TestRelaySubmitFailureDiscards(t *testing.T) {
	fc := newFakeChain(100)
	relay := &fakeRelay{submitErr: errors.New("relay down")}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})

	_, err := sub.Submit(context.Background(), att)
	require.ErrorIs(t, err, ErrAdapterUnavailable)
	require.Equal(t, StateDiscarded, att.State)
	require.Zero(t, sub.Totals().Submitted)
}

func TestTrackReturnsOnContextCancel(t *testing.T) {
	fc := newFakeChain(100) // never passes the target
	relay := &fakeRelay{}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})
	_, err := sub.Submit(context.Background(), att)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()

	state, err := sub.Track(ctx, att)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateSubmitted, state)
}

func TestStaleOutcomeFreesNoncesForRebuild(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	signer := newFakeSigner()
	fc := newFakeChain(100)

	builder := NewBuilder(fc, signer, NewNonceAllocator(fc), big.NewInt(1), 250_000, quietLogger())
	relay := &fakeRelay{} // stats stays nil: the bundle never lands
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	first, err := builder.Build(context.Background(), sandwichOpportunity(router))
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.Txs[0].Nonce())

	att := sub.Register(first, big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})
	_, err = sub.Submit(context.Background(), att)
	require.NoError(t, err)

	fc.setHeight(102)
	state, err := sub.Track(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateStale, state)

	// the on-chain nonce is still 0; the rebuild must start there, not stack
	// new transactions behind ones that will never land
	second, err := builder.Build(context.Background(), sandwichOpportunity(router))
	require.NoError(t, err)
	require.Equal(t, uint64(0), second.Txs[0].Nonce())
	require.Equal(t, uint64(1), second.Txs[1].Nonce())
}

func TestDiscardFreesNoncesForRebuild(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	signer := newFakeSigner()
	fc := newFakeChain(100)

	builder := NewBuilder(fc, signer, NewNonceAllocator(fc), big.NewInt(1), 250_000, quietLogger())
	sub := NewSubmitter(&fakeRelay{}, fc, testPoll, quietLogger())

	first, err := builder.Build(context.Background(), sandwichOpportunity(router))
	require.NoError(t, err)

	att := sub.Register(first, big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: false, RevertReason: "reverted"})
	require.Equal(t, StateDiscarded, att.State)

	second, err := builder.Build(context.Background(), sandwichOpportunity(router))
	require.NoError(t, err)
	require.Equal(t, uint64(0), second.Txs[0].Nonce())
}

func TestInclusionSpendsNonces(t *testing.T) {
	router := common.BytesToAddress([]byte{0xbe, 0xef})
	signer := newFakeSigner()
	fc := newFakeChain(100)

	builder := NewBuilder(fc, signer, NewNonceAllocator(fc), big.NewInt(1), 250_000, quietLogger())
	relay := &fakeRelay{
		stats: &BundleStats{IsSimulated: true, SealedByBuilders: 1},
	}
	sub := NewSubmitter(relay, fc, testPoll, quietLogger())

	first, err := builder.Build(context.Background(), sandwichOpportunity(router))
	require.NoError(t, err)

	att := sub.Register(first, big.NewInt(1))
	sub.ApplySimulation(att, &SimulationOutcome{Pass: true})
	_, err = sub.Submit(context.Background(), att)
	require.NoError(t, err)

	fc.setHeight(102)
	state, err := sub.Track(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, StateIncluded, state)

	// included nonces stay spent even before the fake chain's counter moves
	second, err := builder.Build(context.Background(), sandwichOpportunity(router))
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.Txs[0].Nonce())
}

func TestAttemptLookup(t *testing.T) {
	fc := newFakeChain(100)
	sub := NewSubmitter(&fakeRelay{}, fc, testPoll, quietLogger())

	att := sub.Register(testBundle(101), big.NewInt(1))
	got, ok := sub.Attempt(att.Bundle.ID)
	require.True(t, ok)
	require.Same(t, att, got)

	_, ok = sub.Attempt("unknown")
	require.False(t, ok)
}

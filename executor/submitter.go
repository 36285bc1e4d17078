package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/mevexec/sandwichd/chain"
)

const defaultTrackPoll = time.Second * 2

// AttemptState is the per-bundle lifecycle:
//
//	Built -> Simulated -> Submitted -> {Included | NotIncluded | Stale}
//	Built -> Discarded (simulation failed)
type AttemptState int

const (
	StateBuilt AttemptState = iota
	StateSimulated
	StateSubmitted
	StateIncluded
	StateNotIncluded
	StateStale
	StateDiscarded
)

func (s AttemptState) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSimulated:
		return "simulated"
	case StateSubmitted:
		return "submitted"
	case StateIncluded:
		return "included"
	case StateNotIncluded:
		return "not_included"
	case StateStale:
		return "stale"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s AttemptState) Terminal() bool {
	switch s {
	case StateIncluded, StateNotIncluded, StateStale, StateDiscarded:
		return true
	}
	return false
}

var validTransitions = map[AttemptState][]AttemptState{
	StateBuilt:     {StateSimulated, StateDiscarded, StateStale},
	StateSimulated: {StateSubmitted, StateDiscarded, StateStale},
	StateSubmitted: {StateIncluded, StateNotIncluded, StateStale},
}

// Attempt is one target-block try for one bundle. A retarget builds a fresh
// bundle and a fresh attempt; attempts are never reused.
type Attempt struct {
	Bundle *Bundle
	State  AttemptState
	Result *SubmissionResult

	EstimatedProfit *big.Int
	GasUsed         uint64
}

// Totals is the accrued outcome bookkeeping exposed to the observability
// collaborator.
type Totals struct {
	Submitted   int
	Included    int
	NotIncluded int
	Stale       int
	Discarded   int

	AccruedProfit *big.Int
	AccruedGas    uint64
}

// Submitter sends simulated bundles to the relay and tracks their outcome
// across block boundaries.
type Submitter struct {
	relay Relay
	chain chain.Client
	poll  time.Duration
	log   *slog.Logger

	mu       sync.Mutex
	attempts map[string]*Attempt
	totals   Totals
}

func NewSubmitter(relay Relay, c chain.Client, poll time.Duration, log *slog.Logger) *Submitter {
	if poll <= 0 {
		poll = defaultTrackPoll
	}
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{
		relay:    relay,
		chain:    c,
		poll:     poll,
		log:      log,
		attempts: make(map[string]*Attempt),
		totals:   Totals{AccruedProfit: new(big.Int)},
	}
}

// Register records a freshly built bundle in state Built.
func (s *Submitter) Register(bundle *Bundle, estimatedProfit *big.Int) *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	att := &Attempt{
		Bundle:          bundle,
		State:           StateBuilt,
		EstimatedProfit: estimatedProfit,
	}
	s.attempts[bundle.ID] = att

	return att
}

// ApplySimulation records the gate's verdict. Anything but a clean pass moves
// the attempt to Discarded, terminal.
func (s *Submitter) ApplySimulation(att *Attempt, outcome *SimulationOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome != nil && outcome.Pass {
		att.GasUsed = outcome.GasUsed
		s.transition(att, StateSimulated)
		return
	}
	s.transition(att, StateDiscarded)
	s.totals.Discarded++
	att.Bundle.settleNonces(false)
}

// Discard terminates a non-submitted attempt.
func (s *Submitter) Discard(att *Attempt, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if att.State.Terminal() {
		return
	}
	s.transition(att, StateDiscarded)
	s.totals.Discarded++
	att.Bundle.settleNonces(false)
	s.log.Info("Bundle discarded", "bundle", att.Bundle.ID, "reason", reason)
}

// Submit sends the attempt's bundle to the relay for its declared target
// block. Simulation pass is a hard precondition.
func (s *Submitter) Submit(ctx context.Context, att *Attempt) (*SubmissionResult, error) {
	s.mu.Lock()
	if att.State == StateStale {
		s.mu.Unlock()
		return nil, fmt.Errorf("bundle %v: %w", att.Bundle.ID, ErrStaleTarget)
	}
	if att.State != StateSimulated {
		state := att.State
		s.mu.Unlock()
		return nil, fmt.Errorf("bundle %v in state %v cannot be submitted", att.Bundle.ID, state)
	}
	s.mu.Unlock()

	result, err := s.relay.Submit(ctx, att.Bundle)
	if err != nil {
		s.Discard(att, "relay submit failed")
		return nil, errors.Join(ErrAdapterUnavailable, err)
	}

	s.mu.Lock()
	att.Result = result
	s.transition(att, StateSubmitted)
	s.totals.Submitted++
	s.mu.Unlock()

	s.log.Info("Bundle submitted",
		"bundle", att.Bundle.ID,
		"bundle_hash", result.BundleHash,
		"target_block", att.Bundle.TargetBlock)
	bundlesSubmitted.Inc()

	return result, nil
}

// Track waits for the chain to pass the attempt's target block and resolves
// the outcome from relay bundle statistics. The stats query is best-effort:
// unavailability resolves to Stale and is reported, never fatal.
func (s *Submitter) Track(ctx context.Context, att *Attempt) (AttemptState, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		height, err := s.chain.BlockNumber(ctx)
		if err != nil {
			s.log.Warn("Failed to get chain height while tracking", "bundle", att.Bundle.ID, "error", err)
		} else if height > att.Bundle.TargetBlock {
			return s.resolve(ctx, att), nil
		}

		select {
		case <-ctx.Done():
			return s.snapshotState(att), ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Submitter) resolve(ctx context.Context, att *Attempt) AttemptState {
	stats, err := s.relay.Stats(ctx, att.Result.BundleHash, att.Bundle.TargetBlock)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.log.Warn("Bundle stats unavailable", "bundle", att.Bundle.ID, "error", err)
		s.transition(att, StateStale)
		s.totals.Stale++
		att.Bundle.settleNonces(false)
		bundlesStale.Inc()
	case stats == nil:
		s.log.Warn("Relay does not know bundle", "bundle", att.Bundle.ID, "bundle_hash", att.Result.BundleHash)
		s.transition(att, StateStale)
		s.totals.Stale++
		att.Bundle.settleNonces(false)
		bundlesStale.Inc()
	case stats.SealedByBuilders > 0:
		s.transition(att, StateIncluded)
		s.totals.Included++
		s.totals.AccruedGas += att.GasUsed
		if att.EstimatedProfit != nil {
			s.totals.AccruedProfit.Add(s.totals.AccruedProfit, att.EstimatedProfit)
		}
		att.Bundle.settleNonces(true)
		s.log.Info("Bundle included",
			"bundle", att.Bundle.ID,
			"target_block", att.Bundle.TargetBlock,
			"gas_used", att.GasUsed)
		bundlesIncluded.Inc()
	default:
		s.transition(att, StateNotIncluded)
		s.totals.NotIncluded++
		att.Bundle.settleNonces(false)
		s.log.Info("Bundle not included", "bundle", att.Bundle.ID, "target_block", att.Bundle.TargetBlock)
	}

	return att.State
}

// MarkStale is the proactive cutoff for attempts whose target block passed
// before they were submitted.
func (s *Submitter) MarkStale(att *Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if att.State.Terminal() {
		return
	}
	s.transition(att, StateStale)
	s.totals.Stale++
	att.Bundle.settleNonces(false)
	bundlesStale.Inc()
	s.log.Info("Bundle stale before submission", "bundle", att.Bundle.ID, "target_block", att.Bundle.TargetBlock)
}

func (s *Submitter) snapshotState(att *Attempt) AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return att.State
}

// Totals returns a copy of the accrued statistics.
func (s *Submitter) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.totals
	t.AccruedProfit = new(big.Int).Set(s.totals.AccruedProfit)
	return t
}

// Attempt returns the recorded attempt for a bundle id, if any.
func (s *Submitter) Attempt(bundleID string) (*Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attempts[bundleID]
	return att, ok
}

// transition enforces the state machine. An invalid transition is a
// programming bug and is surfaced loudly rather than swallowed.
func (s *Submitter) transition(att *Attempt, to AttemptState) {
	for _, allowed := range validTransitions[att.State] {
		if allowed == to {
			att.State = to
			return
		}
	}
	s.log.Error("Invalid bundle state transition",
		"bundle", att.Bundle.ID,
		"from", att.State,
		"to", to)
	invalidTransitions.Inc()
}

package executor

import "errors"

var (
	// ErrAdapterUnavailable marks a transient network/timeout failure on an
	// external adapter. The attempt is dropped and fresh data is fetched on
	// the next cycle, never retried with the same stale inputs.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrSimulationReverted marks a bundle that is logically invalid for the
	// current state. It must never be submitted unmodified.
	ErrSimulationReverted = errors.New("bundle simulation reverted")

	// ErrNonceConflict marks two intents carrying the same nonce. The
	// allocator prevents this structurally; seeing it means a concurrency bug.
	ErrNonceConflict = errors.New("nonce conflict")

	// ErrSigning marks a key-material problem. Fatal to its pipeline and
	// surfaced to the operator, not retried.
	ErrSigning = errors.New("signing failed")

	// ErrStaleTarget marks an attempt whose target block already passed.
	ErrStaleTarget = errors.New("target block already passed")

	// ErrBelowMinPayment marks a clean simulation whose proposer payment does
	// not clear the configured floor. Policy rejection, not a revert.
	ErrBelowMinPayment = errors.New("proposer payment below minimum")
)

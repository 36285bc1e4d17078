package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevexec/sandwichd/chain"
)

// NonceAllocator is the single serialization point around "fetch nonce ->
// assign to intents". Concurrent builds for the same sender go through it so
// two pipelines can never hand out the same nonce value.
type NonceAllocator struct {
	chain chain.Client

	mu       sync.Mutex
	accounts map[common.Address]*nonceAccount
}

type nonceAccount struct {
	next        uint64
	outstanding int

	// refetch forces a chain re-fetch once no reservation is outstanding;
	// set when an abort leaves a hole mid-sequence.
	refetch bool
}

// Reservation is a contiguous nonce range handed to one build. It stays open
// until the bundle's fate is known: Done once the transactions landed on
// chain, Abort when they never will (build failure, discard, stale target).
type Reservation struct {
	Base  uint64
	Count uint64

	alloc *NonceAllocator
	addr  common.Address
	done  bool
}

func NewNonceAllocator(c chain.Client) *NonceAllocator {
	return &NonceAllocator{
		chain:    c,
		accounts: make(map[common.Address]*nonceAccount),
	}
}

// Reserve fetches the account's pending nonce and claims count consecutive
// values starting there. The on-chain fetch happens under the lock so two
// concurrent reservations observe each other.
func (a *NonceAllocator) Reserve(ctx context.Context, addr common.Address, count uint64) (*Reservation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	onchain, err := a.chain.PendingNonceAt(ctx, addr)
	if err != nil {
		return nil, errors.Join(ErrAdapterUnavailable, err)
	}

	acct, tracked := a.accounts[addr]
	if !tracked {
		acct = &nonceAccount{next: onchain}
		a.accounts[addr] = acct
	}

	if tracked && acct.outstanding > 0 && onchain > acct.next {
		// the chain moved past a range that is still reserved in flight;
		// handing out more nonces here would double-assign
		return nil, fmt.Errorf("on-chain nonce %d passed reserved range for %v: %w", onchain, addr, ErrNonceConflict)
	}

	base := acct.next
	if onchain > base {
		// another party moved the account forward outside this process
		base = onchain
	}

	acct.next = base + count
	acct.outstanding++

	return &Reservation{
		Base:  base,
		Count: count,
		alloc: a,
		addr:  addr,
	}, nil
}

// Done marks the reserved nonces as spent on chain.
func (r *Reservation) Done() {
	r.settle(false)
}

// Abort returns the reservation. Since the aborted transactions will never
// land, the range must be reissued: a tail range is rolled back immediately,
// anything else forces a chain re-fetch once the account is idle.
func (r *Reservation) Abort() {
	r.settle(true)
}

func (r *Reservation) settle(aborted bool) {
	if r == nil || r.done {
		return
	}
	r.done = true

	r.alloc.mu.Lock()
	defer r.alloc.mu.Unlock()

	acct := r.alloc.accounts[r.addr]
	if acct == nil {
		return
	}
	acct.outstanding--

	if aborted {
		if acct.next == r.Base+r.Count {
			// tail of the sequence: hand the same nonces to the next build
			acct.next = r.Base
		} else {
			acct.refetch = true
		}
	}

	if acct.outstanding <= 0 {
		acct.outstanding = 0
		if acct.refetch {
			delete(r.alloc.accounts, r.addr)
		}
	}
}

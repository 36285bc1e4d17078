package mevutil

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// MatchingHash is the keccak256 of a transaction hash. MEV-Share identifies a
// pending transaction in bundle bodies and hint events by this double hash
// rather than by the raw tx hash.
//
// https://docs.flashbots.net/flashbots-mev-share/searchers/event-stream#understanding-double-hash
func MatchingHash(txHash common.Hash) (common.Hash, error) {
	h := sha3.NewLegacyKeccak256()
	if _, err := h.Write(txHash.Bytes()); err != nil {
		return common.Hash{}, fmt.Errorf("failed to make keccak256 error %w", err)
	}

	return common.BytesToHash(h.Sum(nil)), nil
}

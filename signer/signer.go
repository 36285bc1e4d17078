// Package signer produces signed transactions from intents. Key material
// stays inside the package and is never exposed to callers.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mevexec/sandwichd/executor"
)

var (
	// ErrNoKey means the signing identity cannot be established. The
	// executor must not start without one.
	ErrNoKey = errors.New("signing key unavailable")

	ErrMalformedIntent = errors.New("malformed transaction intent")
)

// Local signs with an in-process secp256k1 key.
type Local struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewLocal(rawKey string) (*Local, error) {
	if rawKey == "" {
		return nil, ErrNoKey
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(rawKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 private key error %w", err)
	}

	return FromKey(key), nil
}

func FromKey(key *ecdsa.PrivateKey) *Local {
	return &Local{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *Local) Address() common.Address {
	return s.addr
}

func (s *Local) Sign(intent *executor.TransactionIntent) (*types.Transaction, error) {
	if err := validate(intent); err != nil {
		return nil, err
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

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(intent.ChainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx nonce %d error %w", intent.Nonce, err)
	}

	return signed, nil
}

func validate(intent *executor.TransactionIntent) error {
	switch {
	case intent == nil:
		return fmt.Errorf("%w: nil intent", ErrMalformedIntent)
	case intent.ChainID == nil:
		return fmt.Errorf("%w: missing chain id", ErrMalformedIntent)
	case intent.MaxFeePerGas == nil || intent.MaxPriorityFeePerGas == nil:
		return fmt.Errorf("%w: missing fee caps", ErrMalformedIntent)
	case intent.Gas == 0:
		return fmt.Errorf("%w: zero gas limit", ErrMalformedIntent)
	}
	return nil
}

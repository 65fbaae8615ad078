package core

// burn_validator.go – burn validation gate (component E).
//
// The validator takes its L1 collaborators as injected function types
// rather than a concrete RPC client, mirroring the txPool/networkAdapter/
// securityAdapter/authorityAdapter collaborator interfaces in consensus.go
// so the core stays testable without live L1 infrastructure (spec §9).

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// RequiredL1Confirmations is the minimum confirmation depth a burn
// transaction must reach before it may be validated.
const RequiredL1Confirmations = 6

// L1Tx is the minimal view of a fetched L1 transaction the validator needs:
// its hash and its raw wire form, from which burn outputs are parsed.
type L1Tx struct {
	Hash Hash
	Raw  *wire.MsgTx
}

// TxFetcher looks up a raw L1 transaction by hash.
type TxFetcher func(txHash Hash) (L1Tx, bool)

// ConfirmationGetter returns the current confirmation depth of an L1
// transaction (0 if unconfirmed or unknown).
type ConfirmationGetter func(txHash Hash) int

// BlockInfoGetter returns the hash and height of the block containing an L1
// transaction.
type BlockInfoGetter func(txHash Hash) (blockHash Hash, blockNumber uint64, ok bool)

// ProcessedChecker reports whether a burn has already been recorded,
// typically delegating to the burn registry.
type ProcessedChecker func(l1TxHash Hash) bool

// BurnValidator gates a detected burn on format, chain id, confirmation
// depth and idempotency before it is forwarded to mint consensus.
type BurnValidator struct {
	localChainID  uint32
	fetch         TxFetcher
	confirmations ConfirmationGetter
	blockInfo     BlockInfoGetter
	processed     ProcessedChecker
}

// NewBurnValidator constructs a validator bound to the given L1 collaborators.
func NewBurnValidator(localChainID uint32, fetch TxFetcher, confirmations ConfirmationGetter, blockInfo BlockInfoGetter, processed ProcessedChecker) *BurnValidator {
	return &BurnValidator{
		localChainID:  localChainID,
		fetch:         fetch,
		confirmations: confirmations,
		blockInfo:     blockInfo,
		processed:     processed,
	}
}

// ValidateBurn performs, in order: idempotency, L1 fetch, structural parse,
// chain-id match, confirmation-depth check, and block-info retrieval.
func (v *BurnValidator) ValidateBurn(l1TxHash Hash) (BurnData, int, Hash, uint64, error) {
	if v.processed(l1TxHash) {
		return BurnData{}, 0, Hash{}, 0, fmt.Errorf("%w: %s", ErrDuplicateBurn, l1TxHash)
	}

	tx, ok := v.fetch(l1TxHash)
	if !ok {
		return BurnData{}, 0, Hash{}, 0, fmt.Errorf("%w: %s", ErrL1TxUnavailable, l1TxHash)
	}

	burn, _, ok := ParseBurnTransaction(tx.Raw)
	if !ok {
		return BurnData{}, 0, Hash{}, 0, fmt.Errorf("%w: %s", ErrInvalidBurnPayload, l1TxHash)
	}

	if burn.ChainID != v.localChainID {
		return BurnData{}, 0, Hash{}, 0, fmt.Errorf("%w: burn chain %d, local chain %d", ErrChainIDMismatch, burn.ChainID, v.localChainID)
	}

	confirmations := v.confirmations(l1TxHash)
	if confirmations < RequiredL1Confirmations {
		return BurnData{}, 0, Hash{}, 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientConfirmations, confirmations, RequiredL1Confirmations)
	}

	blockHash, blockNumber, ok := v.blockInfo(l1TxHash)
	if !ok {
		return BurnData{}, 0, Hash{}, 0, fmt.Errorf("%w: %s", ErrBlockInfoUnavailable, l1TxHash)
	}

	return burn, confirmations, blockHash, blockNumber, nil
}

package core

// burn_registry.go – durable burn record index (component F).
//
// Modeled on the mutex-guarded map registry in integration_registry.go
// (a single RWMutex guarding a handful of plain maps, with simple
// register/lookup/list methods), extended here to three indexes the bridge
// needs: by L1 tx hash (primary), by recipient, and by L2 mint block (for
// reorg rewind).

import (
	"fmt"
	"sync"
)

// BurnRecord is the durable record of one processed burn.
type BurnRecord struct {
	L1TxHash     Hash
	L1BlockNumber uint64
	L1BlockHash  Hash
	L2Recipient  Address
	Amount       Amount
	L2MintBlock  uint64
	L2MintTxHash Hash
	Timestamp    int64
}

// BurnRegistry is the authoritative source of truth for which burns have
// already been minted, keyed primarily by L1 transaction hash.
type BurnRegistry struct {
	mu sync.RWMutex

	byL1Tx      map[Hash]BurnRecord
	byRecipient map[Address][]Hash
	byMintBlock map[uint64][]Hash

	totalBurned Amount
	burnCount   uint64
}

// NewBurnRegistry constructs an empty registry.
func NewBurnRegistry() *BurnRegistry {
	return &BurnRegistry{
		byL1Tx:      make(map[Hash]BurnRecord),
		byRecipient: make(map[Address][]Hash),
		byMintBlock: make(map[uint64][]Hash),
	}
}

// IsProcessed reports whether l1TxHash has already been recorded. It is
// suitable for direct use as a ProcessedChecker callback.
func (r *BurnRegistry) IsProcessed(l1TxHash Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byL1Tx[l1TxHash]
	return ok
}

// RecordBurn inserts rec if its L1 tx hash is not already present. Returns
// ErrDuplicateBurn on a repeat, leaving the registry unchanged.
func (r *BurnRegistry) RecordBurn(rec BurnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byL1Tx[rec.L1TxHash]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBurn, rec.L1TxHash)
	}

	r.byL1Tx[rec.L1TxHash] = rec
	r.byRecipient[rec.L2Recipient] = append(r.byRecipient[rec.L2Recipient], rec.L1TxHash)
	r.byMintBlock[rec.L2MintBlock] = append(r.byMintBlock[rec.L2MintBlock], rec.L1TxHash)
	r.totalBurned += rec.Amount
	r.burnCount++
	return nil
}

// Get returns the record for l1TxHash, if any.
func (r *BurnRegistry) Get(l1TxHash Hash) (BurnRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byL1Tx[l1TxHash]
	return rec, ok
}

// ByRecipient returns every burn record minted to addr, in recording order.
func (r *BurnRegistry) ByRecipient(addr Address) []BurnRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hashes := r.byRecipient[addr]
	out := make([]BurnRecord, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, r.byL1Tx[h])
	}
	return out
}

// TotalBurned returns the running sum of all recorded burn amounts.
func (r *BurnRegistry) TotalBurned() Amount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalBurned
}

// BurnCount returns the number of recorded burns.
func (r *BurnRegistry) BurnCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.burnCount
}

// HandleReorg removes every record whose L2MintBlock is >= fromBlock,
// decrementing totalBurned/burnCount and rebuilding the secondary indexes
// from the surviving set. Returns the number of records removed. Idempotent:
// calling it again with the same or a higher fromBlock removes nothing
// further once no surviving record meets the threshold.
func (r *BurnRegistry) HandleReorg(fromBlock uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for hash, rec := range r.byL1Tx {
		if rec.L2MintBlock >= fromBlock {
			delete(r.byL1Tx, hash)
			r.totalBurned -= rec.Amount
			r.burnCount--
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	r.byRecipient = make(map[Address][]Hash, len(r.byRecipient))
	r.byMintBlock = make(map[uint64][]Hash, len(r.byMintBlock))
	for hash, rec := range r.byL1Tx {
		r.byRecipient[rec.L2Recipient] = append(r.byRecipient[rec.L2Recipient], hash)
		r.byMintBlock[rec.L2MintBlock] = append(r.byMintBlock[rec.L2MintBlock], hash)
	}
	return removed
}

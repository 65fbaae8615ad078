package core

// l1_monitor.go – L1 chain monitor (component G).
//
// Scans incoming L1 blocks for burns targeting the local chain, tracks
// confirmation depth as blocks accumulate, and runs the burn validator on
// each sufficiently confirmed burn on every block until validation
// succeeds; a burn is not validated again after that. Mirrors
// the block-driven scan loop in leanlp-BTC-coinjoin's heuristics pipeline
// (one pass per block, incrementally updating a tracked-candidate set)
// rather than a polling design.

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// maxTrackedBurns bounds the detected-burn working set; once exceeded,
// already-validated entries older than pruneAge are discarded first.
const maxTrackedBurns = 10_000

// pruneAge is how long a validated detected burn is kept around before it
// becomes eligible for pruning under size pressure.
const pruneAge = time.Hour

// L1Block is the minimal view of an L1 block the monitor needs.
type L1Block struct {
	Hash         Hash
	Height       uint64
	Transactions []*wire.MsgTx
}

// DetectedBurn is a burn observed on L1 but not yet (or just) validated.
type DetectedBurn struct {
	L1TxHash      Hash
	L1BlockNumber uint64
	L1BlockHash   Hash
	Burn          BurnData
	Validated     bool
	DetectedAt    time.Time
}

// ValidationCallback is invoked once a tracked burn clears the validator,
// carrying everything the mint-consensus manager needs to open or join a
// consensus round for this burn.
type ValidationCallback func(l1TxHash Hash, burn BurnData, blockHash Hash, blockNumber uint64)

// L1ChainMonitor scans L1 blocks for local-chain burns and drives them
// through the validator as they reach the required confirmation depth.
type L1ChainMonitor struct {
	mu sync.Mutex

	localChainID        uint32
	validator           *BurnValidator
	lastProcessedHeight uint64
	tracked             map[Hash]*DetectedBurn
	onValidated         ValidationCallback
}

// NewL1ChainMonitor constructs a monitor bound to a validator and a
// validation-success callback.
func NewL1ChainMonitor(localChainID uint32, validator *BurnValidator, onValidated ValidationCallback) *L1ChainMonitor {
	return &L1ChainMonitor{
		localChainID: localChainID,
		validator:    validator,
		tracked:      make(map[Hash]*DetectedBurn),
		onValidated:  onValidated,
	}
}

// ProcessBlock scans block for new burns, recomputes confirmation depth for
// every tracked-but-unvalidated burn, and triggers validation for every one
// at or beyond the required depth. A burn whose validation fails is tried
// again on the next block; once it succeeds the burn is marked validated.
func (m *L1ChainMonitor) ProcessBlock(block L1Block) {
	m.mu.Lock()

	m.lastProcessedHeight = block.Height

	for _, tx := range block.Transactions {
		burn, _, ok := ParseBurnTransaction(tx)
		if !ok || burn.ChainID != m.localChainID {
			continue
		}
		txHash := canonicalHash(serializeWireTx(tx))
		if _, exists := m.tracked[txHash]; exists {
			continue
		}
		m.tracked[txHash] = &DetectedBurn{
			L1TxHash:      txHash,
			L1BlockNumber: block.Height,
			L1BlockHash:   block.Hash,
			Burn:          burn,
			DetectedAt:    time.Now(),
		}
	}

	type readyBurn struct {
		hash   Hash
		burn   BurnData
	}
	var ready []readyBurn
	for hash, db := range m.tracked {
		if db.Validated {
			continue
		}
		confirmations := int(block.Height) - int(db.L1BlockNumber) + 1
		if confirmations >= RequiredL1Confirmations {
			ready = append(ready, readyBurn{hash: hash, burn: db.Burn})
		}
	}

	m.pruneLocked()
	m.mu.Unlock()

	for _, rb := range ready {
		burn, confirmations, blockHash, blockNumber, err := m.validator.ValidateBurn(rb.hash)
		if err != nil {
			continue
		}
		_ = confirmations

		m.mu.Lock()
		if db, ok := m.tracked[rb.hash]; ok {
			db.Validated = true
		}
		m.mu.Unlock()

		if m.onValidated != nil {
			m.onValidated(rb.hash, burn, blockHash, blockNumber)
		}
	}
}

// HandleReorg drops every tracked burn detected at or above fromHeight and
// rewinds lastProcessedHeight to fromHeight-1.
func (m *L1ChainMonitor) HandleReorg(fromHeight uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash, db := range m.tracked {
		if db.L1BlockNumber >= fromHeight {
			delete(m.tracked, hash)
			removed++
		}
	}
	if fromHeight > 0 {
		m.lastProcessedHeight = fromHeight - 1
	} else {
		m.lastProcessedHeight = 0
	}
	return removed
}

// LastProcessedHeight returns the height of the most recently processed L1
// block.
func (m *L1ChainMonitor) LastProcessedHeight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProcessedHeight
}

// TrackedCount returns the number of burns currently tracked, validated or
// not.
func (m *L1ChainMonitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

// pruneLocked discards validated entries older than pruneAge once the
// tracked set exceeds maxTrackedBurns. Caller must hold m.mu.
func (m *L1ChainMonitor) pruneLocked() {
	if len(m.tracked) <= maxTrackedBurns {
		return
	}
	cutoff := time.Now().Add(-pruneAge)
	for hash, db := range m.tracked {
		if db.Validated && db.DetectedAt.Before(cutoff) {
			delete(m.tracked, hash)
		}
	}
}

// serializeWireTx renders tx in its canonical wire form for hashing.
func serializeWireTx(tx *wire.MsgTx) []byte {
	buf := make([]byte, 0, tx.SerializeSize())
	w := &byteSliceWriter{buf: buf}
	_ = tx.Serialize(w)
	return w.buf
}

// byteSliceWriter adapts a growable byte slice to io.Writer for
// wire.MsgTx.Serialize, which never returns an error for an in-memory sink.
type byteSliceWriter struct{ buf []byte }

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

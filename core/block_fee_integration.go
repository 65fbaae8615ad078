package core

// block_fee_integration.go – per-block hook wiring block finalization to
// fee distribution and state credit (component N).
//
// Grounded on rollup_management.go's thin administrative-glue shape (a
// handful of methods on a small struct that orchestrate other components
// under one lock, with no state of its own beyond what it coordinates) and
// on the "Broadcast after releasing the store lock" event-emission idiom in
// governance_reputation_voting.go, generalized to fire a block-fee-
// distributed event once a block finalizes.

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// BlockFeeEvent is emitted once per successfully processed finalized block.
type BlockFeeEvent struct {
	BlockNumber uint64
	BlockHash   Hash
	Sequencer   Address
	TotalFees   Amount
	TxCount     int
	Timestamp   int64
}

// BlockFeeEventCallback fires once per processed block, after all credits
// have been applied.
type BlockFeeEventCallback func(event BlockFeeEvent)

// BlockFeeIntegration is the sole caller-facing entry point that turns a
// finalized block's fees into account credits: it is the only component
// besides block execution itself permitted to write through the state
// manager.
type BlockFeeIntegration struct {
	mu sync.Mutex

	state    *StateManager
	fees     *FeeDistributor
	registry *L2Registry

	onEvent BlockFeeEventCallback
	metrics interface{ IncBlocksFinalized() }

	processed map[Hash]bool
}

// NewBlockFeeIntegration wires a state manager, fee distributor and chain
// registry together. registry and metrics may be nil.
func NewBlockFeeIntegration(state *StateManager, fees *FeeDistributor, registry *L2Registry, onEvent BlockFeeEventCallback, metrics interface{ IncBlocksFinalized() }) *BlockFeeIntegration {
	return &BlockFeeIntegration{
		state:     state,
		fees:      fees,
		registry:  registry,
		onEvent:   onEvent,
		metrics:   metrics,
		processed: make(map[Hash]bool),
	}
}

// ProcessFinalizedBlock computes the fee split for block (which must
// already be finalized) across otherActiveSequencers, credits the
// producer, pool recipients and the burn account, updates the chain
// registry's state-root pointer if chainID is known, and fires the
// block-fee event exactly once per block hash.
func (i *BlockFeeIntegration) ProcessFinalizedBlock(block *L2Block, totalFees Amount, otherActiveSequencers []Address, chainID uint32) error {
	if !block.IsFinalized {
		return fmt.Errorf("%w: block %d is not finalized", ErrInvalidState, block.Header.BlockNumber)
	}

	blockHash := block.Header.Hash()

	i.mu.Lock()
	if i.processed[blockHash] {
		i.mu.Unlock()
		return nil
	}
	i.processed[blockHash] = true
	i.mu.Unlock()

	split, err := i.fees.Distribute(block.Header.Sequencer, otherActiveSequencers, totalFees, block.Header.BlockNumber)
	if err != nil {
		return fmt.Errorf("fee distribution failed for block %d: %w", block.Header.BlockNumber, err)
	}

	if split.ProducerAmount > 0 {
		if err := i.state.Credit(split.Producer, split.ProducerAmount); err != nil {
			return fmt.Errorf("crediting producer %s: %w", split.Producer, err)
		}
	}
	for addr, amt := range split.PoolAmounts {
		if amt == 0 {
			continue
		}
		if err := i.state.Credit(addr, amt); err != nil {
			return fmt.Errorf("crediting pool member %s: %w", addr, err)
		}
	}
	if split.BurnAmount > 0 {
		if err := i.state.Credit(BurnAccount, split.BurnAmount); err != nil {
			return fmt.Errorf("crediting burn account: %w", err)
		}
	}

	if i.registry != nil {
		if _, ok := i.registry.Get(chainID); ok {
			_ = i.registry.UpdateChainState(chainID, block.Header.StateRoot)
		}
	}

	if i.metrics != nil {
		i.metrics.IncBlocksFinalized()
	}
	logrus.WithFields(logrus.Fields{
		"component":  "block_fee_integration",
		"block":      block.Header.BlockNumber,
		"sequencer":  block.Header.Sequencer.String(),
		"total_fees": totalFees,
	}).Info("block fees distributed")

	if i.onEvent != nil {
		i.onEvent(BlockFeeEvent{
			BlockNumber: block.Header.BlockNumber,
			BlockHash:   blockHash,
			Sequencer:   block.Header.Sequencer,
			TotalFees:   totalFees,
			TxCount:     len(block.Transactions),
			Timestamp:   block.Header.Timestamp,
		})
	}
	return nil
}

// RecordMissedBlock forwards a missed-block penalty to the fee distributor
// for sequencer at currentBlock, the counterpart to ProcessFinalizedBlock
// for slots where the scheduled sequencer produced nothing.
func (i *BlockFeeIntegration) RecordMissedBlock(sequencer Address, currentBlock uint64) {
	i.fees.RecordMissedBlock(sequencer, currentBlock)
}

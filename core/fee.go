package core

// fee.go – per-block fee split and sequencer reward accounting
// (component L).
//
// Grounded on transaction_fee_distribution_management.go's
// collect-then-distribute split (TxFeeManager: a fixed percentage table,
// remainder folded into one designated bucket, per-validator share paid out
// of a plain map), generalized from its flat 30/30/40 miner/staker/loanpool
// split to a 70/20/10 producer/pool/burn split with penalty and uptime
// adjustments, and extended with a reward ledger per sequencer in the
// shape of SequencerRewardInfo, modeled after the same mutex-guarded
// per-address map idiom used throughout this package, e.g. burn_registry.go.

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fee-split percentages for a finalized block's total fees.
const (
	ProducerSharePercent Amount = 70
	PoolSharePercent     Amount = 20
	BurnSharePercent     Amount = 10

	// PenaltyReductionPercent is applied to the producer's share while
	// their penalty window is open.
	PenaltyReductionPercent Amount = 50
	// UptimeBonusPercent is the bonus applied to the producer's share
	// when they are above the uptime-bonus threshold.
	UptimeBonusPercent Amount = 10
	// UptimeBonusThresholdPermille is the per-mille uptime ratio above
	// which a sequencer earns the uptime bonus.
	UptimeBonusThresholdPermille = 950

	// DefaultPenaltyBlocks is how many blocks a missed-block penalty
	// window lasts on first application.
	DefaultPenaltyBlocks uint64 = 100

	maxFeeDistributionHistory = 10_000
)

// BurnAccount is the sink address the burn share of every fee split is
// credited to; it is a protocol-owned account, never a sequencer. Derived
// the same way module accounts are derived elsewhere in this package
// (ModuleAddress-style Hash160 truncation of a tagged hash) so it can never
// collide with a user-controlled pubkey-derived address.
var BurnAccount = moduleAddress("burn")

func moduleAddress(module string) Address {
	hash := canonicalHash([]byte("module:" + module))
	var a Address
	copy(a[:], hash[:20])
	return a
}

// SequencerRewardInfo tracks one sequencer's accumulated and claimed
// rewards plus the production record that feeds penalty/uptime adjustments.
type SequencerRewardInfo struct {
	TotalRewards           Amount
	BlockProductionRewards Amount
	SharedPoolRewards      Amount
	UptimeBonus            Amount
	ClaimedRewards         Amount

	BlocksProduced uint64
	BlocksMissed   uint64

	PenaltyExpiresBlock uint64
	ReputationScore     int
	StakeAmount         Amount
	LastActiveBlock     uint64
}

// uptimePermille reports this sequencer's produced/(produced+missed) ratio
// in per-mille, or 1000 (perfect) if it has never been scheduled.
func (s SequencerRewardInfo) uptimePermille() uint64 {
	total := s.BlocksProduced + s.BlocksMissed
	if total == 0 {
		return 1000
	}
	return s.BlocksProduced * 1000 / total
}

// FeeSplit is the result of dividing one block's total fees.
type FeeSplit struct {
	Producer       Address
	ProducerAmount Amount
	PoolAmounts    map[Address]Amount
	BurnAmount     Amount
}

// FeeDistributor computes the 70/20/10 fee split for each finalized block
// and maintains the per-sequencer reward ledger it draws claims from.
type FeeDistributor struct {
	mu sync.Mutex

	rewards map[Address]*SequencerRewardInfo
	history []FeeSplit

	metrics interface{ IncFeesDistributed() }
}

// NewFeeDistributor constructs an empty distributor. metrics may be nil.
func NewFeeDistributor(metrics interface{ IncFeesDistributed() }) *FeeDistributor {
	return &FeeDistributor{
		rewards: make(map[Address]*SequencerRewardInfo),
		metrics: metrics,
	}
}

func (d *FeeDistributor) infoLocked(addr Address) *SequencerRewardInfo {
	info, ok := d.rewards[addr]
	if !ok {
		info = &SequencerRewardInfo{}
		d.rewards[addr] = info
	}
	return info
}

// RegisterSequencer seeds a sequencer's reward record with its staked
// amount, used at registration time before it has produced any blocks.
func (d *FeeDistributor) RegisterSequencer(addr Address, stake Amount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.infoLocked(addr)
	info.StakeAmount = stake
}

// RecordMissedBlock extends the sequencer's penalty window: the window is
// opened for DefaultPenaltyBlocks if not already open, or extended by half
// that duration if it is.
func (d *FeeDistributor) RecordMissedBlock(addr Address, currentBlock uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.infoLocked(addr)
	info.BlocksMissed++
	if info.PenaltyExpiresBlock > currentBlock {
		info.PenaltyExpiresBlock += DefaultPenaltyBlocks / 2
	} else {
		info.PenaltyExpiresBlock = currentBlock + DefaultPenaltyBlocks
	}
}

// Distribute splits totalFees for a block produced by producer, among
// otherActive (the remaining active sequencers, excluding producer), and
// credits every share into the reward ledger. The three shares always sum
// to exactly totalFees: integer-division remainders are folded into the
// burn share. Distribute does not touch account balances; callers apply
// FeeSplit to a StateManager (see block_fee_integration.go).
func (d *FeeDistributor) Distribute(producer Address, otherActive []Address, totalFees Amount, currentBlock uint64) (FeeSplit, error) {
	if totalFees < 0 {
		return FeeSplit{}, fmt.Errorf("%w: negative total fees %d", ErrInvalidAmount, totalFees)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	producerInfo := d.infoLocked(producer)
	producerInfo.BlocksProduced++
	producerInfo.LastActiveBlock = currentBlock

	if totalFees == 0 {
		split := FeeSplit{Producer: producer, PoolAmounts: map[Address]Amount{}}
		d.recordLocked(split)
		return split, nil
	}

	producerAmount := totalFees * ProducerSharePercent / 100
	poolTotal := totalFees * PoolSharePercent / 100
	burnAmount := totalFees * BurnSharePercent / 100

	poolAmounts := make(map[Address]Amount, len(otherActive))
	if len(otherActive) == 0 {
		producerAmount += poolTotal
		poolTotal = 0
	} else {
		per := poolTotal / Amount(len(otherActive))
		for _, addr := range otherActive {
			poolAmounts[addr] = per
		}
		remainder := poolTotal - per*Amount(len(otherActive))
		burnAmount += remainder
	}

	if producerInfo.PenaltyExpiresBlock > currentBlock {
		reduced := producerAmount * PenaltyReductionPercent / 100
		burnAmount += producerAmount - reduced
		producerAmount = reduced
	} else if producerInfo.uptimePermille() > UptimeBonusThresholdPermille {
		bonus := producerAmount * UptimeBonusPercent / 100
		producerAmount += bonus
		producerInfo.UptimeBonus += bonus
	}

	distributed := producerAmount + burnAmount
	for _, amt := range poolAmounts {
		distributed += amt
	}
	if residual := totalFees - distributed; residual != 0 {
		burnAmount += residual
	}

	producerInfo.TotalRewards += producerAmount
	producerInfo.BlockProductionRewards += producerAmount
	for addr, amt := range poolAmounts {
		info := d.infoLocked(addr)
		info.TotalRewards += amt
		info.SharedPoolRewards += amt
	}

	split := FeeSplit{Producer: producer, ProducerAmount: producerAmount, PoolAmounts: poolAmounts, BurnAmount: burnAmount}
	d.recordLocked(split)

	logrus.WithFields(logrus.Fields{
		"component": "fee_distributor",
		"producer":  producer.String(),
		"total":     totalFees,
		"block":     currentBlock,
	}).Debug("fee split computed")
	if d.metrics != nil {
		d.metrics.IncFeesDistributed()
	}
	return split, nil
}

// recordLocked appends split to the bounded distribution history. Caller
// must hold d.mu.
func (d *FeeDistributor) recordLocked(split FeeSplit) {
	d.history = append(d.history, split)
	if len(d.history) > maxFeeDistributionHistory {
		d.history = d.history[len(d.history)-maxFeeDistributionHistory:]
	}
}

// History returns a copy of the retained fee-distribution history, oldest
// first.
func (d *FeeDistributor) History() []FeeSplit {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FeeSplit, len(d.history))
	copy(out, d.history)
	return out
}

// RewardInfo returns a copy of a sequencer's current reward record.
func (d *FeeDistributor) RewardInfo(addr Address) SequencerRewardInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.rewards[addr]
	if !ok {
		return SequencerRewardInfo{}
	}
	return *info
}

// ClaimRewards draws up to amount from addr's unclaimed balance
// (TotalRewards - ClaimedRewards), returning the amount actually claimed.
func (d *FeeDistributor) ClaimRewards(addr Address, amount Amount) (Amount, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: claim amount must be positive", ErrInvalidAmount)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.rewards[addr]
	if !ok {
		return 0, fmt.Errorf("%w: no reward record for %s", ErrNotFound, addr)
	}
	available := info.TotalRewards - info.ClaimedRewards
	if amount > available {
		amount = available
	}
	if amount <= 0 {
		return 0, nil
	}
	info.ClaimedRewards += amount
	return amount, nil
}

package core

// reputation.go – cross-layer reputation aggregator and gaming detection
// (component M).
//
// Grounded on the SYN-REP reputation token idiom in
// governance_reputation_voting.go (a per-address balance imported/updated
// through dedicated functions rather than freely written), generalized from
// a single mintable balance into a three-score model (imported L1 HAT
// score, locally computed behaviour/economic sub-scores, a weighted
// aggregate) plus graduated-benefit and gaming-detection rules that file
// does not attempt. The activity-counter shape
// (per-address mutable record behind one mutex) follows timestamp.go's
// SequencerBehavior tracker.

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Weights for the aggregated reputation score.
const (
	L1Weight        = 60
	BehaviorWeight  = 25
	EconomicWeight  = 15
	minQualifyingL2Txs = 5

	// FlaggedAggregateCap is the maximum aggregate score a flagged user
	// can have, regardless of their computed components.
	FlaggedAggregateCap = 50

	// L1ReputationSyncIntervalBlocks is how often a caller-owned scheduler
	// should re-import L1 HAT scores.
	L1ReputationSyncIntervalBlocks uint64 = 1000
)

// Benefit thresholds and tiers.
const (
	GasDiscountFloorScore = 70
	GasDiscountCeilScore  = 100
	MaxGasDiscountPercent = 50

	ChallengePeriodFastScore = 80
	ChallengePeriodMidScore  = 60

	FastFinalityThreshold = 80
)

// UserReputation holds one address's imported and locally computed
// reputation data.
type UserReputation struct {
	L1HatScore int

	BehaviorScore int
	EconomicScore int
	Aggregate     int

	L2TxCount       uint64
	L2FailureCount  uint64
	VolumeCoin      uint64
	ContractTxCount uint64

	Flagged bool
}

// UserBenefits are the graduated perks derived purely from an aggregate
// reputation score.
type UserBenefits struct {
	GasDiscountPercent         int
	ChallengePeriodSeconds     int64
	RateLimitMultiplier        int
	InstantSoftFinality        bool
	MaxWithdrawalWithoutVerify Amount
}

// ReputationManager tracks every user's reputation data and derives
// benefits from it. It observes the state manager's activity via RecordTx
// and imports L1 scores via ImportL1Score; it never mutates account state.
type ReputationManager struct {
	mu    sync.Mutex
	users map[Address]*UserReputation

	lastL1Sync uint64
}

// NewReputationManager constructs an empty manager.
func NewReputationManager() *ReputationManager {
	return &ReputationManager{users: make(map[Address]*UserReputation)}
}

func (m *ReputationManager) userLocked(addr Address) *UserReputation {
	u, ok := m.users[addr]
	if !ok {
		u = &UserReputation{}
		m.users[addr] = u
	}
	return u
}

// ImportL1Score sets addr's imported L1 HAT score, clipped to [0,100], and
// recomputes its aggregate.
func (m *ReputationManager) ImportL1Score(addr Address, hatScore int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(addr)
	u.L1HatScore = clip100(hatScore)
	m.recomputeLocked(addr, u)
}

// RecordTransaction folds one L2 transaction's outcome into addr's activity
// counters and recomputes its scores, flagging the account if a gaming
// pattern is now detected.
func (m *ReputationManager) RecordTransaction(addr Address, failed bool, isContractInteraction bool, volume Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(addr)
	u.L2TxCount++
	if failed {
		u.L2FailureCount++
	}
	if isContractInteraction {
		u.ContractTxCount++
	}
	if volume > 0 {
		u.VolumeCoin += uint64(volume)
	}
	m.recomputeLocked(addr, u)
	if !u.Flagged && m.detectGamingLocked(u) {
		u.Flagged = true
		u.Aggregate = min(u.Aggregate, FlaggedAggregateCap)
		logrus.WithFields(logrus.Fields{
			"component": "reputation_manager",
			"address":   addr.String(),
		}).Warn("reputation: gaming pattern detected, account flagged")
	}
}

// recomputeLocked rebuilds behaviour, economic and aggregate scores from
// addr's current counters. Caller must hold m.mu.
func (m *ReputationManager) recomputeLocked(addr Address, u *UserReputation) {
	u.BehaviorScore = behaviorScore(u)
	u.EconomicScore = economicScore(u)

	var aggregate int
	if u.L2TxCount < minQualifyingL2Txs {
		aggregate = u.L1HatScore
	} else {
		aggregate = clip100((L1Weight*u.L1HatScore + BehaviorWeight*u.BehaviorScore + EconomicWeight*u.EconomicScore) / 100)
	}
	if u.Flagged {
		aggregate = min(aggregate, FlaggedAggregateCap)
	}
	u.Aggregate = aggregate
}

// behaviorScore = activity band (<=40) + success-rate*40/100 + contract-
// interaction band (<=20).
func behaviorScore(u *UserReputation) int {
	activityBand := activityBand(u.L2TxCount)
	var successRate float64 = 100
	if u.L2TxCount > 0 {
		successRate = 100 * float64(u.L2TxCount-u.L2FailureCount) / float64(u.L2TxCount)
	}
	contractBand := contractInteractionBand(u.ContractTxCount)
	score := float64(activityBand) + successRate*40/100 + float64(contractBand)
	return clip100(int(score))
}

func activityBand(txCount uint64) int {
	switch {
	case txCount >= 500:
		return 40
	case txCount >= 100:
		return 30
	case txCount >= 20:
		return 20
	case txCount >= 5:
		return 10
	default:
		return 0
	}
}

func contractInteractionBand(contractTxs uint64) int {
	switch {
	case contractTxs >= 100:
		return 20
	case contractTxs >= 20:
		return 12
	case contractTxs >= 1:
		return 5
	default:
		return 0
	}
}

// economicScore = 10*log10(volume+1) plus high-volume bonuses, clipped.
func economicScore(u *UserReputation) int {
	base := 10 * math.Log10(float64(u.VolumeCoin)+1)
	var bonus float64
	switch {
	case u.VolumeCoin >= 1_000*100_000_000:
		bonus = 30
	case u.VolumeCoin >= 100*100_000_000:
		bonus = 15
	case u.VolumeCoin >= 10*100_000_000:
		bonus = 5
	}
	return clip100(int(base + bonus))
}

// detectGamingLocked evaluates the four gaming-pattern predicates. Caller
// must hold m.mu.
func (m *ReputationManager) detectGamingLocked(u *UserReputation) bool {
	return u.Flagged || isWashPattern(u) || isHighFailureRate(u) || isL1L2Gap(u)
}

// isWashPattern flags a high transaction count with negligible per-tx
// volume, characteristic of wash-trading for activity-band credit.
func isWashPattern(u *UserReputation) bool {
	if u.L2TxCount < 100 {
		return false
	}
	avg := u.VolumeCoin / u.L2TxCount
	return avg < 1000 // less than 0.00001 coin average
}

// isHighFailureRate flags a majority-failing account with enough volume to
// be meaningful rather than noise.
func isHighFailureRate(u *UserReputation) bool {
	if u.L2TxCount < 20 {
		return false
	}
	return float64(u.L2FailureCount)/float64(u.L2TxCount) > 0.5
}

// isL1L2Gap flags an account whose locally observed behaviour diverges
// sharply (by more than 30 points) from its imported L1 reputation,
// suggestive of a clean L1 history masking abusive L2 activity.
func isL1L2Gap(u *UserReputation) bool {
	gap := u.L1HatScore - u.BehaviorScore
	if gap < 0 {
		gap = -gap
	}
	return gap > 30
}

// ClearFlag removes addr's gaming flag and recomputes its aggregate.
func (m *ReputationManager) ClearFlag(addr Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[addr]
	if !ok {
		return
	}
	u.Flagged = false
	m.recomputeLocked(addr, u)
}

// Get returns a copy of addr's reputation record.
func (m *ReputationManager) Get(addr Address) UserReputation {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[addr]
	if !ok {
		return UserReputation{}
	}
	return *u
}

// GetAggregatedReputation returns addr's current aggregate score.
func (m *ReputationManager) GetAggregatedReputation(addr Address) int {
	return m.Get(addr).Aggregate
}

// GetBenefits derives addr's graduated benefits purely from its current
// aggregate score.
func (m *ReputationManager) GetBenefits(addr Address) UserBenefits {
	return BenefitsForScore(m.GetAggregatedReputation(addr))
}

// BenefitsForScore is the pure function from an aggregate score to the
// benefits it grants, independent of any stored user record.
func BenefitsForScore(score int) UserBenefits {
	return UserBenefits{
		GasDiscountPercent:         gasDiscountFor(score),
		ChallengePeriodSeconds:     challengePeriodFor(score),
		RateLimitMultiplier:        rateLimitMultiplierFor(score),
		InstantSoftFinality:        score > FastFinalityThreshold,
		MaxWithdrawalWithoutVerify: maxWithdrawalFor(score),
	}
}

// gasDiscountFor scales linearly from 0% at 70 to 50% at 100.
func gasDiscountFor(score int) int {
	if score < GasDiscountFloorScore {
		return 0
	}
	if score >= GasDiscountCeilScore {
		return MaxGasDiscountPercent
	}
	span := GasDiscountCeilScore - GasDiscountFloorScore
	return (score - GasDiscountFloorScore) * MaxGasDiscountPercent / span
}

func challengePeriodFor(score int) int64 {
	switch {
	case score >= ChallengePeriodFastScore:
		return 24 * 3600
	case score >= ChallengePeriodMidScore:
		return 3 * 24 * 3600
	default:
		return 7 * 24 * 3600
	}
}

func rateLimitMultiplierFor(score int) int {
	switch {
	case score >= 90:
		return 10
	case score >= 80:
		return 7
	case score >= 60:
		return 5
	case score >= 40:
		return 2
	default:
		return 1
	}
}

func maxWithdrawalFor(score int) Amount {
	const coin = 100_000_000
	switch {
	case score >= 90:
		return 100_000 * coin
	case score >= 80:
		return 10_000 * coin
	case score >= 60:
		return 1_000 * coin
	case score >= 40:
		return 100 * coin
	default:
		return 10 * coin
	}
}

// ShouldResyncL1 reports whether currentBlock crosses an L1
// reputation-resync boundary, for a caller-owned scheduler to drive the
// periodic import; this manager has no internal timer of its own.
func (m *ReputationManager) ShouldResyncL1(currentBlock uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if currentBlock < m.lastL1Sync+L1ReputationSyncIntervalBlocks {
		return false
	}
	m.lastL1Sync = currentBlock
	return true
}

func clip100(x int) int {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}

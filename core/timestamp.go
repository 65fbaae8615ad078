package core

// timestamp.go – sequencer timestamp discipline and manipulation detection
// (component J).
//
// The flagging rule is a straightforward running-statistics tracker keyed by
// address, in the same shape as the behaviour counters kept per validator
// elsewhere in this package's bridge components: a small mutable record
// updated on every observation, with a sticky boolean flag rather than an
// event that must be separately latched by the caller.

import (
	"fmt"
	"sync"
)

// MaxTimestampDriftFromWallClock is how far into the future (relative to the
// validator's own wall clock) a block timestamp may be.
const MaxTimestampDriftFromWallClock int64 = 120

// MaxL1DriftSeconds is how far a block timestamp may diverge from the
// currently known L1 reference timestamp.
const MaxL1DriftSeconds int64 = 300

// DefaultConsecutiveViolationsThreshold is the default number of consecutive
// violations that immediately flags a sequencer.
const DefaultConsecutiveViolationsThreshold = 3

// DefaultViolationRateThreshold is the default fraction of violating blocks
// (out of at least 10 produced) that flags a sequencer.
const DefaultViolationRateThreshold = 0.20

// DefaultManipulationDriftThreshold is the default EMA drift (seconds) that
// flags a sequencer once it has produced at least 10 blocks with at least
// one violation.
const DefaultManipulationDriftThreshold = 250.0

// emaAlpha is the smoothing factor for the running average L1 drift.
const emaAlpha = 0.1

// SequencerBehavior tracks one sequencer's timestamp-discipline history.
type SequencerBehavior struct {
	BlocksProduced          uint64
	ViolationCount          uint64
	ConsecutiveViolations   uint64
	AverageL1Drift          float64
	MaxL1Drift              float64
	FlaggedForManipulation  bool
}

// TimestampValidator checks block timestamps against monotonicity, future,
// and L1-drift bounds, and tracks per-sequencer manipulation flags.
type TimestampValidator struct {
	mu sync.Mutex

	consecutiveViolationsThreshold uint64
	violationRateThreshold         float64
	manipulationDriftThreshold     float64

	behaviors map[Address]*SequencerBehavior
}

// NewTimestampValidator constructs a validator with the default flagging
// thresholds.
func NewTimestampValidator() *TimestampValidator {
	return &TimestampValidator{
		consecutiveViolationsThreshold: DefaultConsecutiveViolationsThreshold,
		violationRateThreshold:         DefaultViolationRateThreshold,
		manipulationDriftThreshold:     DefaultManipulationDriftThreshold,
		behaviors:                      make(map[Address]*SequencerBehavior),
	}
}

// Validate checks timestamp against prevTimestamp, wallClock, and
// l1Reference, recording the outcome against sequencer's behaviour record
// regardless of the result.
func (v *TimestampValidator) Validate(sequencer Address, timestamp, prevTimestamp, wallClock, l1Reference int64) error {
	var vErr error
	switch {
	case timestamp <= prevTimestamp:
		vErr = fmt.Errorf("%w: timestamp %d must strictly exceed previous %d", ErrInvalidBlockStructure, timestamp, prevTimestamp)
	case timestamp > wallClock+MaxTimestampDriftFromWallClock:
		vErr = fmt.Errorf("%w: timestamp %d is more than %ds ahead of wall clock %d", ErrInvalidBlockStructure, timestamp, MaxTimestampDriftFromWallClock, wallClock)
	}

	drift := timestamp - l1Reference
	if drift < 0 {
		drift = -drift
	}
	if vErr == nil && drift > MaxL1DriftSeconds {
		vErr = fmt.Errorf("%w: timestamp %d drifts %ds from L1 reference %d, max %ds", ErrInvalidBlockStructure, timestamp, drift, l1Reference, MaxL1DriftSeconds)
	}

	v.record(sequencer, vErr != nil, float64(drift))
	return vErr
}

// record updates sequencer's behaviour statistics and re-evaluates its
// manipulation flag.
func (v *TimestampValidator) record(sequencer Address, violated bool, drift float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, ok := v.behaviors[sequencer]
	if !ok {
		b = &SequencerBehavior{}
		v.behaviors[sequencer] = b
	}

	b.BlocksProduced++
	if violated {
		b.ViolationCount++
		b.ConsecutiveViolations++
	} else {
		b.ConsecutiveViolations = 0
	}

	if b.BlocksProduced == 1 {
		b.AverageL1Drift = drift
	} else {
		b.AverageL1Drift = emaAlpha*drift + (1-emaAlpha)*b.AverageL1Drift
	}
	if drift > b.MaxL1Drift {
		b.MaxL1Drift = drift
	}

	if b.FlaggedForManipulation {
		return
	}
	switch {
	case b.ConsecutiveViolations >= v.consecutiveViolationsThreshold:
		b.FlaggedForManipulation = true
	case b.BlocksProduced >= 10 && float64(b.ViolationCount)/float64(b.BlocksProduced) > v.violationRateThreshold:
		b.FlaggedForManipulation = true
	case b.BlocksProduced >= 10 && b.ViolationCount > 0 && b.AverageL1Drift > v.manipulationDriftThreshold:
		b.FlaggedForManipulation = true
	}
}

// Behavior returns a copy of sequencer's current behaviour record.
func (v *TimestampValidator) Behavior(sequencer Address) SequencerBehavior {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.behaviors[sequencer]
	if !ok {
		return SequencerBehavior{}
	}
	return *b
}

// ClearFlag removes sequencer's manipulation flag and resets its consecutive
// violation streak, the only sanctioned way to un-stick a flag.
func (v *TimestampValidator) ClearFlag(sequencer Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.behaviors[sequencer]
	if !ok {
		return
	}
	b.FlaggedForManipulation = false
	b.ConsecutiveViolations = 0
}

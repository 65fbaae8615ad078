package core

import "testing"

func TestTimestampMonotonicityBoundary(t *testing.T) {
	v := NewTimestampValidator()
	seq := addrFromByte(1)
	if err := v.Validate(seq, 1001, 1000, 1001, 1001); err != nil {
		t.Fatalf("previous+1 should pass: %v", err)
	}
	if err := v.Validate(seq, 1000, 1000, 1001, 1000); err == nil {
		t.Fatalf("timestamp equal to previous should fail")
	}
}

func TestTimestampFutureBoundRejected(t *testing.T) {
	v := NewTimestampValidator()
	seq := addrFromByte(1)
	wallClock := int64(1000)
	if err := v.Validate(seq, wallClock+MaxTimestampDriftFromWallClock, 0, wallClock, wallClock); err != nil {
		t.Fatalf("exactly at the future bound should pass: %v", err)
	}
	if err := v.Validate(seq, wallClock+MaxTimestampDriftFromWallClock+1, wallClock+MaxTimestampDriftFromWallClock, wallClock, wallClock); err == nil {
		t.Fatalf("one second past the future bound should fail")
	}
}

func TestTimestampL1DriftRejected(t *testing.T) {
	v := NewTimestampValidator()
	seq := addrFromByte(1)
	l1Ref := int64(1000)
	if err := v.Validate(seq, l1Ref+MaxL1DriftSeconds, 0, l1Ref+MaxL1DriftSeconds, l1Ref); err != nil {
		t.Fatalf("exactly at the L1 drift bound should pass: %v", err)
	}
	if err := v.Validate(seq, l1Ref+MaxL1DriftSeconds+1, l1Ref+MaxL1DriftSeconds, l1Ref+MaxL1DriftSeconds+1, l1Ref); err == nil {
		t.Fatalf("one second past the L1 drift bound should fail")
	}
}

func TestTimestampManipulationFlaggingByConsecutiveViolations(t *testing.T) {
	v := NewTimestampValidator()
	seq := addrFromByte(1)
	prev := int64(0)
	for i := 0; i < DefaultConsecutiveViolationsThreshold; i++ {
		ts := prev // equal to previous: a violation every time
		v.Validate(seq, ts, prev, ts, ts)
		prev = ts
	}
	if b := v.Behavior(seq); !b.FlaggedForManipulation {
		t.Fatalf("expected manipulation flag after %d consecutive violations, got %+v", DefaultConsecutiveViolationsThreshold, b)
	}
}

func TestTimestampFlagIsStickyUntilCleared(t *testing.T) {
	v := NewTimestampValidator()
	seq := addrFromByte(1)
	prev := int64(0)
	for i := 0; i < DefaultConsecutiveViolationsThreshold; i++ {
		v.Validate(seq, prev, prev, prev, prev)
	}
	if !v.Behavior(seq).FlaggedForManipulation {
		t.Fatalf("expected flag to be set")
	}

	// A subsequent clean block must not clear the flag on its own.
	v.Validate(seq, 1000, 0, 1000, 1000)
	if !v.Behavior(seq).FlaggedForManipulation {
		t.Fatalf("flag must remain sticky across a clean block")
	}

	v.ClearFlag(seq)
	if v.Behavior(seq).FlaggedForManipulation {
		t.Fatalf("ClearFlag should remove the flag")
	}
}

func TestTimestampViolationRateFlagging(t *testing.T) {
	v := NewTimestampValidator()
	seq := addrFromByte(1)
	prev := int64(1000)
	// 4 violations out of 10 blocks (40% > 20% threshold), spaced out so
	// consecutive-violation flagging never fires on its own.
	for i := 0; i < 10; i++ {
		ts := prev + 10
		if i%3 == 0 {
			v.Validate(seq, prev, prev, prev, prev) // violation: equal timestamps
		} else {
			v.Validate(seq, ts, prev, ts, ts)
			prev = ts
		}
	}
	if b := v.Behavior(seq); !b.FlaggedForManipulation {
		t.Fatalf("expected rate-based flagging, got %+v", b)
	}
}

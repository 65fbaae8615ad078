package core

import (
	"errors"
	"testing"
)

func TestFraudProofSubmissionRejectsLowBond(t *testing.T) {
	f := NewFraudProofSystem(1, nil)
	root := canonicalHash([]byte("root"))
	f.RegisterStateRoot(root, 10, 1000)
	proof := FraudProof{Type: FraudInvalidStateTransition, DisputedStateRoot: root, L2ChainID: 1, ChallengeBond: MinChallengeBond - 1, SubmittedAt: 500}
	if err := f.SubmitFraudProof(proof); !errors.Is(err, ErrBondTooLow) {
		t.Fatalf("expected ErrBondTooLow, got %v", err)
	}
}

func TestFraudProofChallengeWindowBoundary(t *testing.T) {
	f := NewFraudProofSystem(1, nil)
	root := canonicalHash([]byte("root"))
	f.RegisterStateRoot(root, 10, 1000)

	proofAtDeadline := FraudProof{Type: FraudInvalidStateTransition, DisputedStateRoot: root, L2ChainID: 1, ChallengeBond: MinChallengeBond, SubmittedAt: 1000}
	if err := f.SubmitFraudProof(proofAtDeadline); err != nil {
		t.Fatalf("submission exactly at the deadline should be accepted: %v", err)
	}

	root2 := canonicalHash([]byte("root2"))
	f.RegisterStateRoot(root2, 11, 1000)
	proofAfterDeadline := FraudProof{Type: FraudInvalidStateTransition, DisputedStateRoot: root2, L2ChainID: 1, ChallengeBond: MinChallengeBond, SubmittedAt: 1001}
	if err := f.SubmitFraudProof(proofAfterDeadline); !errors.Is(err, ErrChallengeWindowClosed) {
		t.Fatalf("submission one second after the deadline should be rejected, got %v", err)
	}
}

func TestFraudProofRejectsDuplicatePerRoot(t *testing.T) {
	f := NewFraudProofSystem(1, nil)
	root := canonicalHash([]byte("root"))
	f.RegisterStateRoot(root, 10, 1000)
	proof := FraudProof{Type: FraudInvalidStateTransition, DisputedStateRoot: root, L2ChainID: 1, ChallengeBond: MinChallengeBond, SubmittedAt: 500}
	if err := f.SubmitFraudProof(proof); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if err := f.SubmitFraudProof(proof); !errors.Is(err, ErrDuplicateFraudProof) {
		t.Fatalf("expected ErrDuplicateFraudProof on the second submission, got %v", err)
	}
}

func TestFraudProofVerificationValidSlashesSequencer(t *testing.T) {
	var slashedAmount, reward Amount
	var slashedSeq, rewardedChallenger Address
	f := NewFraudProofSystem(1, func(seq Address, _ FraudProofType, amt Amount, challenger Address, rew Amount) {
		slashedSeq, slashedAmount, rewardedChallenger, reward = seq, amt, challenger, rew
	})

	seq := addrFromByte(1)
	challenger := addrFromByte(2)
	f.SetStake(seq, 1000*100_000_000)

	oracle := func(tx *L2Transaction, preRoot Hash) (bool, uint64, Hash, error) {
		return true, 0, canonicalHash([]byte("actual-root")), nil
	}
	proof := FraudProof{
		Type:              FraudInvalidStateTransition,
		DisputedStateRoot: canonicalHash([]byte("wrong-root")),
		PreviousStateRoot: ZeroHash,
		SequencerAddress:  seq,
		ChallengerAddress: challenger,
	}
	outcome, err := f.VerifyFraudProof(proof, oracle)
	if err != nil {
		t.Fatalf("VerifyFraudProof: %v", err)
	}
	if outcome != FraudValid {
		t.Fatalf("outcome = %v, want FraudValid", outcome)
	}
	if slashedSeq != seq {
		t.Fatalf("onSlash fired for the wrong sequencer")
	}
	if slashedAmount != 1000*100_000_000-MinSequencerStakeFloor { // 100% slash for invalid state transition, stopped at the floor
		t.Fatalf("slashed amount = %d, want stake minus MinSequencerStakeFloor", slashedAmount)
	}
	if reward != slashedAmount/2 {
		t.Fatalf("reward = %d, want 50%% of slashed amount %d", reward, slashedAmount)
	}
	if rewardedChallenger != challenger {
		t.Fatalf("wrong challenger credited")
	}
	if f.Stake(seq) != MinSequencerStakeFloor {
		t.Fatalf("stake after 100%% slash should sit at the floor %d, got %d", MinSequencerStakeFloor, f.Stake(seq))
	}
}

func TestFraudProofVerificationInvalidWhenRootMatches(t *testing.T) {
	f := NewFraudProofSystem(1, nil)
	matchingRoot := canonicalHash([]byte("matches"))
	oracle := func(tx *L2Transaction, preRoot Hash) (bool, uint64, Hash, error) {
		return true, 0, matchingRoot, nil
	}
	proof := FraudProof{DisputedStateRoot: matchingRoot, PreviousStateRoot: ZeroHash}
	outcome, err := f.VerifyFraudProof(proof, oracle)
	if err != nil {
		t.Fatalf("VerifyFraudProof: %v", err)
	}
	if outcome != FraudInvalid {
		t.Fatalf("outcome = %v, want FraudInvalid when recomputed root matches", outcome)
	}
}

func TestFraudProofSlashingRespectsFloor(t *testing.T) {
	f := NewFraudProofSystem(1, nil)
	seq := addrFromByte(3)
	f.SetStake(seq, MinSequencerStakeFloor+1)
	slashed := f.slash(seq, FraudInvalidStateTransition) // 100% type
	if f.Stake(seq) != MinSequencerStakeFloor {
		t.Fatalf("stake should be floored at %d, got %d", MinSequencerStakeFloor, f.Stake(seq))
	}
	if slashed != 1 {
		t.Fatalf("slashed amount should be the 1-unit excess above the floor, got %d", slashed)
	}
}

package core

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

func stubBridgeConfig(seqs []testSequencer) BridgeConfig {
	byAddr := make(map[Address]testSequencer, len(seqs))
	for _, s := range seqs {
		byAddr[s.addr] = s
	}
	return BridgeConfig{
		LocalChainID:    1,
		TxFetcher:       func(Hash) (L1Tx, bool) { return L1Tx{}, false },
		Confirmations:   func(Hash) int { return 0 },
		BlockInfo:       func(Hash) (Hash, uint64, bool) { return Hash{}, 0, false },
		SequencerCount:  func() int { return len(seqs) },
		VerifySequencer: func(addr Address) bool { _, ok := byAddr[addr]; return ok },
		SequencerPubKey: func(addr Address) (*btcec.PublicKey, bool) {
			s, ok := byAddr[addr]
			if !ok {
				return nil, false
			}
			return s.priv.PubKey(), true
		},
	}
}

func stubBridgeConfigWithOn(seqs []testSequencer, onReached ReachedCallback, onFailed FailedCallback) BridgeConfig {
	cfg := stubBridgeConfig(seqs)
	cfg.OnMintReached = onReached
	cfg.OnMintFailed = onFailed
	return cfg
}

func TestNewBridgeRejectsNilCollaborators(t *testing.T) {
	if _, err := NewBridge(BridgeConfig{}); err == nil {
		t.Fatalf("expected rejection of a config with nil collaborators")
	}
}

func TestBridgeWiresMintConsensusToStateAndBurnRegistry(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}

	var reachedCount int
	b, err := NewBridge(stubBridgeConfigWithOn(seqs, func(Hash, BurnData, Address, Amount) { reachedCount++ }, nil))
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	txHash := canonicalHash([]byte("burn1"))
	recipient := addrFromByte(9)
	burn := BurnData{ChainID: 1, Amount: 100}

	if err := b.MintConsensus.SubmitConfirmation(confirmFrom(seqs[0], txHash, recipient, 100), burn); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	if err := b.MintConsensus.SubmitConfirmation(confirmFrom(seqs[1], txHash, recipient, 100), burn); err != nil {
		t.Fatalf("second confirmation: %v", err)
	}

	if reachedCount != 1 {
		t.Fatalf("external OnMintReached fired %d times, want 1", reachedCount)
	}
	if got := b.State.Get(recipient).Balance; got != 100 {
		t.Fatalf("recipient balance = %d, want 100", got)
	}
	if _, ok := b.BurnRegistry.Get(txHash); !ok {
		t.Fatalf("expected burn to be recorded in the burn registry")
	}
}

func TestBridgeWiresMintConsensusFailure(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}

	var failedReason error
	b, err := NewBridge(stubBridgeConfigWithOn(seqs, nil, func(_ Hash, reason error) { failedReason = reason }))
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	txHash := canonicalHash([]byte("burn2"))
	recipient := addrFromByte(9)
	burn := BurnData{ChainID: 1, Amount: 100}

	// One confirmation is not enough for 2/3-of-3; the round stays PENDING
	// until ProcessTimeouts fails it.
	if err := b.MintConsensus.SubmitConfirmation(confirmFrom(seqs[0], txHash, recipient, 100), burn); err != nil {
		t.Fatalf("confirmation: %v", err)
	}
	b.MintConsensus.ProcessTimeouts(time.Now().Add(MintConsensusTimeout + time.Second))
	if failedReason == nil {
		t.Fatalf("expected OnMintFailed to fire after the round timed out")
	}
	if got := b.State.Get(recipient).Balance; got != 0 {
		t.Fatalf("recipient balance = %d, want 0 (consensus never reached)", got)
	}
}

func TestBridgeSubmitFraudProofCountsSubmissions(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	b, err := NewBridge(stubBridgeConfig(seqs))
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	root := canonicalHash([]byte("root"))
	b.FraudProofs.RegisterStateRoot(root, 10, 1000)

	proof := FraudProof{
		Type:              FraudInvalidStateTransition,
		DisputedStateRoot: root,
		L2ChainID:         1,
		ChallengeBond:     MinChallengeBond,
		SubmittedAt:       500,
	}
	if err := b.SubmitFraudProof(proof); err != nil {
		t.Fatalf("SubmitFraudProof: %v", err)
	}
	// A second submission against the same disputed root must be rejected.
	if err := b.SubmitFraudProof(proof); err == nil {
		t.Fatalf("expected rejection of a duplicate fraud proof")
	}
}

func TestBridgeWiresSlashingToChallengerCredit(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}

	var slashedAmount Amount
	cfg := stubBridgeConfig(seqs)
	cfg.OnSlash = func(_ Address, _ FraudProofType, slashed Amount, _ Address, _ Amount) { slashedAmount = slashed }
	b, err := NewBridge(cfg)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	sequencer := seqs[0].addr
	challenger := addrFromByte(9)
	b.FraudProofs.SetStake(sequencer, 1000)

	root := canonicalHash([]byte("bad-root"))
	prevRoot := canonicalHash([]byte("prev-root"))
	b.FraudProofs.RegisterStateRoot(root, 10, 1000)

	proof := FraudProof{
		Type:              FraudInvalidStateTransition,
		DisputedStateRoot: root,
		PreviousStateRoot: prevRoot,
		L2ChainID:         1,
		ChallengeBond:     MinChallengeBond,
		SubmittedAt:       500,
		SequencerAddress:  sequencer,
		ChallengerAddress: challenger,
	}
	if err := b.SubmitFraudProof(proof); err != nil {
		t.Fatalf("SubmitFraudProof: %v", err)
	}

	oracle := func(tx *L2Transaction, preRoot Hash) (bool, uint64, Hash, error) {
		return true, 0, canonicalHash([]byte("different-root")), nil
	}
	outcome, err := b.FraudProofs.VerifyFraudProof(proof, oracle)
	if err != nil {
		t.Fatalf("VerifyFraudProof: %v", err)
	}
	if outcome != FraudValid {
		t.Fatalf("outcome = %v, want FraudValid", outcome)
	}
	if slashedAmount == 0 {
		t.Fatalf("expected a non-zero slash to reach OnSlash")
	}
	wantReward := slashedAmount * ChallengerRewardPercent / 100
	if got := b.State.Get(challenger).Balance; got != wantReward {
		t.Fatalf("challenger balance = %d, want %d", got, wantReward)
	}
}

func TestBridgeValidateTimestampFlagsSequencerOnce(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	b, err := NewBridge(stubBridgeConfig(seqs))
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	sequencer := seqs[0].addr
	for i := 0; i < DefaultConsecutiveViolationsThreshold; i++ {
		// timestamp <= prevTimestamp is a monotonicity violation every call.
		_ = b.ValidateTimestamp(sequencer, 100, 200, 200, 100)
	}
	if !b.Timestamps.Behavior(sequencer).FlaggedForManipulation {
		t.Fatalf("expected sequencer to be flagged after repeated violations")
	}
}

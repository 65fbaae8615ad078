package core

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

type testSequencer struct {
	addr Address
	priv *btcec.PrivateKey
}

func newTestSequencer(t *testing.T, seed byte) testSequencer {
	t.Helper()
	var keyBytes [32]byte
	keyBytes[31] = seed + 1
	priv := btcec.PrivKeyFromBytes(keyBytes[:])
	return testSequencer{addr: PubKeyToAddress(priv.PubKey()), priv: priv}
}

func newTestConsensusManager(active []testSequencer, onReached ReachedCallback, onFailed FailedCallback) *MintConsensusManager {
	byAddr := make(map[Address]testSequencer, len(active))
	for _, s := range active {
		byAddr[s.addr] = s
	}
	return NewMintConsensusManager(
		func() int { return len(active) },
		func(addr Address) bool { _, ok := byAddr[addr]; return ok },
		func(addr Address) (*btcec.PublicKey, bool) {
			s, ok := byAddr[addr]
			if !ok {
				return nil, false
			}
			return s.priv.PubKey(), true
		},
		onReached,
		onFailed,
	)
}

func confirmFrom(s testSequencer, l1TxHash Hash, recipient Address, amount Amount) MintConfirmation {
	conf := MintConfirmation{L1TxHash: l1TxHash, L2Recipient: recipient, Amount: amount, Timestamp: 1}
	return SignMintConfirmation(s.priv, conf)
}

func TestMintConsensusTwoOfThreeReaches(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	var reachedCount int
	m := newTestConsensusManager(seqs, func(Hash, BurnData, Address, Amount) { reachedCount++ }, nil)

	txHash := canonicalHash([]byte("burn1"))
	recipient := addrFromByte(9)
	burn := BurnData{ChainID: 1, Amount: 100}

	if err := m.SubmitConfirmation(confirmFrom(seqs[0], txHash, recipient, 100), burn); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	if status, _ := m.Status(txHash); status != MintPending {
		t.Fatalf("status after 1/3 = %s, want PENDING", status)
	}

	if err := m.SubmitConfirmation(confirmFrom(seqs[1], txHash, recipient, 100), burn); err != nil {
		t.Fatalf("second confirmation: %v", err)
	}
	if status, _ := m.Status(txHash); status != MintReached {
		t.Fatalf("status after 2/3 = %s, want REACHED", status)
	}
	if reachedCount != 1 {
		t.Fatalf("onReached fired %d times, want 1", reachedCount)
	}

	// Third confirmation is a no-op; callback must not fire again.
	if err := m.SubmitConfirmation(confirmFrom(seqs[2], txHash, recipient, 100), burn); err != nil {
		t.Fatalf("third confirmation: %v", err)
	}
	if reachedCount != 1 {
		t.Fatalf("onReached fired again on the third confirmation: %d", reachedCount)
	}
}

func TestMintConsensusNeverReachesWithTwoActive(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2)}
	var reachedCount int
	m := newTestConsensusManager(seqs, func(Hash, BurnData, Address, Amount) { reachedCount++ }, nil)

	txHash := canonicalHash([]byte("burn2"))
	burn := BurnData{ChainID: 1, Amount: 50}
	for _, s := range seqs {
		if err := m.SubmitConfirmation(confirmFrom(s, txHash, addrFromByte(1), 50), burn); err != nil {
			t.Fatalf("confirmation: %v", err)
		}
	}
	if reachedCount != 0 {
		t.Fatalf("consensus must never reach with only 2 active sequencers")
	}
	if status, _ := m.Status(txHash); status != MintPending {
		t.Fatalf("status = %s, want PENDING", status)
	}
}

func TestMintConsensusDuplicateConfirmationIsNoOp(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	m := newTestConsensusManager(seqs, nil, nil)
	txHash := canonicalHash([]byte("burn3"))
	burn := BurnData{ChainID: 1, Amount: 10}

	conf := confirmFrom(seqs[0], txHash, addrFromByte(1), 10)
	if err := m.SubmitConfirmation(conf, burn); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := m.SubmitConfirmation(conf, burn); err != nil {
		t.Fatalf("duplicate should be a no-op, not an error: %v", err)
	}
	if status, _ := m.Status(txHash); status != MintPending {
		t.Fatalf("duplicate confirmation must not advance status, got %s", status)
	}
}

func TestMintConsensusRejectsUnknownSequencer(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	m := newTestConsensusManager(seqs, nil, nil)
	stranger := newTestSequencer(t, 99)
	conf := confirmFrom(stranger, canonicalHash([]byte("burn4")), addrFromByte(1), 10)
	if err := m.SubmitConfirmation(conf, BurnData{ChainID: 1, Amount: 10}); err == nil {
		t.Fatalf("expected rejection of a confirmation from an unregistered sequencer")
	}
}

func TestMintConsensusTimeout(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	var failedReason error
	m := newTestConsensusManager(seqs, nil, func(_ Hash, reason error) { failedReason = reason })

	txHash := canonicalHash([]byte("burn5"))
	if err := m.SubmitConfirmation(confirmFrom(seqs[0], txHash, addrFromByte(1), 10), BurnData{ChainID: 1, Amount: 10}); err != nil {
		t.Fatalf("confirmation: %v", err)
	}

	m.ProcessTimeouts(time.Now())
	if status, _ := m.Status(txHash); status != MintPending {
		t.Fatalf("should not time out before the deadline, got %s", status)
	}

	m.ProcessTimeouts(time.Now().Add(MintConsensusTimeout + time.Second))
	if status, _ := m.Status(txHash); status != MintFailed {
		t.Fatalf("status after timeout = %s, want FAILED", status)
	}
	if failedReason == nil {
		t.Fatalf("expected onFailed to fire with a reason")
	}
}

func TestMintConsensusMarkMinted(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	m := newTestConsensusManager(seqs, nil, nil)
	txHash := canonicalHash([]byte("burn6"))
	burn := BurnData{ChainID: 1, Amount: 10}

	if err := m.MarkMinted(txHash); err == nil {
		t.Fatalf("MarkMinted on an untracked burn should fail")
	}

	m.SubmitConfirmation(confirmFrom(seqs[0], txHash, addrFromByte(1), 10), burn)
	if err := m.MarkMinted(txHash); err == nil {
		t.Fatalf("MarkMinted before REACHED should fail")
	}

	m.SubmitConfirmation(confirmFrom(seqs[1], txHash, addrFromByte(1), 10), burn)
	if err := m.MarkMinted(txHash); err != nil {
		t.Fatalf("MarkMinted after REACHED: %v", err)
	}
	if status, _ := m.Status(txHash); status != MintMinted {
		t.Fatalf("status = %s, want MINTED", status)
	}
}

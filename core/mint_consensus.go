package core

// mint_consensus.go – sequencer mint-consensus manager (component H).
//
// Routes signed MintConfirmations by L1 tx hash into a per-burn consensus
// state, grounded on the same "map of address to vote, tally on each
// insert" shape as the multi-party approval tracking in
// loanpool_approval_process.go, generalized here to a 2/3-of-active
// threshold with a hard timeout instead of a fixed approver count.

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

// MintConsensusTimeout is the hard deadline after which a pending consensus
// round is declared failed.
const MintConsensusTimeout = 600 * time.Second

// minActiveSequencersForConsensus is the minimum number of active
// sequencers required for consensus to ever be reachable.
const minActiveSequencersForConsensus = 3

// maxTrackedConsensusStates bounds the retained consensus-state set.
const maxTrackedConsensusStates = 10_000

// MintConsensusStatus is the lifecycle state of one burn's consensus round.
type MintConsensusStatus int

const (
	MintPending MintConsensusStatus = iota
	MintReached
	MintMinted
	MintFailed
	MintRejected
)

func (s MintConsensusStatus) String() string {
	switch s {
	case MintPending:
		return "PENDING"
	case MintReached:
		return "REACHED"
	case MintMinted:
		return "MINTED"
	case MintFailed:
		return "FAILED"
	case MintRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// MintConfirmation is one sequencer's signed attestation that a burn is
// valid and should be minted.
type MintConfirmation struct {
	L1TxHash         Hash
	L2Recipient      Address
	Amount           Amount
	SequencerAddress Address
	Signature        []byte
	Timestamp        int64
}

// SigningHash returns the hash the confirmation's signature covers, which
// excludes the signature field itself.
func (c MintConfirmation) SigningHash() Hash {
	var buf bytes.Buffer
	buf.Write(c.L1TxHash[:])
	buf.Write(c.L2Recipient[:])
	putInt64LE(&buf, c.Amount)
	buf.Write(c.SequencerAddress[:])
	putInt64LE(&buf, c.Timestamp)
	return canonicalHash(buf.Bytes())
}

// SignMintConfirmation fills in Signature by signing c's signing hash with
// priv, deriving SequencerAddress from the same key.
func SignMintConfirmation(priv *btcec.PrivateKey, c MintConfirmation) MintConfirmation {
	c.SequencerAddress = PubKeyToAddress(priv.PubKey())
	c.Signature = SignCompact(priv, c.SigningHash())
	return c
}

// MintConsensusState is the in-progress (or concluded) consensus round for
// a single burn.
type MintConsensusState struct {
	L1TxHash      Hash
	Burn          BurnData
	Confirmations map[Address]MintConfirmation
	FirstSeenTime time.Time
	Status        MintConsensusStatus
}

// SequencerCountGetter returns the number of currently active sequencers.
type SequencerCountGetter func() int

// SequencerVerifier reports whether addr is a known, active sequencer.
type SequencerVerifier func(addr Address) bool

// SequencerPubKeyGetter returns the registered public key for a sequencer
// address, if any.
type SequencerPubKeyGetter func(addr Address) (*btcec.PublicKey, bool)

// ReachedCallback fires exactly once per burn, the moment consensus is
// reached.
type ReachedCallback func(l1TxHash Hash, burn BurnData, recipient Address, amount Amount)

// FailedCallback fires exactly once per burn, the moment its consensus
// round times out.
type FailedCallback func(l1TxHash Hash, reason error)

// MintConsensusManager collects per-sequencer confirmations for detected
// burns and declares consensus reached once 2/3 of the active sequencer set
// has signed off.
type MintConsensusManager struct {
	mu sync.Mutex

	sequencerCount  SequencerCountGetter
	verifySequencer SequencerVerifier
	sequencerPubKey SequencerPubKeyGetter
	onReached       ReachedCallback
	onFailed        FailedCallback

	states map[Hash]*MintConsensusState
}

// NewMintConsensusManager constructs a manager bound to its sequencer-set
// collaborators and result callbacks.
func NewMintConsensusManager(sequencerCount SequencerCountGetter, verifySequencer SequencerVerifier, sequencerPubKey SequencerPubKeyGetter, onReached ReachedCallback, onFailed FailedCallback) *MintConsensusManager {
	return &MintConsensusManager{
		sequencerCount:  sequencerCount,
		verifySequencer: verifySequencer,
		sequencerPubKey: sequencerPubKey,
		onReached:       onReached,
		onFailed:        onFailed,
		states:          make(map[Hash]*MintConsensusState),
	}
}

// thresholdFor returns ceil(2*active/3), the number of confirmations
// required for consensus given an active sequencer count.
func thresholdFor(active int) int {
	return (2*active + 2) / 3
}

// SubmitConfirmation verifies and records one sequencer's confirmation for
// burn, opening a new consensus round on first sight of l1TxHash. Unknown
// senders and bad signatures are rejected with an error and not recorded;
// repeat confirmations from a sequencer that already voted are idempotent
// no-ops.
func (m *MintConsensusManager) SubmitConfirmation(conf MintConfirmation, burn BurnData) error {
	if !m.verifySequencer(conf.SequencerAddress) {
		return fmt.Errorf("%w: %s", ErrUnknownSequencer, conf.SequencerAddress)
	}
	if _, ok := m.sequencerPubKey(conf.SequencerAddress); !ok {
		return fmt.Errorf("%w: no public key registered for %s", ErrUnknownSequencer, conf.SequencerAddress)
	}
	if !VerifyCompactSignature(conf.Signature, conf.SigningHash(), conf.SequencerAddress) {
		return fmt.Errorf("%w: confirmation signature invalid", ErrInvalidSignature)
	}

	var reached bool
	var reachedBurn BurnData
	var reachedRecipient Address
	var reachedAmount Amount

	m.mu.Lock()
	state, exists := m.states[conf.L1TxHash]
	if !exists {
		state = &MintConsensusState{
			L1TxHash:      conf.L1TxHash,
			Burn:          burn,
			Confirmations: make(map[Address]MintConfirmation),
			FirstSeenTime: time.Now(),
			Status:        MintPending,
		}
		m.states[conf.L1TxHash] = state
	}

	if state.Status == MintPending {
		if _, already := state.Confirmations[conf.SequencerAddress]; !already {
			state.Confirmations[conf.SequencerAddress] = conf
		}

		active := m.sequencerCount()
		if active >= minActiveSequencersForConsensus && len(state.Confirmations) >= thresholdFor(active) {
			state.Status = MintReached
			reached = true
			reachedBurn = state.Burn
			reachedRecipient = conf.L2Recipient
			reachedAmount = conf.Amount
		}
	}
	m.pruneLocked()
	m.mu.Unlock()

	if reached && m.onReached != nil {
		m.onReached(conf.L1TxHash, reachedBurn, reachedRecipient, reachedAmount)
	}
	return nil
}

// MarkMinted transitions a REACHED state to MINTED once the corresponding
// BURN_MINT transaction has been included in an L2 block.
func (m *MintConsensusManager) MarkMinted(l1TxHash Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[l1TxHash]
	if !ok {
		return fmt.Errorf("%w: no consensus state for %s", ErrNotFound, l1TxHash)
	}
	if state.Status != MintReached {
		return fmt.Errorf("%w: state is %s, want REACHED", ErrInvalidState, state.Status)
	}
	state.Status = MintMinted
	return nil
}

// Status returns the current consensus state for l1TxHash, if tracked.
func (m *MintConsensusManager) Status(l1TxHash Hash) (MintConsensusStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[l1TxHash]
	if !ok {
		return 0, false
	}
	return state.Status, true
}

// ProcessTimeouts fails every PENDING round whose FirstSeenTime is more
// than MintConsensusTimeout in the past, firing the failed-callback once per
// round. Intended to be invoked periodically by an external scheduler.
func (m *MintConsensusManager) ProcessTimeouts(now time.Time) {
	var timedOut []Hash

	m.mu.Lock()
	for hash, state := range m.states {
		if state.Status == MintPending && now.Sub(state.FirstSeenTime) > MintConsensusTimeout {
			state.Status = MintFailed
			timedOut = append(timedOut, hash)
		}
	}
	m.mu.Unlock()

	if m.onFailed == nil {
		return
	}
	for _, hash := range timedOut {
		m.onFailed(hash, fmt.Errorf("%w: consensus timed out for %s", ErrConsensusTimedOut, hash))
	}
}

// pruneLocked discards the oldest states once the tracked set exceeds
// maxTrackedConsensusStates. Caller must hold m.mu.
func (m *MintConsensusManager) pruneLocked() {
	if len(m.states) <= maxTrackedConsensusStates {
		return
	}
	type entry struct {
		hash Hash
		seen time.Time
	}
	entries := make([]entry, 0, len(m.states))
	for hash, state := range m.states {
		entries = append(entries, entry{hash: hash, seen: state.FirstSeenTime})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seen.Before(entries[j].seen) })
	excess := len(entries) - maxTrackedConsensusStates
	for i := 0; i < excess; i++ {
		delete(m.states, entries[i].hash)
	}
}

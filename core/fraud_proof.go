package core

// fraud_proof.go – single-round fraud-proof submission, verification, and
// sequencer slashing (component K, single-round half).
//
// The state-root challenge-window registry and the stake ledger both follow
// the same mutex-guarded-map shape as burn_registry.go; slashing percentages
// are a plain lookup table rather than a rule engine, matching how
// loanpool_config.go keys fixed numeric parameters by a small enum.

import (
	"fmt"
	"sync"
)

// Challenge-window and bond constants.
const (
	MinChallengeBond       Amount = 10 * 100_000_000
	MaxRelevantTransactions        = 100
	MaxStateProofSize             = 100 * 1024
	MaxExecutionTraceSize          = 1024 * 1024
	ChallengerRewardPercent        = 50
)

// MinSequencerStakeFloor is the stake level slashing will not reduce a
// sequencer below, unless its stake is already at or under the floor.
const MinSequencerStakeFloor Amount = 1 * 100_000_000

// FraudProofType classifies the violation a fraud proof alleges.
type FraudProofType int

const (
	FraudDoubleSpend FraudProofType = iota
	FraudInvalidStateTransition
	FraudDataWithholding
	FraudInvalidTransaction
	FraudInvalidSignature
	FraudTimestampManipulation
)

func (t FraudProofType) String() string {
	switch t {
	case FraudDoubleSpend:
		return "DOUBLE_SPEND"
	case FraudInvalidStateTransition:
		return "INVALID_STATE_TRANSITION"
	case FraudDataWithholding:
		return "DATA_WITHHOLDING"
	case FraudInvalidTransaction:
		return "INVALID_TRANSACTION"
	case FraudInvalidSignature:
		return "INVALID_SIGNATURE"
	case FraudTimestampManipulation:
		return "TIMESTAMP_MANIPULATION"
	default:
		return "UNKNOWN"
	}
}

// slashPercentByType is the fraction of a sequencer's stake removed when a
// fraud proof of the given type is upheld.
var slashPercentByType = map[FraudProofType]int{
	FraudDoubleSpend:            100,
	FraudInvalidStateTransition: 100,
	FraudDataWithholding:        75,
	FraudInvalidTransaction:     75,
	FraudInvalidSignature:       50,
	FraudTimestampManipulation:  50,
}

// FraudProofOutcome is the terminal result of verifying a submitted proof.
type FraudProofOutcome int

const (
	FraudPending FraudProofOutcome = iota
	FraudValid
	FraudInvalid
	FraudExpired
	FraudInsufficientBond
)

// FraudProof is a challenger's claim that a published state root is wrong.
type FraudProof struct {
	Type                 FraudProofType
	DisputedStateRoot    Hash
	DisputedBlockNumber  uint64
	PreviousStateRoot    Hash
	L2ChainID            uint64
	RelevantTransactions []*L2Transaction
	StateProof           []byte
	ExecutionTrace       []byte
	ChallengerAddress    Address
	ChallengeBond        Amount
	ChallengerSignature  []byte
	SubmittedAt          int64
	SequencerAddress     Address
}

// ExecutionOracle re-executes a single transaction against preRoot and
// reports the resulting state root. It is the only way this package touches
// contract/VM execution.
type ExecutionOracle func(tx *L2Transaction, preRoot Hash) (ok bool, gasUsed uint64, postRoot Hash, err error)

// SlashCallback fires once per upheld fraud proof, after the stake ledger
// has been updated, so callers can credit the challenger and record a
// reputation penalty.
type SlashCallback func(sequencer Address, fraudType FraudProofType, slashedAmount Amount, challenger Address, challengerReward Amount)

type stateRootEntry struct {
	blockNumber uint64
	deadline    int64
}

// SlashRecord is one historical slashing event against a sequencer.
type SlashRecord struct {
	Type   FraudProofType
	Amount Amount
	At     int64
}

// FraudProofSystem registers state-root challenge windows, admits and
// verifies fraud proofs against them, and owns the sequencer stake ledger
// that slashing draws from.
type FraudProofSystem struct {
	mu sync.Mutex

	localChainID uint64
	onSlash      SlashCallback

	stateRoots map[Hash]stateRootEntry
	proofs     map[Hash]bool // disputed state root -> a proof has been submitted

	stakes      map[Address]Amount
	slashRecord map[Address][]SlashRecord
}

// NewFraudProofSystem constructs an empty system for the given local chain.
func NewFraudProofSystem(localChainID uint64, onSlash SlashCallback) *FraudProofSystem {
	return &FraudProofSystem{
		localChainID: localChainID,
		onSlash:      onSlash,
		stateRoots:   make(map[Hash]stateRootEntry),
		proofs:       make(map[Hash]bool),
		stakes:       make(map[Address]Amount),
		slashRecord:  make(map[Address][]SlashRecord),
	}
}

// RegisterStateRoot opens root's challenge window, admissible up to and
// including deadline.
func (f *FraudProofSystem) RegisterStateRoot(root Hash, blockNumber uint64, deadline int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateRoots[root] = stateRootEntry{blockNumber: blockNumber, deadline: deadline}
}

// SetStake sets a sequencer's staked amount, used by tests and by the
// registration flow that first establishes a sequencer's bond.
func (f *FraudProofSystem) SetStake(sequencer Address, amount Amount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stakes[sequencer] = amount
}

// Stake returns a sequencer's current staked amount.
func (f *FraudProofSystem) Stake(sequencer Address) Amount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stakes[sequencer]
}

// SubmitFraudProof admits proof if its bond meets the minimum, its chain id
// matches, and its disputed root's challenge window is still open at
// proof.SubmittedAt. Only one proof may be outstanding per disputed root.
func (f *FraudProofSystem) SubmitFraudProof(proof FraudProof) error {
	if proof.ChallengeBond < MinChallengeBond {
		return fmt.Errorf("%w: bond %d below minimum %d", ErrBondTooLow, proof.ChallengeBond, MinChallengeBond)
	}
	if proof.L2ChainID != f.localChainID {
		return fmt.Errorf("%w: proof chain %d, local chain %d", ErrUnknownChain, proof.L2ChainID, f.localChainID)
	}
	if len(proof.RelevantTransactions) > MaxRelevantTransactions {
		return fmt.Errorf("%w: %d transactions exceeds max %d", ErrInvalidTransaction, len(proof.RelevantTransactions), MaxRelevantTransactions)
	}
	if len(proof.StateProof) > MaxStateProofSize {
		return fmt.Errorf("%w: state proof %d bytes exceeds %d", ErrProofTooLarge, len(proof.StateProof), MaxStateProofSize)
	}
	if len(proof.ExecutionTrace) > MaxExecutionTraceSize {
		return fmt.Errorf("%w: execution trace %d bytes exceeds %d", ErrProofTooLarge, len(proof.ExecutionTrace), MaxExecutionTraceSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.stateRoots[proof.DisputedStateRoot]
	if !ok {
		return fmt.Errorf("%w: state root %s was never registered", ErrChallengeWindowClosed, proof.DisputedStateRoot)
	}
	if proof.SubmittedAt > entry.deadline {
		return fmt.Errorf("%w: submitted at %d, deadline was %d", ErrChallengeWindowClosed, proof.SubmittedAt, entry.deadline)
	}
	if f.proofs[proof.DisputedStateRoot] {
		return fmt.Errorf("%w: %s", ErrDuplicateFraudProof, proof.DisputedStateRoot)
	}

	f.proofs[proof.DisputedStateRoot] = true
	return nil
}

// VerifyFraudProof re-executes proof.RelevantTransactions starting from
// proof.PreviousStateRoot via oracle. The proof is VALID iff the recomputed
// root differs from proof.DisputedStateRoot. A VALID verdict slashes the
// disputed sequencer and fires onSlash.
func (f *FraudProofSystem) VerifyFraudProof(proof FraudProof, oracle ExecutionOracle) (FraudProofOutcome, error) {
	root := proof.PreviousStateRoot
	for i, tx := range proof.RelevantTransactions {
		ok, _, postRoot, err := oracle(tx, root)
		if err != nil {
			return FraudPending, fmt.Errorf("re-execution failed at transaction %d: %w", i, err)
		}
		if !ok {
			return FraudPending, fmt.Errorf("re-execution rejected transaction %d", i)
		}
		root = postRoot
	}

	if root == proof.DisputedStateRoot {
		return FraudInvalid, nil
	}

	slashed := f.slash(proof.SequencerAddress, proof.Type)
	reward := slashed * ChallengerRewardPercent / 100
	if f.onSlash != nil {
		f.onSlash(proof.SequencerAddress, proof.Type, slashed, proof.ChallengerAddress, reward)
	}
	return FraudValid, nil
}

// slash reduces sequencer's stake by the percentage associated with
// fraudType, never below MinSequencerStakeFloor unless the stake already sat
// at or under it, and appends a SlashRecord.
func (f *FraudProofSystem) slash(sequencer Address, fraudType FraudProofType) Amount {
	f.mu.Lock()
	defer f.mu.Unlock()

	stake := f.stakes[sequencer]
	pct := slashPercentByType[fraudType]
	proposed := stake * Amount(pct) / 100

	var slashed Amount
	if stake <= MinSequencerStakeFloor {
		slashed = stake
	} else if stake-proposed < MinSequencerStakeFloor {
		slashed = stake - MinSequencerStakeFloor
	} else {
		slashed = proposed
	}

	f.stakes[sequencer] = stake - slashed
	f.slashRecord[sequencer] = append(f.slashRecord[sequencer], SlashRecord{Type: fraudType, Amount: slashed})
	return slashed
}

// SlashHistory returns every slashing event recorded against sequencer.
func (f *FraudProofSystem) SlashHistory(sequencer Address) []SlashRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SlashRecord, len(f.slashRecord[sequencer]))
	copy(out, f.slashRecord[sequencer])
	return out
}

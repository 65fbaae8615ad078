package core

// composition.go – explicit composition root wiring every component of one
// L2 chain's bridge/consensus stack together, in place of process-wide
// singleton accessors. Grounded on governance_reputation_voting.go's
// wire-through-callbacks idiom, generalized from per-call wiring into one
// constructor that owns every component's lifetime, and on
// rollup_management.go's thin administrative-glue shape for the two
// metrics-counting facade methods that have no natural callback seam.

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ignis-network/ignis-core/pkg/metrics"
	"github.com/ignis-network/ignis-core/pkg/utils"
)

// pendingBurn carries the L1 block context a detected burn was validated
// against, held between the monitor's validation callback and the mint
// consensus manager's reached/failed callback.
type pendingBurn struct {
	l1BlockHash   Hash
	l1BlockNumber uint64
}

// BridgeConfig supplies the collaborators only a caller can provide (L1
// access, the active sequencer set) plus optional observer callbacks. Every
// *Callback field is optional; Bridge always drives its own metrics and
// ledgers regardless of whether a caller also observes the same events.
type BridgeConfig struct {
	LocalChainID uint32

	TxFetcher       TxFetcher
	Confirmations   ConfirmationGetter
	BlockInfo       BlockInfoGetter
	SequencerCount  SequencerCountGetter
	VerifySequencer SequencerVerifier
	SequencerPubKey SequencerPubKeyGetter

	OnBurnValidated ValidationCallback
	OnMintReached   ReachedCallback
	OnMintFailed    FailedCallback
	OnSlash         SlashCallback
	OnBlockFee      BlockFeeEventCallback
}

// Bridge bundles one L2 chain's full bridge/consensus stack, replacing the
// source's process-wide singleton accessors.
type Bridge struct {
	Metrics *metrics.Set

	State         *StateManager
	BurnRegistry  *BurnRegistry
	Validator     *BurnValidator
	Monitor       *L1ChainMonitor
	MintConsensus *MintConsensusManager
	Timestamps    *TimestampValidator
	FraudProofs   *FraudProofSystem
	Interactive   *InteractiveProofManager
	Fees          *FeeDistributor
	BlockFees     *BlockFeeIntegration
	Reputation    *ReputationManager
	Registry      *L2Registry

	flagMu            sync.Mutex
	flaggedSequencers map[Address]bool
}

// NewBridge wires a complete stack together. All of cfg's non-callback
// collaborators must be non-nil; they are the seams only the embedding
// process can fill (L1 access and sequencer-set membership).
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.TxFetcher == nil || cfg.Confirmations == nil || cfg.BlockInfo == nil {
		return nil, utils.Wrap(ErrInvalidState, "composition root: burn validator collaborators must not be nil")
	}
	if cfg.SequencerCount == nil || cfg.VerifySequencer == nil || cfg.SequencerPubKey == nil {
		return nil, utils.Wrap(ErrInvalidState, "composition root: sequencer-set collaborators must not be nil")
	}

	m := metrics.NewSet()
	state := NewStateManager()
	burnReg := NewBurnRegistry()
	reputation := NewReputationManager()
	registry := NewL2Registry()
	timestamps := NewTimestampValidator()
	interactive := NewInteractiveProofManager()

	validator := NewBurnValidator(cfg.LocalChainID, cfg.TxFetcher, cfg.Confirmations, cfg.BlockInfo, burnReg.IsProcessed)

	var pendingMu sync.Mutex
	pending := make(map[Hash]pendingBurn)

	monitor := NewL1ChainMonitor(cfg.LocalChainID, validator, func(l1TxHash Hash, burn BurnData, blockHash Hash, blockNumber uint64) {
		m.IncBurnsDetected()
		pendingMu.Lock()
		pending[l1TxHash] = pendingBurn{l1BlockHash: blockHash, l1BlockNumber: blockNumber}
		pendingMu.Unlock()
		if cfg.OnBurnValidated != nil {
			cfg.OnBurnValidated(l1TxHash, burn, blockHash, blockNumber)
		}
	})

	mintConsensus := NewMintConsensusManager(cfg.SequencerCount, cfg.VerifySequencer, cfg.SequencerPubKey,
		func(l1TxHash Hash, burn BurnData, recipient Address, amount Amount) {
			m.IncMintConsensusReached()

			pendingMu.Lock()
			ctx := pending[l1TxHash]
			delete(pending, l1TxHash)
			pendingMu.Unlock()

			if err := state.Credit(recipient, amount); err != nil {
				logrus.WithError(err).WithField("component", "bridge").Error("crediting mint recipient failed")
			}
			rec := BurnRecord{
				L1TxHash:      l1TxHash,
				L1BlockNumber: ctx.l1BlockNumber,
				L1BlockHash:   ctx.l1BlockHash,
				L2Recipient:   recipient,
				Amount:        amount,
			}
			if err := burnReg.RecordBurn(rec); err != nil {
				logrus.WithError(err).WithField("component", "bridge").Warn("recording minted burn failed")
			}
			if cfg.OnMintReached != nil {
				cfg.OnMintReached(l1TxHash, burn, recipient, amount)
			}
		},
		func(l1TxHash Hash, reason error) {
			m.IncMintConsensusFailed()
			pendingMu.Lock()
			delete(pending, l1TxHash)
			pendingMu.Unlock()
			if cfg.OnMintFailed != nil {
				cfg.OnMintFailed(l1TxHash, reason)
			}
		},
	)

	fraudProofs := NewFraudProofSystem(uint64(cfg.LocalChainID), func(sequencer Address, fraudType FraudProofType, slashedAmount Amount, challenger Address, challengerReward Amount) {
		m.IncSequencersSlashed()
		m.IncFraudProofsUpheld()
		if err := state.Credit(challenger, challengerReward); err != nil {
			logrus.WithError(err).WithField("component", "bridge").Error("crediting fraud-proof challenger failed")
		}
		if cfg.OnSlash != nil {
			cfg.OnSlash(sequencer, fraudType, slashedAmount, challenger, challengerReward)
		}
	})

	fees := NewFeeDistributor(m)
	blockFees := NewBlockFeeIntegration(state, fees, registry, cfg.OnBlockFee, m)

	return &Bridge{
		Metrics:           m,
		State:             state,
		BurnRegistry:      burnReg,
		Validator:         validator,
		Monitor:           monitor,
		MintConsensus:     mintConsensus,
		Timestamps:        timestamps,
		FraudProofs:       fraudProofs,
		Interactive:       interactive,
		Fees:              fees,
		BlockFees:         blockFees,
		Reputation:        reputation,
		Registry:          registry,
		flaggedSequencers: make(map[Address]bool),
	}, nil
}

// SubmitFraudProof forwards to the fraud-proof system and counts the
// submission. SubmitFraudProof itself has no event seam to count from, so
// the composition root counts at its own entry point instead.
func (b *Bridge) SubmitFraudProof(proof FraudProof) error {
	if err := b.FraudProofs.SubmitFraudProof(proof); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	b.Metrics.IncFraudProofsSubmitted()
	return nil
}

// ValidateTimestamp forwards to the timestamp validator and counts the
// sequencer's transition into the flagged state exactly once.
func (b *Bridge) ValidateTimestamp(sequencer Address, timestamp, prevTimestamp, wallClock, l1Reference int64) error {
	err := b.Timestamps.Validate(sequencer, timestamp, prevTimestamp, wallClock, l1Reference)
	if b.Timestamps.Behavior(sequencer).FlaggedForManipulation {
		b.flagMu.Lock()
		if !b.flaggedSequencers[sequencer] {
			b.flaggedSequencers[sequencer] = true
			b.Metrics.IncSequencersFlagged()
		}
		b.flagMu.Unlock()
	}
	return err
}

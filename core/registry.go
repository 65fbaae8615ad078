package core

// registry.go – per-chain deployment descriptor registry (component O).
//
// Grounded on IntegrationRegistry's mutex-guarded-map-of-descriptors shape
// (integration_registry.go: register/remove/list over plain maps) and on
// rollup_management.go's targeted status-update methods (PauseAggregator /
// ResumeAggregator each touching one field under lock rather than exposing
// a generic write), generalized to a full chain descriptor and its
// BOOTSTRAPPING -> ACTIVE -> {PAUSED, EMERGENCY, DEPRECATED} lifecycle.
// Chain-ID generation hashes (name, deployer, timestamp, counter) into the
// chain-ID range and retries with an incremented salt on collision.

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChainStatus is the lifecycle state of a registered L2 chain.
type ChainStatus int

const (
	ChainBootstrapping ChainStatus = iota
	ChainActive
	ChainPaused
	ChainEmergency
	ChainDeprecated
)

func (s ChainStatus) String() string {
	switch s {
	case ChainBootstrapping:
		return "BOOTSTRAPPING"
	case ChainActive:
		return "ACTIVE"
	case ChainPaused:
		return "PAUSED"
	case ChainEmergency:
		return "EMERGENCY"
	case ChainDeprecated:
		return "DEPRECATED"
	default:
		return "UNKNOWN"
	}
}

// Deployment parameter bounds.
const (
	MinChainNameLength = 3
	MaxChainNameLength = 64

	MinBlockTimeSeconds = 1
	MaxBlockTimeSeconds = 60

	MinChainGasLimit = MinTxGasLimit
	MaxChainGasLimit = MaxTxGasLimit

	MinChallengePeriodSeconds = 3600
	MaxChallengePeriodSeconds = 14 * 24 * 3600

	MinSequencerCount = 3

	// MinDeployerStake is the minimum stake a deployer must post to
	// register a new chain.
	MinDeployerStake Amount = 1000 * 100_000_000

	maxChainIDGenerationAttempts = 16
)

// ChainIDRange bounds the generated 32-bit L2 chain IDs (the burn payload's
// chainId field is u32).
const (
	ChainIDRangeLow  uint32 = 1000
	ChainIDRangeHigh uint32 = 0xFFFFFFFE
)

// ChainParams holds a registered chain's immutable deployment parameters.
type ChainParams struct {
	BlockTimeSeconds       int
	GasLimit               uint64
	ChallengePeriodSeconds int64
	MinSequencers          int
}

// Validate checks params against the deployment-parameter bounds.
func (p ChainParams) Validate() error {
	if p.BlockTimeSeconds < MinBlockTimeSeconds || p.BlockTimeSeconds > MaxBlockTimeSeconds {
		return fmt.Errorf("%w: block time %ds out of [%d,%d]", ErrInvalidState, p.BlockTimeSeconds, MinBlockTimeSeconds, MaxBlockTimeSeconds)
	}
	if p.GasLimit < MinChainGasLimit || p.GasLimit > MaxChainGasLimit {
		return fmt.Errorf("%w: gas limit %d out of [%d,%d]", ErrInvalidState, p.GasLimit, MinChainGasLimit, MaxChainGasLimit)
	}
	if p.ChallengePeriodSeconds < MinChallengePeriodSeconds || p.ChallengePeriodSeconds > MaxChallengePeriodSeconds {
		return fmt.Errorf("%w: challenge period %ds out of [%d,%d]", ErrInvalidState, p.ChallengePeriodSeconds, MinChallengePeriodSeconds, MaxChallengePeriodSeconds)
	}
	if p.MinSequencers < MinSequencerCount {
		return fmt.Errorf("%w: min sequencers %d below %d", ErrInvalidState, p.MinSequencers, MinSequencerCount)
	}
	return nil
}

// ChainDescriptor is the full record of a registered L2 chain.
type ChainDescriptor struct {
	ChainID      uint32
	DeploymentID string
	Name         string
	Deployer     Address
	Params       ChainParams
	Status       ChainStatus
	StateRoot    Hash
	TVL          Amount
	CreatedAt    int64
}

// L2Registry holds the deployment descriptor for every registered L2 chain.
type L2Registry struct {
	mu sync.RWMutex

	byChainID map[uint32]*ChainDescriptor
	byName    map[string]uint32

	counter uint64
}

// NewL2Registry constructs an empty registry.
func NewL2Registry() *L2Registry {
	return &L2Registry{
		byChainID: make(map[uint32]*ChainDescriptor),
		byName:    make(map[string]uint32),
	}
}

// RegisterChain validates name/stake/parameters, deterministically
// generates a collision-free chain ID, and records a new BOOTSTRAPPING
// chain.
func (r *L2Registry) RegisterChain(name string, deployer Address, stake Amount, params ChainParams, now int64) (*ChainDescriptor, error) {
	if len(name) < MinChainNameLength || len(name) > MaxChainNameLength {
		return nil, fmt.Errorf("%w: chain name length %d out of [%d,%d]", ErrInvalidState, len(name), MinChainNameLength, MaxChainNameLength)
	}
	if stake < MinDeployerStake {
		return nil, fmt.Errorf("%w: deployer stake %d below minimum %d", ErrInvalidState, stake, MinDeployerStake)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("%w: chain name %q already registered", ErrAlreadyExists, name)
	}

	r.counter++
	chainID, err := r.generateChainIDLocked(name, deployer, now)
	if err != nil {
		return nil, err
	}

	desc := &ChainDescriptor{
		ChainID:      chainID,
		DeploymentID: uuid.New().String(),
		Name:         name,
		Deployer:     deployer,
		Params:       params,
		Status:       ChainBootstrapping,
		CreatedAt:    now,
	}
	r.byChainID[chainID] = desc
	r.byName[name] = chainID

	logrus.WithFields(logrus.Fields{
		"component": "l2_registry",
		"chain_id":  chainID,
		"name":      name,
	}).Info("chain registered")
	return desc, nil
}

// generateChainIDLocked derives a chain ID deterministically from
// (name, deployer, timestamp, r.counter), hashed into [ChainIDRangeLow,
// ChainIDRangeHigh], retrying with an incremented salt on collision. Caller
// must hold r.mu.
func (r *L2Registry) generateChainIDLocked(name string, deployer Address, now int64) (uint32, error) {
	span := ChainIDRangeHigh - ChainIDRangeLow

	for attempt := 0; attempt < maxChainIDGenerationAttempts; attempt++ {
		var buf []byte
		buf = append(buf, []byte(name)...)
		buf = append(buf, deployer[:]...)
		var tsBuf [8]byte
		for i := 0; i < 8; i++ {
			tsBuf[i] = byte(now >> (8 * i))
		}
		buf = append(buf, tsBuf[:]...)
		for i := 0; i < 8; i++ {
			buf = append(buf, byte((r.counter+uint64(attempt))>>(8*i)))
		}
		h := canonicalHash(buf)
		raw := uint32(h[0]) | uint32(h[1])<<8 | uint32(h[2])<<16 | uint32(h[3])<<24
		candidate := ChainIDRangeLow + raw%span

		if _, taken := r.byChainID[candidate]; !taken {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: exhausted %d chain id generation attempts", ErrInvalidState, maxChainIDGenerationAttempts)
}

// Get returns the descriptor for chainID, if registered.
func (r *L2Registry) Get(chainID uint32) (*ChainDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byChainID[chainID]
	if !ok {
		return nil, false
	}
	cp := *d
	return &cp, true
}

// UpdateChainStatus applies a status transition, rejecting transitions the
// lifecycle forbids: BOOTSTRAPPING -> ACTIVE -> {PAUSED, EMERGENCY,
// DEPRECATED}; DEPRECATED is terminal.
func (r *L2Registry) UpdateChainStatus(chainID uint32, status ChainStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byChainID[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}
	if d.Status == ChainDeprecated {
		return fmt.Errorf("%w: chain %d is deprecated, terminal", ErrInvalidState, chainID)
	}
	switch status {
	case ChainActive:
		if d.Status != ChainBootstrapping && d.Status != ChainPaused && d.Status != ChainEmergency {
			return fmt.Errorf("%w: cannot activate chain %d from %s", ErrInvalidState, chainID, d.Status)
		}
	case ChainPaused, ChainEmergency:
		if d.Status != ChainActive {
			return fmt.Errorf("%w: cannot move chain %d to %s from %s", ErrInvalidState, chainID, status, d.Status)
		}
	case ChainDeprecated:
		// any non-terminal state may deprecate.
	case ChainBootstrapping:
		return fmt.Errorf("%w: cannot return chain %d to BOOTSTRAPPING", ErrInvalidState, chainID)
	}
	d.Status = status
	return nil
}

// UpdateChainState records chainID's latest published state root.
func (r *L2Registry) UpdateChainState(chainID uint32, root Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byChainID[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}
	d.StateRoot = root
	return nil
}

// UpdateChainTVL adjusts chainID's tracked total-value-locked by delta
// (positive for deposits, negative for... nothing in this one-way model;
// delta is always >= 0 for mints, kept signed for symmetry with Amount).
func (r *L2Registry) UpdateChainTVL(chainID uint32, delta Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byChainID[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}
	d.TVL += delta
	return nil
}

// AcceptsDeposit reports whether chainID currently accepts new burn-mint
// deposits (ACTIVE or BOOTSTRAPPING).
func (r *L2Registry) AcceptsDeposit(chainID uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byChainID[chainID]
	if !ok {
		return false
	}
	return d.Status == ChainActive || d.Status == ChainBootstrapping
}

// AcceptsWithdrawal reports whether chainID currently accepts withdrawals.
// The burn-and-mint model is one-way and has no L2->L1 withdrawal path;
// this predicate exists only to mirror the "withdrawals blocked only in
// DEPRECATED" rule for any future in-protocol L2-internal transfer-out
// bookkeeping, and always returns false once a chain is deprecated.
func (r *L2Registry) AcceptsWithdrawal(chainID uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byChainID[chainID]
	if !ok {
		return false
	}
	return d.Status != ChainDeprecated
}

// ListByDeployer returns every chain descriptor registered by deployer.
func (r *L2Registry) ListByDeployer(deployer Address) []*ChainDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ChainDescriptor
	for _, d := range r.byChainID {
		if d.Deployer == deployer {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}

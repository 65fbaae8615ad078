package core

// interactive_proof.go – interactive bisection fraud-proof protocol
// (component K, interactive half).
//
// Session bookkeeping follows the same single-mutex-guarded-map shape as
// mint_consensus.go's per-burn state tracking, generalized to a two-party
// turn-taking game instead of a vote tally. Each turn narrows the disputed
// step interval around its midpoint until a single step remains, which is
// then checked directly against an execution oracle rather than trusting
// either party's claim.

import (
	"fmt"
	"sync"
	"time"
)

// MaxInteractiveSteps is the largest claimed execution trace a session may
// dispute.
const MaxInteractiveSteps = 256

// InteractiveStepDeadline is how long a party has to respond to the
// opposing party's last move before forfeiting.
const InteractiveStepDeadline = time.Hour

// SessionState is the lifecycle state of an interactive proof session.
type SessionState int

const (
	SessionInitiated SessionState = iota
	SessionChallengerTurn
	SessionSequencerTurn
	SessionResolved
	SessionTimeout
	SessionCancelled
)

func (s SessionState) String() string {
	switch s {
	case SessionInitiated:
		return "INITIATED"
	case SessionChallengerTurn:
		return "CHALLENGER_TURN"
	case SessionSequencerTurn:
		return "SEQUENCER_TURN"
	case SessionResolved:
		return "RESOLVED"
	case SessionTimeout:
		return "TIMEOUT"
	case SessionCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ProofStep is one bisection move: the midpoint step number examined, and
// the state-transition claimed for it.
type ProofStep struct {
	StepNumber    int
	PreStateRoot  Hash
	Instruction   []byte
	PostStateRoot Hash
}

// InteractiveProofSession is one in-progress (or concluded) bisection game
// between a challenger and a sequencer over a claimed execution trace.
type InteractiveProofSession struct {
	SessionID      Hash
	Challenger     Address
	Sequencer      Address
	State          SessionState
	Steps          []ProofStep
	SearchLower    int
	SearchUpper    int
	TotalSteps     int
	CreatedAt      time.Time
	LastActivityAt time.Time
	StepDeadline   time.Time
	Winner         Address

	// InvalidStepNumber is the step number proven invalid once Resolve
	// finds the challenger correct. It stays at NoInvalidStep until then,
	// including on a session the sequencer wins or one that has merely
	// converged but not yet been resolved.
	InvalidStepNumber int
}

// NoInvalidStep is InvalidStepNumber's value before any step has been
// proven invalid by Resolve.
const NoInvalidStep = -1

// Converged reports whether the search interval has narrowed to a single
// disputed step.
func (s *InteractiveProofSession) Converged() bool {
	return s.SearchUpper-s.SearchLower <= 1
}

// StepOracle verifies a single claimed execution step in isolation, used
// only for the final converged-step check.
type StepOracle func(preRoot Hash, instruction []byte) (postRoot Hash, err error)

// InteractiveProofManager tracks every open bisection session.
type InteractiveProofManager struct {
	mu       sync.Mutex
	sessions map[Hash]*InteractiveProofSession
	nextSeq  uint64
}

// NewInteractiveProofManager constructs an empty manager.
func NewInteractiveProofManager() *InteractiveProofManager {
	return &InteractiveProofManager{sessions: make(map[Hash]*InteractiveProofSession)}
}

// StartInteractiveProof opens a session disputing a totalSteps-long claimed
// trace, beginning with the sequencer's opening move.
func (m *InteractiveProofManager) StartInteractiveProof(challenger, sequencer Address, totalSteps int, now time.Time) (*InteractiveProofSession, error) {
	if totalSteps <= 0 || totalSteps > MaxInteractiveSteps {
		return nil, fmt.Errorf("%w: totalSteps %d out of [1,%d]", ErrInvalidSessionConfig, totalSteps, MaxInteractiveSteps)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++

	var idBuf [8]byte
	for i := 0; i < 8; i++ {
		idBuf[i] = byte(m.nextSeq >> (8 * i))
	}
	id := canonicalHash(append(append(append([]byte{}, challenger[:]...), sequencer[:]...), idBuf[:]...))

	session := &InteractiveProofSession{
		SessionID:         id,
		Challenger:        challenger,
		Sequencer:         sequencer,
		State:             SessionSequencerTurn,
		SearchLower:       0,
		SearchUpper:       totalSteps,
		TotalSteps:        totalSteps,
		CreatedAt:         now,
		LastActivityAt:    now,
		StepDeadline:      now.Add(InteractiveStepDeadline),
		InvalidStepNumber: NoInvalidStep,
	}
	m.sessions[id] = session
	return session, nil
}

// Get returns the session for id, if tracked.
func (m *InteractiveProofManager) Get(id Hash) (*InteractiveProofSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// SubmitStep records the due party's move at the current interval's
// midpoint. disputeUpperHalf indicates which half of the interval the
// submitting party asserts the true divergence lies in. A move arriving
// after the session's step deadline forfeits the game to the opposing
// party instead of being applied.
func (m *InteractiveProofManager) SubmitStep(id Hash, by Address, preRoot, postRoot Hash, instruction []byte, disputeUpperHalf bool, now time.Time) (*InteractiveProofSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if s.State != SessionSequencerTurn && s.State != SessionChallengerTurn {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, s.State)
	}

	var expected Address
	if s.State == SessionSequencerTurn {
		expected = s.Sequencer
	} else {
		expected = s.Challenger
	}
	if by != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongTurn, expected, by)
	}

	if now.After(s.StepDeadline) {
		s.State = SessionTimeout
		if expected == s.Sequencer {
			s.Winner = s.Challenger
		} else {
			s.Winner = s.Sequencer
		}
		return s, fmt.Errorf("%w: %s missed the step deadline", ErrStepDeadlineMissed, expected)
	}

	midpoint := (s.SearchLower + s.SearchUpper) / 2
	s.Steps = append(s.Steps, ProofStep{StepNumber: midpoint, PreStateRoot: preRoot, Instruction: instruction, PostStateRoot: postRoot})
	if disputeUpperHalf {
		s.SearchLower = midpoint
	} else {
		s.SearchUpper = midpoint
	}

	s.LastActivityAt = now
	s.StepDeadline = now.Add(InteractiveStepDeadline)
	if s.State == SessionSequencerTurn {
		s.State = SessionChallengerTurn
	} else {
		s.State = SessionSequencerTurn
	}

	return s, nil
}

// Resolve checks the lone disputed step's claimed (preRoot, instruction) ->
// postRoot transition against oracle once the session has converged. If the
// oracle agrees, the sequencer wins and InvalidStepNumber stays at
// NoInvalidStep; otherwise the challenger wins and InvalidStepNumber records
// the proven-invalid step.
func (m *InteractiveProofManager) Resolve(id Hash, preRoot Hash, instruction []byte, claimedPostRoot Hash, oracle StepOracle) (*InteractiveProofSession, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if !s.Converged() {
		return nil, fmt.Errorf("%w: searchLower=%d searchUpper=%d", ErrSessionNotConverged, s.SearchLower, s.SearchUpper)
	}

	actualPostRoot, err := oracle(preRoot, instruction)
	if err != nil {
		return nil, fmt.Errorf("step oracle failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if actualPostRoot == claimedPostRoot {
		s.Winner = s.Sequencer
	} else {
		s.Winner = s.Challenger
		s.InvalidStepNumber = s.SearchUpper
	}
	s.State = SessionResolved
	return s, nil
}

// Cancel marks an in-progress session as cancelled.
func (m *InteractiveProofManager) Cancel(id Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	s.State = SessionCancelled
	return nil
}

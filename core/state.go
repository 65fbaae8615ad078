package core

// state.go – account state manager (component C), wrapping the sparse
// Merkle tree and translating 160-bit addresses into 256-bit SMT keys.
// Grounded on the AccountManager wrapper in
// account_and_balance_operations.go (thread-safe facade over a ledger-like
// store) generalized to the authenticated SMT instead of a plain map.

// AddressToKey places addr's 20 bytes into the low bytes of a 256-bit SMT
// key, leaving the high 12 bytes zero. KeyToAddress is its exact inverse.
func AddressToKey(addr Address) [32]byte {
	var key [32]byte
	copy(key[12:], addr[:])
	return key
}

// KeyToAddress recovers the address from a key produced by AddressToKey.
func KeyToAddress(key [32]byte) Address {
	var addr Address
	copy(addr[:], key[12:])
	return addr
}

// encodeAccountState canonically serializes an account for hashing and
// storage: balance, nonce, code hash, storage root, hat score, last
// activity, all fixed-width little-endian.
func encodeAccountState(a AccountState) []byte {
	buf := make([]byte, 0, 89)
	b8 := func(x uint64) {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(x >> (8 * i))
		}
		buf = append(buf, tmp[:]...)
	}
	b8(uint64(a.Balance))
	b8(a.Nonce)
	buf = append(buf, a.CodeHash[:]...)
	buf = append(buf, a.StorageRoot[:]...)
	buf = append(buf, a.HatScore)
	b8(uint64(a.LastActivity))
	return buf
}

// decodeAccountState is the inverse of encodeAccountState. An empty or
// malformed slice decodes to the zero-value AccountState, matching the "read
// of a missing key returns a default value" contract.
func decodeAccountState(b []byte) AccountState {
	if len(b) != 89 {
		return AccountState{}
	}
	u8 := func() uint64 {
		var x uint64
		for i := 0; i < 8; i++ {
			x |= uint64(b[i]) << (8 * i)
		}
		b = b[8:]
		return x
	}
	var a AccountState
	a.Balance = int64(u8())
	a.Nonce = u8()
	copy(a.CodeHash[:], b[:32])
	b = b[32:]
	copy(a.StorageRoot[:], b[:32])
	b = b[32:]
	a.HatScore = b[0]
	b = b[1:]
	a.LastActivity = int64(u8())
	return a
}

// StateManager is the exclusive owner of the SMT and the authoritative
// account-state map. Only block execution and the post-finalization fee
// credit (block_fee_integration.go) write through it.
type StateManager struct {
	smt *SparseMerkleTree
}

// NewStateManager returns a state manager over a fresh, empty SMT.
func NewStateManager() *StateManager {
	return &StateManager{smt: NewSparseMerkleTree()}
}

// Get returns the account state for addr, or the zero value if unset.
func (s *StateManager) Get(addr Address) AccountState {
	raw := s.smt.Get(AddressToKey(addr))
	if raw == nil {
		return AccountState{}
	}
	return decodeAccountState(raw)
}

// Set upserts addr's account state. Writing the zero-value account is
// equivalent to deleting the key.
func (s *StateManager) Set(addr Address, acc AccountState) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	if acc.IsEmpty() {
		s.smt.Delete(AddressToKey(addr))
		return nil
	}
	s.smt.Set(AddressToKey(addr), encodeAccountState(acc))
	return nil
}

// GetRoot returns the current state root.
func (s *StateManager) GetRoot() Hash { return s.smt.Root() }

// GenerateInclusionProof returns a proof that addr's account state is
// exactly acc at the current root.
func (s *StateManager) GenerateInclusionProof(addr Address) (*MerkleProof, error) {
	return s.smt.GenerateInclusionProof(AddressToKey(addr))
}

// GenerateExclusionProof returns a proof that addr has never been written.
func (s *StateManager) GenerateExclusionProof(addr Address) (*MerkleProof, error) {
	return s.smt.GenerateExclusionProof(AddressToKey(addr))
}

// VerifyAccountProof checks that proof demonstrates acc is addr's state (or,
// for the zero account, that addr is absent) at root.
func VerifyAccountProof(proof *MerkleProof, root Hash, addr Address, acc AccountState) bool {
	key := AddressToKey(addr)
	if acc.IsEmpty() {
		return VerifyProof(proof, root, key, nil)
	}
	return VerifyProof(proof, root, key, encodeAccountState(acc))
}

// Credit adds amount to addr's balance, used exclusively by fee
// distribution to pay sequencers and the burn account. It is the sole
// additive-only writer besides block execution.
func (s *StateManager) Credit(addr Address, amount Amount) error {
	acc := s.Get(addr)
	acc.Balance += amount
	return s.Set(addr, acc)
}

// Debit subtracts amount from addr's balance, returning an error if the
// balance would go negative.
func (s *StateManager) Debit(addr Address, amount Amount) error {
	acc := s.Get(addr)
	if acc.Balance < amount {
		return ErrInvalidAmount
	}
	acc.Balance -= amount
	return s.Set(addr, acc)
}

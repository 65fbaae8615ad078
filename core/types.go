package core

// types.go – shared primitive and entity types referenced across the bridge,
// state, block-production, fraud-proof and fee/reputation subsystems.
//
// Widths follow the data model: addresses are 160-bit (Bitcoin-style Hash160
// of a compressed secp256k1 public key), hashes/roots are 256-bit, amounts are
// signed 64-bit satoshi-equivalents of native coin.

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Address is a 160-bit account identifier: Hash160(compressed pubkey).
type Address [20]byte

// String renders the address as lowercase hex.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether the address is the all-zero sentinel, used as the
// sender of system transactions such as BURN_MINT.
func (a Address) IsZero() bool { return a == Address{} }

// Hash is a 256-bit content-addressed digest. Reusing chainhash.Hash keeps
// the wire shape and String()/IsEqual() helpers consistent with the rest of
// the L1 tooling this bridge talks to.
type Hash = chainhash.Hash

// ZeroHash is the all-zero 256-bit digest, used for null parent/state roots
// on the genesis block and for absent optional hash fields.
var ZeroHash Hash

// Amount is a signed satoshi-equivalent quantity of native coin on either
// layer. Signed so that intermediate bookkeeping (fee deltas, slashing
// deltas) can be expressed without a separate "direction" flag.
type Amount = int64

const (
	// MaxBurnAmount is 21 million coins expressed in 1e8 satoshi units,
	// mirroring Bitcoin's supply cap; burns above this are malformed.
	MaxBurnAmount Amount = 21_000_000 * 100_000_000
)

//---------------------------------------------------------------------
// AccountState
//---------------------------------------------------------------------

// AccountState is the value stored under an address's key in the sparse
// Merkle tree.
type AccountState struct {
	Balance      Amount `json:"balance"`
	Nonce        uint64 `json:"nonce"`
	CodeHash     Hash   `json:"code_hash"`
	StorageRoot  Hash   `json:"storage_root"`
	HatScore     uint8  `json:"hat_score"`
	LastActivity int64  `json:"last_activity"`
}

// IsEmpty reports whether the account is indistinguishable from one that was
// never written: balance, nonce, code hash and storage root are all zero.
// HatScore and LastActivity are metadata and do not participate, matching
// the data model's "four numeric/hash fields" emptiness rule.
func (a AccountState) IsEmpty() bool {
	return a.Balance == 0 && a.Nonce == 0 && a.CodeHash == ZeroHash && a.StorageRoot == ZeroHash
}

// IsContract reports whether the account has deployed code.
func (a AccountState) IsContract() bool { return a.CodeHash != ZeroHash }

// Validate checks the invariants that must hold for any stored account.
func (a AccountState) Validate() error {
	if a.HatScore > 100 {
		return fmt.Errorf("%w: hat score %d out of range", ErrInvalidAccountState, a.HatScore)
	}
	return nil
}

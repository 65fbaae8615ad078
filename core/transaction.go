package core

// transaction.go – L2 transaction type, signing and per-type validation
// (component I, transaction half).
//
// HashTx/Sign/VerifySig in this file mirror the hash-then-sign-then-recover
// shape of transactions.go (field-by-field little-endian hash, 65-byte
// compact signature, recovered-pubkey-to-address comparison), adapted to
// btcec/v2's compact recoverable signature scheme instead of go-ethereum's,
// and to a typed-transaction validity table instead of a single flat
// transaction shape.

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// TxType enumerates the kinds of L2 transaction.
type TxType uint8

const (
	TxTransfer TxType = iota
	TxContractDeploy
	TxContractCall
	TxBurnMint
	TxForcedInclusion
	TxCrossLayerMsg
	TxSequencerAnnounce
	TxDeposit    // legacy, always invalid
	TxWithdrawal // legacy, always invalid
)

func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "TRANSFER"
	case TxContractDeploy:
		return "CONTRACT_DEPLOY"
	case TxContractCall:
		return "CONTRACT_CALL"
	case TxBurnMint:
		return "BURN_MINT"
	case TxForcedInclusion:
		return "FORCED_INCLUSION"
	case TxCrossLayerMsg:
		return "CROSS_LAYER_MSG"
	case TxSequencerAnnounce:
		return "SEQUENCER_ANNOUNCE"
	case TxDeposit:
		return "DEPOSIT"
	case TxWithdrawal:
		return "WITHDRAWAL"
	default:
		return "UNKNOWN"
	}
}

// Global per-transaction limits.
const (
	MinTxGasLimit          uint64 = 21_000
	MaxTxGasLimit          uint64 = 30_000_000
	MaxTxDataSize                 = 128 * 1024
	MaxAccessListSize             = 256
	MaxStorageKeysPerEntry        = 64
)

// AccessListEntry names an address and the storage keys a transaction
// declares it will touch.
type AccessListEntry struct {
	Address     Address
	StorageKeys []Hash
}

// L2Transaction is a signed, typed transaction included in an L2 block.
type L2Transaction struct {
	Type                  TxType
	From                  Address
	To                    Address
	Value                 Amount
	Nonce                 uint64
	GasLimit              uint64
	GasPrice              Amount
	MaxFeePerGas          Amount
	MaxPriorityFeePerGas  Amount
	Data                  []byte
	AccessList            []AccessListEntry
	L1TxHash              Hash
	Timestamp             int64
	Signature             []byte
}

// GetSigningHash hashes every field except Signature, in declared field
// order, little-endian throughout.
func (tx *L2Transaction) GetSigningHash() Hash {
	var buf bytes.Buffer
	buf.WriteByte(byte(tx.Type))
	buf.Write(tx.From[:])
	buf.Write(tx.To[:])
	putInt64LE(&buf, tx.Value)
	putUint64LE(&buf, tx.Nonce)
	putUint64LE(&buf, tx.GasLimit)
	putInt64LE(&buf, tx.GasPrice)
	putInt64LE(&buf, tx.MaxFeePerGas)
	putInt64LE(&buf, tx.MaxPriorityFeePerGas)
	putVarBytes(&buf, tx.Data)
	putUint64LE(&buf, uint64(len(tx.AccessList)))
	for _, e := range tx.AccessList {
		buf.Write(e.Address[:])
		putUint64LE(&buf, uint64(len(e.StorageKeys)))
		for _, k := range e.StorageKeys {
			buf.Write(k[:])
		}
	}
	buf.Write(tx.L1TxHash[:])
	putInt64LE(&buf, tx.Timestamp)
	return canonicalHash(buf.Bytes())
}

// Sign signs tx's signing hash with priv and sets Signature and From.
// BURN_MINT transactions are system-originated and are never signed this
// way; callers construct them directly with From left at the zero address.
func (tx *L2Transaction) Sign(priv *btcec.PrivateKey) {
	tx.From = PubKeyToAddress(priv.PubKey())
	tx.Signature = SignCompact(priv, tx.GetSigningHash())
}

// VerifySignature recovers the signer from Signature and compares the
// derived address to From. System transactions (From the zero address) have
// no signature to verify and always pass.
func (tx *L2Transaction) VerifySignature() bool {
	if tx.From.IsZero() {
		return true
	}
	return VerifyCompactSignature(tx.Signature, tx.GetSigningHash(), tx.From)
}

// Validate checks tx against the global limits and the per-type field
// rules. DEPOSIT and WITHDRAWAL are unconditionally rejected.
func (tx *L2Transaction) Validate() error {
	if tx.Type == TxDeposit || tx.Type == TxWithdrawal {
		return fmt.Errorf("%w: %s", ErrDeprecatedTxType, tx.Type)
	}
	if tx.GasLimit < MinTxGasLimit || tx.GasLimit > MaxTxGasLimit {
		return fmt.Errorf("%w: gas limit %d out of [%d,%d]", ErrInvalidTransaction, tx.GasLimit, MinTxGasLimit, MaxTxGasLimit)
	}
	if len(tx.Data) > MaxTxDataSize {
		return fmt.Errorf("%w: data size %d exceeds %d", ErrInvalidTransaction, len(tx.Data), MaxTxDataSize)
	}
	if len(tx.AccessList) > MaxAccessListSize {
		return fmt.Errorf("%w: access list has %d entries, max %d", ErrInvalidTransaction, len(tx.AccessList), MaxAccessListSize)
	}
	for _, e := range tx.AccessList {
		if len(e.StorageKeys) > MaxStorageKeysPerEntry {
			return fmt.Errorf("%w: access list entry has %d storage keys, max %d", ErrInvalidTransaction, len(e.StorageKeys), MaxStorageKeysPerEntry)
		}
	}

	switch tx.Type {
	case TxTransfer:
		if tx.To.IsZero() {
			return fmt.Errorf("%w: TRANSFER requires a non-zero recipient", ErrInvalidTransaction)
		}
		if tx.GasPrice <= 0 && tx.MaxFeePerGas <= 0 {
			return fmt.Errorf("%w: TRANSFER requires a positive gas price or max fee", ErrInvalidTransaction)
		}
	case TxContractDeploy:
		if len(tx.Data) == 0 {
			return fmt.Errorf("%w: CONTRACT_DEPLOY requires non-empty data", ErrInvalidTransaction)
		}
		if !tx.To.IsZero() {
			return fmt.Errorf("%w: CONTRACT_DEPLOY must not set a recipient", ErrInvalidTransaction)
		}
	case TxContractCall:
		if tx.To.IsZero() {
			return fmt.Errorf("%w: CONTRACT_CALL requires a non-zero recipient", ErrInvalidTransaction)
		}
	case TxBurnMint:
		if tx.To.IsZero() {
			return fmt.Errorf("%w: BURN_MINT requires a non-zero recipient", ErrInvalidTransaction)
		}
		if tx.Value <= 0 {
			return fmt.Errorf("%w: BURN_MINT requires a positive value", ErrInvalidTransaction)
		}
		if tx.L1TxHash == ZeroHash {
			return fmt.Errorf("%w: BURN_MINT requires a non-null L1 tx hash", ErrInvalidTransaction)
		}
		if !tx.From.IsZero() {
			return fmt.Errorf("%w: BURN_MINT sender must be the zero address", ErrInvalidTransaction)
		}
		if tx.GasPrice != 0 {
			return fmt.Errorf("%w: BURN_MINT gas price must be zero", ErrInvalidTransaction)
		}
	case TxForcedInclusion:
		if tx.L1TxHash == ZeroHash {
			return fmt.Errorf("%w: FORCED_INCLUSION requires a non-null L1 tx hash", ErrInvalidTransaction)
		}
	case TxCrossLayerMsg:
		if tx.To.IsZero() {
			return fmt.Errorf("%w: CROSS_LAYER_MSG requires a non-zero recipient", ErrInvalidTransaction)
		}
	case TxSequencerAnnounce:
		// No additional field requirements beyond the global limits.
	default:
		return fmt.Errorf("%w: unknown transaction type %d", ErrInvalidTransaction, tx.Type)
	}
	return nil
}

// NewBurnMintTransaction builds the system BURN_MINT transaction that mints
// a validated burn into the recipient's account.
func NewBurnMintTransaction(recipient Address, amount Amount, l1TxHash Hash, nonce uint64, timestamp int64) *L2Transaction {
	return &L2Transaction{
		Type:      TxBurnMint,
		From:      Address{},
		To:        recipient,
		Value:     amount,
		Nonce:     nonce,
		GasLimit:  MinTxGasLimit,
		GasPrice:  0,
		L1TxHash:  l1TxHash,
		Timestamp: timestamp,
	}
}

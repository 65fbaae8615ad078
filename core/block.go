package core

// block.go – L2 block structure, signature validation and finalization
// (component I, block half).
//
// Transaction-root computation follows the duplicate-last-if-odd binary
// Merkle construction in merkle_tree_operations.go's BuildMerkleTree, reusing
// this package's own canonicalHash/hashConcat instead of raw sha256.Sum256 so
// block and SMT hashing share one primitive.

import (
	"bytes"
	"fmt"
)

// MaxExtraDataSize bounds L2BlockHeader.ExtraData.
const MaxExtraDataSize = 32

// MaxBlockTransactionCount bounds the number of transactions in a block.
const MaxBlockTransactionCount = 10_000

// MaxFutureTimestampSeconds is how far into the future (relative to the validator's
// wall clock) a block's timestamp may be and still be accepted.
const MaxFutureTimestampSeconds = 60

// L2BlockHeader carries the commitments and metadata for one L2 block.
type L2BlockHeader struct {
	BlockNumber      uint64
	ParentHash       Hash
	StateRoot        Hash
	TransactionsRoot Hash
	ReceiptsRoot     Hash
	Sequencer        Address
	Timestamp        int64
	GasLimit         uint64
	GasUsed          uint64
	L2ChainID        uint64
	L1AnchorBlock    uint64
	L1AnchorHash     Hash
	SlotNumber       uint64
	ExtraData        []byte
}

// Hash computes the header's canonical content hash; this is also the hash
// that sequencer signatures cover.
func (h L2BlockHeader) Hash() Hash {
	var buf bytes.Buffer
	putUint64LE(&buf, h.BlockNumber)
	buf.Write(h.ParentHash[:])
	buf.Write(h.StateRoot[:])
	buf.Write(h.TransactionsRoot[:])
	buf.Write(h.ReceiptsRoot[:])
	buf.Write(h.Sequencer[:])
	putInt64LE(&buf, h.Timestamp)
	putUint64LE(&buf, h.GasLimit)
	putUint64LE(&buf, h.GasUsed)
	putUint64LE(&buf, h.L2ChainID)
	putUint64LE(&buf, h.L1AnchorBlock)
	buf.Write(h.L1AnchorHash[:])
	putUint64LE(&buf, h.SlotNumber)
	putVarBytes(&buf, h.ExtraData)
	return canonicalHash(buf.Bytes())
}

// BlockSignature is one sequencer's signature over a block's header hash.
type BlockSignature struct {
	SequencerAddress Address
	Signature        []byte
}

// L2Block is a produced block: header, transaction list, any L1 messages it
// carries, and the signature set attesting to it.
type L2Block struct {
	Header          L2BlockHeader
	Transactions    []*L2Transaction
	L1MessageHashes []Hash
	Signatures      []BlockSignature
	IsFinalized     bool
}

// computeTransactionsRoot builds a binary Merkle root over the signing hash
// of every transaction, duplicating the last leaf when the level is odd.
func computeTransactionsRoot(txs []*L2Transaction) Hash {
	if len(txs) == 0 {
		return ZeroHash
	}
	level := make([]Hash, len(txs))
	for i, tx := range txs {
		level[i] = tx.GetSigningHash()
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashConcat(level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}

// GenesisBlock constructs the canonical genesis block: block number 0, null
// parent/state/transactions roots, and pre-finalized.
func GenesisBlock(chainID uint64, timestamp int64) *L2Block {
	return &L2Block{
		Header: L2BlockHeader{
			BlockNumber:      0,
			ParentHash:       ZeroHash,
			StateRoot:        ZeroHash,
			TransactionsRoot: ZeroHash,
			L2ChainID:        chainID,
			Timestamp:        timestamp,
			GasLimit:         MaxTxGasLimit,
		},
		IsFinalized: true,
	}
}

// ValidateStructure checks header well-formedness, per-transaction
// validity, the recomputed transactions root, and the aggregate gas budget.
// It does not check timestamp discipline (see the timestamp validator) or
// signature coverage (see CheckFinalization).
func (b *L2Block) ValidateStructure(now int64) error {
	h := b.Header

	if h.BlockNumber == 0 {
		if h.ParentHash != ZeroHash || h.StateRoot != ZeroHash || h.TransactionsRoot != ZeroHash {
			return fmt.Errorf("%w: genesis block must have null parent/state/transactions roots", ErrInvalidBlockStructure)
		}
	} else {
		if h.ParentHash == ZeroHash {
			return fmt.Errorf("%w: non-genesis block requires a parent hash", ErrInvalidBlockStructure)
		}
		if h.Sequencer.IsZero() {
			return fmt.Errorf("%w: non-genesis block requires a sequencer", ErrInvalidBlockStructure)
		}
	}

	if h.Timestamp > now+MaxFutureTimestampSeconds {
		return fmt.Errorf("%w: timestamp %d is more than %ds in the future", ErrInvalidBlockStructure, h.Timestamp, MaxFutureTimestampSeconds)
	}
	if h.GasLimit == 0 {
		return fmt.Errorf("%w: gas limit must be positive", ErrInvalidBlockStructure)
	}
	if h.GasUsed > h.GasLimit {
		return fmt.Errorf("%w: gas used %d exceeds gas limit %d", ErrInvalidBlockStructure, h.GasUsed, h.GasLimit)
	}
	if len(h.ExtraData) > MaxExtraDataSize {
		return fmt.Errorf("%w: extra data %d bytes exceeds %d", ErrInvalidBlockStructure, len(h.ExtraData), MaxExtraDataSize)
	}

	if len(b.Transactions) > MaxBlockTransactionCount {
		return fmt.Errorf("%w: %d transactions exceeds max %d", ErrInvalidBlockStructure, len(b.Transactions), MaxBlockTransactionCount)
	}

	var gasSum uint64
	for i, tx := range b.Transactions {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("%w: transaction %d: %v", ErrInvalidBlockStructure, i, err)
		}
		gasSum += tx.GasLimit
	}
	if gasSum > h.GasLimit {
		return fmt.Errorf("%w: sum of transaction gas limits %d exceeds block gas limit %d", ErrInvalidBlockStructure, gasSum, h.GasLimit)
	}

	if got, want := h.TransactionsRoot, computeTransactionsRoot(b.Transactions); got != want {
		return fmt.Errorf("%w: transactions root %s does not match computed %s", ErrInvalidBlockStructure, got, want)
	}

	return nil
}

// requiredSignatureCount reports how many distinct sequencers a block must
// see signatures from to finalize, given an active count.
func requiredSignatureCount(activeSequencers int) int {
	return thresholdFor(activeSequencers)
}

// CheckFinalization verifies every signature in b.Signatures against
// pubKeyFor and the block's header hash, then reports whether the count of
// distinct, valid signatures covers at least 2/3 of activeSequencers. It
// does not mutate b; callers set IsFinalized themselves.
func (b *L2Block) CheckFinalization(activeSequencers int, pubKeyFor SequencerPubKeyGetter) (bool, error) {
	blockHash := b.Header.Hash()
	seen := make(map[Address]bool, len(b.Signatures))
	for _, sig := range b.Signatures {
		if _, ok := pubKeyFor(sig.SequencerAddress); !ok {
			return false, fmt.Errorf("%w: signature from unregistered sequencer %s", ErrInvalidSignature, sig.SequencerAddress)
		}
		if !VerifyCompactSignature(sig.Signature, blockHash, sig.SequencerAddress) {
			return false, fmt.Errorf("%w: signature from %s does not verify", ErrInvalidSignature, sig.SequencerAddress)
		}
		seen[sig.SequencerAddress] = true
	}
	return len(seen) >= requiredSignatureCount(activeSequencers), nil
}

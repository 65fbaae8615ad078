package core

// codec.go – fixed-width little-endian primitives and canonical hashing,
// grounded on the header-serialization idiom in consensus.go
// (BlockHeader.SerializeWithoutNonce) and the Merkle hashing helpers in
// merkle_tree_operations.go, generalized into reusable encode/decode helpers
// for every canonical structure in this package.

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// putUint32LE appends x to buf in little-endian form.
func putUint32LE(buf *bytes.Buffer, x uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	buf.Write(b[:])
}

// putUint64LE appends x to buf in little-endian form.
func putUint64LE(buf *bytes.Buffer, x uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	buf.Write(b[:])
}

// putInt64LE appends a signed 64-bit amount in little-endian form.
func putInt64LE(buf *bytes.Buffer, x int64) { putUint64LE(buf, uint64(x)) }

// putVarBytes appends a uvarint length prefix followed by b, for variable
// length fields in canonical serializations.
func putVarBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf.Write(lenBuf[:n])
	buf.Write(b)
}

// readUint32LE reads a little-endian uint32 and advances the slice.
func readUint32LE(b []byte) (uint32, []byte, bool) {
	if len(b) < 4 {
		return 0, b, false
	}
	return binary.LittleEndian.Uint32(b[:4]), b[4:], true
}

// readUint64LE reads a little-endian uint64 and advances the slice.
func readUint64LE(b []byte) (uint64, []byte, bool) {
	if len(b) < 8 {
		return 0, b, false
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], true
}

// readInt64LE reads a little-endian signed 64-bit amount.
func readInt64LE(b []byte) (int64, []byte, bool) {
	v, rest, ok := readUint64LE(b)
	return int64(v), rest, ok
}

// readVarBytes reads a uvarint length prefix followed by that many bytes.
func readVarBytes(b []byte) ([]byte, []byte, bool) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 {
		return nil, b, false
	}
	b = b[sz:]
	if uint64(len(b)) < n {
		return nil, b, false
	}
	return b[:n], b[n:], true
}

// canonicalHash computes the single-round SHA-256 digest used throughout the
// SMT and every canonical structure's content hash.
func canonicalHash(b []byte) Hash { return chainhash.HashH(b) }

// hashConcat hashes the concatenation of two 32-byte digests, the basic
// internal-node and Merkle-sibling combinator used by the SMT and block
// transactions root.
func hashConcat(a, b Hash) Hash {
	buf := make([]byte, 64)
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return canonicalHash(buf)
}

package core

// smt.go – 256-bit-keyed sparse Merkle tree (component B), generalizing the
// fixed-size binary Merkle tree in merkle_tree_operations.go
// (BuildMerkleTree/MerkleProof/VerifyMerklePath) into an authenticated map
// over the full 256-bit key space with lazily-represented empty subtrees.

import (
	"bytes"
	"fmt"
	"sync"
)

// smtDepth is the fixed tree depth: one level per bit of a 256-bit key.
const smtDepth = 256

// maxProofSize is the hard serialized-size ceiling for a MerkleProof.
const maxProofSize = 10 * 1024

// defaultHashes holds the precomputed default-hash sequence.
// defaultHashes[0] is the hash of an empty leaf; defaultHashes[i] is the
// default hash of a subtree of height i.
var defaultHashes [smtDepth + 1]Hash

func init() {
	defaultHashes[0] = canonicalHash(nil)
	for i := 1; i <= smtDepth; i++ {
		defaultHashes[i] = hashConcat(defaultHashes[i-1], defaultHashes[i-1])
	}
}

// bitAt returns bit i of key, where bit 0 is the least significant bit of
// the 256-bit big-endian integer the key represents (the last bit of the
// last byte) and bit 255 is the most significant bit (the first bit of the
// first byte).
func bitAt(key [32]byte, i int) byte {
	byteIdx := 31 - i/8
	bitOff := uint(i % 8)
	return (key[byteIdx] >> bitOff) & 1
}

// MerkleProof is an inclusion or exclusion proof for a single key against a
// particular SMT root.
type MerkleProof struct {
	Siblings     [smtDepth]Hash
	PathBits     [smtDepth]bool
	LeafHash     Hash
	Key          [32]byte
	Value        []byte
	IsInclusion  bool
}

// EncodedSize estimates the serialized size of the proof: 256 sibling
// hashes, the key, the leaf hash, a packed bitset of path bits, and the
// value. Proofs exceeding maxProofSize are rejected by GenerateInclusionProof
// and GenerateExclusionProof.
func (p *MerkleProof) EncodedSize() int {
	return smtDepth*32 + 32 + 32 + (smtDepth+7)/8 + len(p.Value) + 1
}

// SparseMerkleTree is a 256-bit-keyed authenticated map from key to an
// arbitrary byte value. The zero value is not usable; use NewSparseMerkleTree.
type SparseMerkleTree struct {
	mu     sync.RWMutex
	leaves map[[32]byte][]byte
	root   Hash
	dirty  bool
}

// NewSparseMerkleTree returns an empty tree whose root is the depth-256
// default hash.
func NewSparseMerkleTree() *SparseMerkleTree {
	return &SparseMerkleTree{
		leaves: make(map[[32]byte][]byte),
		root:   defaultHashes[smtDepth],
	}
}

// Get returns the value stored at key, or nil if the key is absent.
func (t *SparseMerkleTree) Get(key [32]byte) []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.leaves[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}

// Exists reports whether key has a non-empty stored value.
func (t *SparseMerkleTree) Exists(key [32]byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.leaves[key]
	return ok
}

// Set upserts key -> value. Setting an empty value is equivalent to Delete,
// matching the state manager's write semantics.
func (t *SparseMerkleTree) Set(key [32]byte, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(value) == 0 {
		delete(t.leaves, key)
	} else {
		t.leaves[key] = append([]byte(nil), value...)
	}
	t.dirty = true
}

// Delete removes key. It reports whether the key was present. Because the
// root is a pure function of the surviving (key,value) set, deleting a key
// restores the root to the value it had before that key was ever inserted.
func (t *SparseMerkleTree) Delete(key [32]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.leaves[key]
	if ok {
		delete(t.leaves, key)
		t.dirty = true
	}
	return ok
}

// Root returns the current tree root, recomputing it if the tree has been
// mutated since the last call.
func (t *SparseMerkleTree) Root() Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dirty {
		keys := make([][32]byte, 0, len(t.leaves))
		for k := range t.leaves {
			keys = append(keys, k)
		}
		t.root = t.computeNode(keys, 0)
		t.dirty = false
	}
	return t.root
}

// leafHash is H(key || value), the canonical hash of an occupied leaf.
func leafHash(key [32]byte, value []byte) Hash {
	buf := make([]byte, 0, 32+len(value))
	buf = append(buf, key[:]...)
	buf = append(buf, value...)
	return canonicalHash(buf)
}

// computeNode recursively evaluates the hash of the subtree rooted at depth
// d that contains exactly keys (a subset sharing the path fixed by ancestors
// already split on).
func (t *SparseMerkleTree) computeNode(keys [][32]byte, d int) Hash {
	if d == smtDepth {
		if len(keys) == 0 {
			return defaultHashes[0]
		}
		k := keys[0]
		return leafHash(k, t.leaves[k])
	}
	bit := 255 - d
	var left, right [][32]byte
	for _, k := range keys {
		if bitAt(k, bit) == 0 {
			left = append(left, k)
		} else {
			right = append(right, k)
		}
	}
	leftHash := t.computeNode(left, d+1)
	rightHash := t.computeNode(right, d+1)
	return hashConcat(leftHash, rightHash)
}

// generateProof walks the tree once, splitting the active key set level by
// level, and records the sibling hash on the side opposite target at every
// depth.
func (t *SparseMerkleTree) generateProof(target [32]byte) *MerkleProof {
	t.mu.RLock()
	snapshot := make(map[[32]byte][]byte, len(t.leaves))
	keys := make([][32]byte, 0, len(t.leaves))
	for k, v := range t.leaves {
		snapshot[k] = v
		keys = append(keys, k)
	}
	t.mu.RUnlock()

	proof := &MerkleProof{Key: target}
	for i := 0; i < smtDepth; i++ {
		proof.PathBits[i] = bitAt(target, i) == 1
	}

	var walk func(keys [][32]byte, d int) Hash
	walk = func(keys [][32]byte, d int) Hash {
		if d == smtDepth {
			if len(keys) == 0 {
				return defaultHashes[0]
			}
			return leafHash(keys[0], snapshot[keys[0]])
		}
		bit := 255 - d
		var left, right [][32]byte
		for _, k := range keys {
			if bitAt(k, bit) == 0 {
				left = append(left, k)
			} else {
				right = append(right, k)
			}
		}
		leftHash := walk(left, d+1)
		rightHash := walk(right, d+1)

		targetBit := bitAt(target, bit)
		idx := 255 - d
		if targetBit == 0 {
			proof.Siblings[idx] = rightHash
		} else {
			proof.Siblings[idx] = leftHash
		}
		return hashConcat(leftHash, rightHash)
	}
	walk(keys, 0)

	if v, ok := snapshot[target]; ok {
		proof.IsInclusion = true
		proof.Value = append([]byte(nil), v...)
		proof.LeafHash = leafHash(target, v)
	} else {
		proof.IsInclusion = false
		proof.Value = nil
		proof.LeafHash = defaultHashes[0]
	}
	return proof
}

// GenerateInclusionProof returns an inclusion proof for key. If key is
// absent it transparently falls back to an exclusion proof, per the SMT's
// algorithmic contract.
func (t *SparseMerkleTree) GenerateInclusionProof(key [32]byte) (*MerkleProof, error) {
	proof := t.generateProof(key)
	if proof.EncodedSize() > maxProofSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrProofTooLarge, proof.EncodedSize())
	}
	return proof, nil
}

// GenerateExclusionProof returns an exclusion proof for key. It errors if
// key is in fact occupied.
func (t *SparseMerkleTree) GenerateExclusionProof(key [32]byte) (*MerkleProof, error) {
	if t.Exists(key) {
		return nil, fmt.Errorf("%w: key is occupied", ErrInvalidState)
	}
	return t.GenerateInclusionProof(key)
}

// VerifyProof is a pure function: it folds the proof's siblings bit by bit
// from the key's LSB to its MSB and checks the resulting hash against root.
func VerifyProof(proof *MerkleProof, root Hash, key [32]byte, value []byte) bool {
	if proof == nil || proof.Key != key {
		return false
	}
	if proof.EncodedSize() > maxProofSize {
		return false
	}

	var current Hash
	if proof.IsInclusion {
		if !bytes.Equal(proof.Value, value) {
			return false
		}
		current = leafHash(key, value)
	} else {
		if len(value) != 0 {
			return false
		}
		current = defaultHashes[0]
	}

	for i := 0; i < smtDepth; i++ {
		sib := proof.Siblings[i]
		if bitAt(key, i) == 0 {
			current = hashConcat(current, sib)
		} else {
			current = hashConcat(sib, current)
		}
	}
	return current == root
}

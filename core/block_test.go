package core

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

func signBlockHeader(priv *btcec.PrivateKey, h L2BlockHeader) BlockSignature {
	return BlockSignature{
		SequencerAddress: PubKeyToAddress(priv.PubKey()),
		Signature:        SignCompact(priv, h.Hash()),
	}
}

func TestGenesisBlockValidates(t *testing.T) {
	b := GenesisBlock(1, 1000)
	if err := b.ValidateStructure(1000); err != nil {
		t.Fatalf("genesis block should validate: %v", err)
	}
	if !b.IsFinalized {
		t.Fatalf("genesis block must be pre-finalized")
	}
}

func TestBlockTransactionsRootMismatchRejected(t *testing.T) {
	tx := &L2Transaction{Type: TxSequencerAnnounce, GasLimit: MinTxGasLimit}
	b := &L2Block{
		Header: L2BlockHeader{
			BlockNumber:      1,
			ParentHash:       canonicalHash([]byte("parent")),
			Sequencer:        addrFromByte(1),
			GasLimit:         MinTxGasLimit,
			TransactionsRoot: ZeroHash, // wrong: should be computeTransactionsRoot([tx])
		},
		Transactions: []*L2Transaction{tx},
	}
	if err := b.ValidateStructure(0); err == nil {
		t.Fatalf("expected rejection of a mismatched transactions root")
	}
}

func TestBlockGasSumExceedsLimitRejected(t *testing.T) {
	tx1 := &L2Transaction{Type: TxSequencerAnnounce, GasLimit: MaxTxGasLimit}
	tx2 := &L2Transaction{Type: TxSequencerAnnounce, GasLimit: MaxTxGasLimit}
	txs := []*L2Transaction{tx1, tx2}
	b := &L2Block{
		Header: L2BlockHeader{
			BlockNumber:      1,
			ParentHash:       canonicalHash([]byte("parent")),
			Sequencer:        addrFromByte(1),
			GasLimit:         MaxTxGasLimit, // smaller than tx1.GasLimit+tx2.GasLimit
			TransactionsRoot: computeTransactionsRoot(txs),
		},
		Transactions: txs,
	}
	if err := b.ValidateStructure(0); err == nil {
		t.Fatalf("expected rejection when summed transaction gas exceeds the block limit")
	}
}

func TestBlockFinalizationThreshold(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2), newTestSequencer(t, 3)}
	pubKeyFor := func(addr Address) (*btcec.PublicKey, bool) {
		for _, s := range seqs {
			if s.addr == addr {
				return s.priv.PubKey(), true
			}
		}
		return nil, false
	}

	header := L2BlockHeader{
		BlockNumber: 1,
		ParentHash:  canonicalHash([]byte("parent")),
		Sequencer:   seqs[0].addr,
		GasLimit:    MinTxGasLimit,
	}
	b := &L2Block{Header: header}

	b.Signatures = []BlockSignature{signBlockHeader(seqs[0].priv, header)}
	finalized, err := b.CheckFinalization(3, pubKeyFor)
	if err != nil {
		t.Fatalf("CheckFinalization: %v", err)
	}
	if finalized {
		t.Fatalf("1 of 3 signatures must not finalize")
	}

	b.Signatures = append(b.Signatures, signBlockHeader(seqs[1].priv, header))
	finalized, err = b.CheckFinalization(3, pubKeyFor)
	if err != nil {
		t.Fatalf("CheckFinalization: %v", err)
	}
	if !finalized {
		t.Fatalf("2 of 3 (ceil(2*3/3)=2) signatures must finalize")
	}
}

func TestBlockFinalizationRejectsBadSignature(t *testing.T) {
	seqs := []testSequencer{newTestSequencer(t, 1), newTestSequencer(t, 2)}
	pubKeyFor := func(addr Address) (*btcec.PublicKey, bool) {
		for _, s := range seqs {
			if s.addr == addr {
				return s.priv.PubKey(), true
			}
		}
		return nil, false
	}
	header := L2BlockHeader{BlockNumber: 1, ParentHash: canonicalHash([]byte("p")), Sequencer: seqs[0].addr, GasLimit: MinTxGasLimit}
	other := L2BlockHeader{BlockNumber: 2, ParentHash: canonicalHash([]byte("q")), Sequencer: seqs[0].addr, GasLimit: MinTxGasLimit}

	b := &L2Block{Header: header, Signatures: []BlockSignature{signBlockHeader(seqs[0].priv, other)}}
	if _, err := b.CheckFinalization(2, pubKeyFor); err == nil {
		t.Fatalf("a signature over a different header must be rejected")
	}
}

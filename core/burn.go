package core

// burn.go – OP_RETURN burn payload parsing (component D).
//
// Grounded on the OP_RETURN classification in
// leanlp-BTC-coinjoin/internal/heuristics/script_analysis.go
// (isOPReturn/classifyOPReturn) for recognizing a tagged OP_RETURN output,
// and on the Hash160-keyed bridge-account derivation in
// sidechains.go for treating a compressed pubkey as the canonical bridge
// recipient identity. Script construction/parsing uses btcsuite/btcd's
// txscript tokenizer rather than hand-rolled opcode scanning.

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// burnMarker is the 6-byte ASCII tag that opens every burn payload.
var burnMarker = []byte("L2BURN")

// burnPayloadSize is the exact wire size of a burn payload: marker(6) +
// chainId(4) + compressed pubkey(33) + amount(8).
const burnPayloadSize = len(burnMarker) + 4 + 33 + 8

// BurnData is the decoded content of a valid burn OP_RETURN payload.
type BurnData struct {
	ChainID         uint32
	RecipientPubKey [33]byte
	Amount          Amount
}

// Validate reports whether b satisfies the burn-payload invariants: a
// non-zero chain id, a public key whose prefix byte marks it compressed
// (0x02 or 0x03), and an amount in [1, MaxBurnAmount]. Only the prefix byte
// of the key is checked; whether the key is a point on the curve is not.
func (b BurnData) Validate() error {
	if b.ChainID == 0 {
		return ErrZeroChainID
	}
	if b.RecipientPubKey[0] != 0x02 && b.RecipientPubKey[0] != 0x03 {
		return ErrInvalidPubKey
	}
	if b.Amount < 1 || b.Amount > MaxBurnAmount {
		return ErrInvalidAmount
	}
	return nil
}

// encodeBurnPayload serializes b into the exact 51-byte wire format without
// validating it; callers validate first via BurnData.Validate.
func encodeBurnPayload(b BurnData) []byte {
	buf := make([]byte, 0, burnPayloadSize)
	buf = append(buf, burnMarker...)
	var chainID [4]byte
	for i := 0; i < 4; i++ {
		chainID[i] = byte(b.ChainID >> (8 * i))
	}
	buf = append(buf, chainID[:]...)
	buf = append(buf, b.RecipientPubKey[:]...)
	var amount [8]byte
	for i := 0; i < 8; i++ {
		amount[i] = byte(uint64(b.Amount) >> (8 * i))
	}
	buf = append(buf, amount[:]...)
	return buf
}

// ParseBurnPayload decodes and validates a raw 51-byte burn payload.
func ParseBurnPayload(data []byte) (BurnData, error) {
	if len(data) != burnPayloadSize {
		return BurnData{}, fmt.Errorf("%w: payload is %d bytes, want %d", ErrInvalidBurnPayload, len(data), burnPayloadSize)
	}
	if !bytes.Equal(data[:len(burnMarker)], burnMarker) {
		return BurnData{}, fmt.Errorf("%w: bad marker", ErrInvalidBurnPayload)
	}
	rest := data[len(burnMarker):]

	var chainID uint32
	for i := 0; i < 4; i++ {
		chainID |= uint32(rest[i]) << (8 * i)
	}
	rest = rest[4:]

	var pk [33]byte
	copy(pk[:], rest[:33])
	rest = rest[33:]

	var amountU uint64
	for i := 0; i < 8; i++ {
		amountU |= uint64(rest[i]) << (8 * i)
	}

	b := BurnData{ChainID: chainID, RecipientPubKey: pk, Amount: int64(amountU)}
	if err := b.Validate(); err != nil {
		return BurnData{}, err
	}
	return b, nil
}

// CreateBurnScript builds the OP_RETURN output script carrying a burn
// payload for the given chain, recipient public key and amount.
func CreateBurnScript(chainID uint32, pubkey [33]byte, amount Amount) ([]byte, error) {
	b := BurnData{ChainID: chainID, RecipientPubKey: pubkey, Amount: amount}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(encodeBurnPayload(b)).
		Script()
}

// opReturnPayload extracts the single data push following an OP_RETURN
// opcode, or reports false if pkScript is not of that exact shape.
func opReturnPayload(pkScript []byte) ([]byte, bool) {
	tok := txscript.MakeScriptTokenizer(0, pkScript)
	if !tok.Next() || tok.Opcode() != txscript.OP_RETURN {
		return nil, false
	}
	if !tok.Next() {
		return nil, false
	}
	data := tok.Data()
	if tok.Next() {
		return nil, false
	}
	if tok.Err() != nil {
		return nil, false
	}
	return data, true
}

// GetBurnOutputIndex scans tx's outputs in order and returns the index of
// the first valid burn output, or -1 if none is found.
func GetBurnOutputIndex(tx *wire.MsgTx) int {
	for i, out := range tx.TxOut {
		data, ok := opReturnPayload(out.PkScript)
		if !ok {
			continue
		}
		if _, err := ParseBurnPayload(data); err == nil {
			return i
		}
	}
	return -1
}

// ParseBurnTransaction scans all of tx's outputs in order and returns the
// first valid burn payload found, together with its output index.
func ParseBurnTransaction(tx *wire.MsgTx) (BurnData, int, bool) {
	idx := GetBurnOutputIndex(tx)
	if idx < 0 {
		return BurnData{}, -1, false
	}
	data, _ := opReturnPayload(tx.TxOut[idx].PkScript)
	b, err := ParseBurnPayload(data)
	if err != nil {
		return BurnData{}, -1, false
	}
	return b, idx, true
}

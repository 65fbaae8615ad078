package core

// sign.go – compact recoverable ECDSA signing/verification shared by
// MintConfirmation and L2Transaction.
//
// Grounded on btcsuite/btcd's own compact-signature convention (the format
// used throughout the L1 tooling this bridge talks to): btcec/v2/ecdsa's
// SignCompact/RecoverCompact, which fold the recovery id into the leading
// byte of a 65-byte signature so a verifier can recover the signer's public
// key without it being carried alongside the signature.

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
)

// SignCompact signs digest with priv and returns the 65-byte compact,
// recoverable signature.
func SignCompact(priv *btcec.PrivateKey, digest Hash) []byte {
	return ecdsa.SignCompact(priv, digest[:], true)
}

// RecoverCompactPubKey recovers the compressed public key that produced sig
// over digest.
func RecoverCompactPubKey(sig []byte, digest Hash) (*btcec.PublicKey, error) {
	pub, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// PubKeyToAddress derives the 160-bit account address for a compressed
// public key: Hash160(pubkey), matching the data model's address derivation
// rule.
func PubKeyToAddress(pub *btcec.PublicKey) Address {
	h := btcutil.Hash160(pub.SerializeCompressed())
	var a Address
	copy(a[:], h)
	return a
}

// VerifyCompactSignature recovers the signer from sig over digest and
// reports whether the derived address matches want.
func VerifyCompactSignature(sig []byte, digest Hash, want Address) bool {
	pub, err := RecoverCompactPubKey(sig, digest)
	if err != nil {
		return false
	}
	return PubKeyToAddress(pub) == want
}

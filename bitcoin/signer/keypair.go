// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// KeyPair describes signing capability over secp256k1 key used by Signer.
type KeyPair interface {
	// PubKey returns public part of the key pair.
	PubKey() *btcec.PublicKey
	// SignSchnorr returns serialized BIP-340 signature of the 32 bytes digest.
	SignSchnorr(digest []byte) ([]byte, error)
	// TapTweak returns key pair tweaked by BIP-341 taproot tweak for the merkle root.
	// Nil merkle root means key path only output.
	TapTweak(merkleRoot []byte) KeyPair
}

// PrivateKeyPair is KeyPair implementation over in memory btcec private key.
type PrivateKeyPair struct {
	privateKey *btcec.PrivateKey
}

// ensures that PrivateKeyPair implements KeyPair.
var _ KeyPair = (*PrivateKeyPair)(nil)

// NewKeyPair is a constructor for PrivateKeyPair.
func NewKeyPair(privateKey *btcec.PrivateKey) *PrivateKeyPair {
	return &PrivateKeyPair{privateKey: privateKey}
}

// PubKey returns public key of the pair.
func (kp *PrivateKeyPair) PubKey() *btcec.PublicKey {
	return kp.privateKey.PubKey()
}

// SignSchnorr signs digest with deterministic nonce.
func (kp *PrivateKeyPair) SignSchnorr(digest []byte) ([]byte, error) {
	sig, err := schnorr.Sign(kp.privateKey, digest)
	if err != nil {
		return nil, err
	}

	return sig.Serialize(), nil
}

// TapTweak returns new key pair with private key tweaked as described in BIP-341,
// original private key stays untouched.
func (kp *PrivateKeyPair) TapTweak(merkleRoot []byte) KeyPair {
	var (
		pubKey     = kp.privateKey.PubKey()
		privScalar btcec.ModNScalar
		tweak      btcec.ModNScalar
	)

	privScalar.Set(&kp.privateKey.Key)
	// x-only keys imply even y, so odd keys are negated before tweaking.
	if pubKey.Y().Bit(0) == 1 {
		privScalar.Negate()
	}

	tweakHash := chainhash.TaggedHash(chainhash.TagTapTweak, schnorr.SerializePubKey(pubKey), merkleRoot)
	tweak.SetByteSlice(tweakHash[:])
	privScalar.Add(&tweak)

	return &PrivateKeyPair{privateKey: btcec.PrivKeyFromScalar(&privScalar)}
}

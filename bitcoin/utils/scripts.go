// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

var (
	// ErrNoLeafScripts defines that tapScript tree can not be built without leaves.
	ErrNoLeafScripts = errors.New("no leaf scripts provided")
	// ErrNoInternalKey defines that psbt input has no taproot internal key.
	ErrNoInternalKey = errors.New("no taproot internal key provided")
)

// NewKeyPathOnlyScript returns P2TR locking script without script tree (BIP-86) for provided internal key.
func NewKeyPathOnlyScript(internalKey *btcec.PublicKey) ([]byte, error) {
	return txscript.PayToTaprootScript(txscript.ComputeTaprootKeyNoScript(internalKey))
}

// MustKeyPathOnlyScript uses NewKeyPathOnlyScript, panics in case of error.
func MustKeyPathOnlyScript(internalKey *btcec.PublicKey) []byte {
	script, err := NewKeyPathOnlyScript(internalKey)
	if err != nil {
		panic(err)
	}

	return script
}

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided raw leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, ErrNoLeafScripts
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// UpdatePSBTInputWithTapScriptLeafData updates provided psbt input with all data needed to sign taproot utxo
// through the single leaf tree built from leafScript.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, leafScript []byte) error {
	if len(input.TaprootInternalKey) == 0 {
		return ErrNoInternalKey
	}

	tapScriptTree, err := NewTapScriptTreeFromRawScripts(leafScript)
	if err != nil {
		return err
	}

	internalKey, err := schnorr.ParsePubKey(input.TaprootInternalKey)
	if err != nil {
		return err
	}

	tapLeaf := tapScriptTree.LeafMerkleProofs[0].TapLeaf
	ctrlBlock := tapScriptTree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	tapLeafScript := &psbt.TaprootTapLeafScript{
		Script:      tapLeaf.Script,
		LeafVersion: tapLeaf.LeafVersion,
	}
	tapLeafScript.ControlBlock, err = ctrlBlock.ToBytes()
	if err != nil {
		return err
	}

	if len(input.TaprootLeafScript) == 0 {
		input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{tapLeafScript}
	}

	if len(input.TaprootMerkleRoot) == 0 {
		input.TaprootMerkleRoot = ctrlBlock.RootHash(tapLeaf.Script)
	}

	return nil
}

// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// NewKeyPathOnlyAddress generates taproot address without script tree (BIP-86) for provided internal key.
func NewKeyPathOnlyAddress(chainParams *chaincfg.Params, internalKey *btcec.PublicKey) (*btcutil.AddressTaproot, error) {
	outputKey := txscript.ComputeTaprootKeyNoScript(internalKey)

	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), chainParams)
}

// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils_test

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/bitcoin/utils"
)

// leafScript is <32 bytes key> OP_CHECKSIG.
const leafScriptHex = "20f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9ac"

func TestScripts(t *testing.T) {
	_, internalKey := btcec.PrivKeyFromBytes([]byte{0x01, 0x02, 0x03, 0x04})

	leafScript, err := hex.DecodeString(leafScriptHex)
	require.NoError(t, err)

	t.Run("key path only script", func(t *testing.T) {
		script, err := utils.NewKeyPathOnlyScript(internalKey)
		require.NoError(t, err)
		require.True(t, txscript.IsPayToTaproot(script))
		require.Equal(t, schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(internalKey)), script[2:])

		address, err := utils.NewKeyPathOnlyAddress(&chaincfg.SigNetParams, internalKey)
		require.NoError(t, err)

		addressScript, err := txscript.PayToAddrScript(address)
		require.NoError(t, err)
		require.Equal(t, script, addressScript)

		decoded, err := btcutil.DecodeAddress(address.EncodeAddress(), &chaincfg.SigNetParams)
		require.NoError(t, err)
		require.Equal(t, address.EncodeAddress(), decoded.EncodeAddress())
		require.Equal(t, script, utils.MustKeyPathOnlyScript(internalKey))
	})

	t.Run("tree from raw scripts", func(t *testing.T) {
		tree, err := utils.NewTapScriptTreeFromRawScripts(leafScript)
		require.NoError(t, err)
		require.Len(t, tree.LeafMerkleProofs, 1)
		require.Equal(t, txscript.NewBaseTapLeaf(leafScript).TapHash(), tree.RootNode.TapHash())

		_, err = utils.NewTapScriptTreeFromRawScripts()
		require.ErrorIs(t, err, utils.ErrNoLeafScripts)
	})

	t.Run("psbt input leaf data", func(t *testing.T) {
		input := psbt.PInput{TaprootInternalKey: schnorr.SerializePubKey(internalKey)}
		require.NoError(t, utils.UpdatePSBTInputWithTapScriptLeafData(&input, leafScript))
		require.Len(t, input.TaprootLeafScript, 1)
		require.Equal(t, leafScript, input.TaprootLeafScript[0].Script)
		require.Equal(t, txscript.BaseLeafVersion, input.TaprootLeafScript[0].LeafVersion)

		rootHash := txscript.NewBaseTapLeaf(leafScript).TapHash()
		require.Equal(t, rootHash[:], input.TaprootMerkleRoot)

		controlBlock, err := txscript.ParseControlBlock(input.TaprootLeafScript[0].ControlBlock)
		require.NoError(t, err)

		rootHash = txscript.NewBaseTapLeaf(leafScript).TapHash()
		outputKey := txscript.ComputeTaprootOutputKey(internalKey, rootHash[:])
		require.NoError(t, txscript.VerifyTaprootLeafCommitment(controlBlock, schnorr.SerializePubKey(outputKey), leafScript))

		err = utils.UpdatePSBTInputWithTapScriptLeafData(&psbt.PInput{}, leafScript)
		require.ErrorIs(t, err, utils.ErrNoInternalKey)
	})
}

// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
)

const (
	signetTprv = "tprv8ku1y3SPM9kB9aM3RHQ9io5nzHTTWPGXEkgZPL4UC43nJWPrVUJnFBGKGa3pLLZC7W9ZrxJKU7E7Vk62KPFZ4gcQALkZXD8HHso2usVeGNA"
	// signetCommitTx is a7babed711f5caf527bfdd798aba3a8baa712f34db352a6373bc1539f0998388 raw transaction.
	signetCommitTx = "02000000000101e4f9f7495183797e1772e99f5bb9a0e7078b19f87b1e7ebac845dcc2ec36729c0100000000fdffffff02ea020000000000002251209dd086517f25d5ee5062aae53a06054ad88ef06b19995399ca3263cde527205ffdb10a00000000002251203924d7b277700a36a751a518250495b91f883360a1767a4c25d0725a8c73af510140e811da903c3e6ff1a8e3d0ae72af8162b8d3ad590efac1e5ac5cfa7f47fd1c8a8252706ceef3ef071c4a7fd5296d10c887ac46de08e6a934e518f6eb575613ea00000000"
	signetFundingValue = 701871
)

func TestSigner(t *testing.T) {
	s := signer.NewSigner()

	privKey, _ := btcec.PrivKeyFromBytes(mustHex("0f7a3bd1e5b3a8c2d4e6f8091a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d"))
	pubKey := privKey.PubKey()
	keyPair := signer.NewKeyPair(privKey)

	envelope := inscriptions.MustEnvelope([]byte("text/plain;charset=utf-8"), []byte(`{"p":"brc-20","op":"mint","tick":"ordi","amt":"1000"}`), pubKey)
	commitScript, err := envelope.CommitScript()
	require.NoError(t, err)

	keyPathScript, err := txscript.PayToTaprootScript(txscript.ComputeTaprootKeyNoScript(pubKey))
	require.NoError(t, err)

	newTx := func() *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(mustHash("5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"), 0), nil, nil))
		tx.AddTxOut(wire.NewTxOut(43000, mustHex("512015ae9a1bdfb273684b8c1107cc2dccf51f2235d8c79fe8b8e6555ad826415011")))

		return tx
	}

	t.Run("key path", func(t *testing.T) {
		tx := newTx()
		prevOuts := []*wire.TxOut{wire.NewTxOut(50000, keyPathScript)}

		signedTx, err := s.SignKeyPath(tx, prevOuts, keyPair)
		require.NoError(t, err)
		require.Len(t, signedTx.TxIn[0].Witness, 1)
		require.Len(t, signedTx.TxIn[0].Witness[0], schnorr.SignatureSize)
		require.Empty(t, tx.TxIn[0].Witness)

		verify(t, signedTx, prevOuts)

		fetcher := txscript.NewCannedPrevOutputFetcher(keyPathScript, 50000)
		sigHash, err := txscript.CalcTaprootSignatureHash(txscript.NewTxSigHashes(signedTx, fetcher), txscript.SigHashDefault, signedTx, 0, fetcher)
		require.NoError(t, err)

		sig, err := schnorr.ParseSignature(signedTx.TxIn[0].Witness[0])
		require.NoError(t, err)
		require.True(t, sig.Verify(sigHash, txscript.ComputeTaprootKeyNoScript(pubKey)))
	})

	t.Run("script path", func(t *testing.T) {
		tx := newTx()
		prevOuts := []*wire.TxOut{wire.NewTxOut(746, commitScript)}

		signedTx, err := s.SignScriptPath(tx, prevOuts, keyPair, envelope)
		require.NoError(t, err)

		witness := signedTx.TxIn[0].Witness
		require.Len(t, witness, 3)
		require.Equal(t, envelope.Script(), []byte(witness[1]))
		require.Equal(t, envelope.SpendInfo().ControlBlock, []byte(witness[2]))

		verify(t, signedTx, prevOuts)

		fetcher := txscript.NewCannedPrevOutputFetcher(commitScript, 746)
		sigHash, err := txscript.CalcTapscriptSignaturehash(txscript.NewTxSigHashes(signedTx, fetcher), txscript.SigHashDefault, signedTx, 0, fetcher, envelope.TapLeaf())
		require.NoError(t, err)

		sig, err := schnorr.ParseSignature(witness[0])
		require.NoError(t, err)
		require.True(t, sig.Verify(sigHash, pubKey))
	})

	t.Run("script path with raw script", func(t *testing.T) {
		prevOuts := []*wire.TxOut{wire.NewTxOut(746, commitScript)}

		fromEnvelope, err := s.SignScriptPath(newTx(), prevOuts, keyPair, envelope)
		require.NoError(t, err)

		fromScript, err := s.Sign(signer.SignParams{
			Tx:       newTx(),
			PrevOuts: prevOuts,
			Mode:     signer.ScriptPath,
			KeyPair:  keyPair,
			Script:   envelope.Script(),
		})
		require.NoError(t, err)
		require.Equal(t, fromEnvelope.TxIn[0].Witness, fromScript.TxIn[0].Witness)
	})

	t.Run("deterministic", func(t *testing.T) {
		prevOuts := []*wire.TxOut{wire.NewTxOut(50000, keyPathScript)}

		first, err := s.SignKeyPath(newTx(), prevOuts, keyPair)
		require.NoError(t, err)

		second, err := s.SignKeyPath(newTx(), prevOuts, keyPair)
		require.NoError(t, err)
		require.Equal(t, first.TxIn[0].Witness, second.TxIn[0].Witness)
	})

	t.Run("second input", func(t *testing.T) {
		tx := newTx()
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(mustHash("5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"), 1), nil, nil))
		prevOuts := []*wire.TxOut{wire.NewTxOut(1000, keyPathScript), wire.NewTxOut(50000, keyPathScript)}

		signedTx, err := s.Sign(signer.SignParams{
			Tx:         tx,
			PrevOuts:   prevOuts,
			InputIndex: 1,
			Mode:       signer.KeyPath,
			KeyPair:    keyPair,
		})
		require.NoError(t, err)
		require.Empty(t, signedTx.TxIn[0].Witness)
		require.Len(t, signedTx.TxIn[1].Witness, 1)
		require.Equal(t, tx.TxHash(), signedTx.TxHash())
	})

	t.Run("errors", func(t *testing.T) {
		prevOuts := []*wire.TxOut{wire.NewTxOut(50000, keyPathScript)}

		tests := []struct {
			name   string
			params signer.SignParams
			err    error
		}{
			{"no transaction", signer.SignParams{PrevOuts: prevOuts, KeyPair: keyPair}, signer.ErrNoTransaction},
			{"no key pair", signer.SignParams{Tx: newTx(), PrevOuts: prevOuts}, signer.ErrNoKeyPair},
			{"no previous outputs", signer.SignParams{Tx: newTx(), KeyPair: keyPair}, signer.ErrPrevOutsMismatch},
			{"too many previous outputs", signer.SignParams{Tx: newTx(), PrevOuts: append(prevOuts, prevOuts[0]), KeyPair: keyPair}, signer.ErrPrevOutsMismatch},
			{"nil previous output", signer.SignParams{Tx: newTx(), PrevOuts: []*wire.TxOut{nil}, KeyPair: keyPair}, signer.ErrPrevOutsMismatch},
			{"input index", signer.SignParams{Tx: newTx(), PrevOuts: prevOuts, KeyPair: keyPair, InputIndex: 1}, signer.ErrInvalidInputIndex},
			{"negative input index", signer.SignParams{Tx: newTx(), PrevOuts: prevOuts, KeyPair: keyPair, InputIndex: -1}, signer.ErrInvalidInputIndex},
			{"no leaf script", signer.SignParams{Tx: newTx(), PrevOuts: prevOuts, KeyPair: keyPair, Mode: signer.ScriptPath}, signer.ErrNoLeafScript},
			{"unknown mode", signer.SignParams{Tx: newTx(), PrevOuts: prevOuts, KeyPair: keyPair, Mode: signer.SpendingMode(7)}, signer.ErrUnknownSpendingMode},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				_, err := s.Sign(test.params)
				require.ErrorIs(t, err, test.err)
			})
		}
	})

	t.Run("psbt script path", func(t *testing.T) {
		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		spendInfo := envelope.SpendInfo()
		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(746, commitScript)
		packet.Inputs[0].TaprootInternalKey = schnorr.SerializePubKey(pubKey)
		packet.Inputs[0].TaprootMerkleRoot = spendInfo.MerkleRoot[:]
		packet.Inputs[0].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
			ControlBlock: spendInfo.ControlBlock,
			Script:       envelope.Script(),
			LeafVersion:  txscript.BaseLeafVersion,
		}}

		signedTx := signPSBT(t, s, packet, keyPair)
		require.Len(t, signedTx.TxIn[0].Witness, 3)

		verify(t, signedTx, []*wire.TxOut{wire.NewTxOut(746, commitScript)})
	})

	t.Run("psbt key path", func(t *testing.T) {
		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(50000, keyPathScript)
		packet.Inputs[0].TaprootInternalKey = schnorr.SerializePubKey(pubKey)

		signedTx := signPSBT(t, s, packet, keyPair)
		require.Len(t, signedTx.TxIn[0].Witness, 1)

		verify(t, signedTx, []*wire.TxOut{wire.NewTxOut(50000, keyPathScript)})
	})

	t.Run("psbt errors", func(t *testing.T) {
		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		packetBytes := bytes.NewBuffer(nil)
		require.NoError(t, packet.Serialize(packetBytes))

		_, err = s.SignPSBT(signer.SignPSBTParams{SerializedPSBT: packetBytes.Bytes(), Inputs: []int{0}, KeyPair: keyPair})
		require.ErrorIs(t, err, signer.ErrPrevOutsMismatch)

		_, err = s.SignPSBT(signer.SignPSBTParams{SerializedPSBT: packetBytes.Bytes(), Inputs: []int{0}})
		require.ErrorIs(t, err, signer.ErrNoKeyPair)

		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(50000, keyPathScript)
		packetBytes.Reset()
		require.NoError(t, packet.Serialize(packetBytes))

		_, err = s.SignPSBT(signer.SignPSBTParams{SerializedPSBT: packetBytes.Bytes(), Inputs: []int{1}, KeyPair: keyPair})
		require.ErrorIs(t, err, signer.ErrInvalidInputIndex)
	})

	t.Run("signet commit", func(t *testing.T) {
		extendedKey, err := hdkeychain.NewKeyFromString(signetTprv)
		require.NoError(t, err)

		signetPrivKey, err := extendedKey.ECPrivKey()
		require.NoError(t, err)

		recorded := new(wire.MsgTx)
		require.NoError(t, recorded.Deserialize(bytes.NewReader(mustHex(signetCommitTx))))

		// change output pays to the key path only output of the same key.
		prevOuts := []*wire.TxOut{wire.NewTxOut(signetFundingValue, recorded.TxOut[1].PkScript)}
		verify(t, recorded, prevOuts)

		unsigned := recorded.Copy()
		unsigned.TxIn[0].Witness = nil

		signedTx, err := s.SignKeyPath(unsigned, prevOuts, signer.NewKeyPair(signetPrivKey))
		require.NoError(t, err)
		require.Equal(t, "a7babed711f5caf527bfdd798aba3a8baa712f34db352a6373bc1539f0998388", signedTx.TxHash().String())

		verify(t, signedTx, prevOuts)
	})
}

func TestKeyPair(t *testing.T) {
	merkleRoot := chainhash.HashB([]byte("leaf"))

	for i := byte(1); i <= 8; i++ {
		privKeyBytes := chainhash.HashB([]byte{i})
		privKey, pubKey := btcec.PrivKeyFromBytes(privKeyBytes)
		keyPair := signer.NewKeyPair(privKey)

		require.True(t, keyPair.PubKey().IsEqual(pubKey))

		tweaked := keyPair.TapTweak(nil)
		require.Equal(t,
			schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pubKey)),
			schnorr.SerializePubKey(tweaked.PubKey()),
		)

		tweakedWithRoot := keyPair.TapTweak(merkleRoot)
		require.Equal(t,
			schnorr.SerializePubKey(txscript.ComputeTaprootOutputKey(pubKey, merkleRoot)),
			schnorr.SerializePubKey(tweakedWithRoot.PubKey()),
		)

		// original key is not modified by tweaking.
		require.Equal(t, privKeyBytes, privKey.Serialize())

		digest := chainhash.HashB([]byte("digest"))
		sigBytes, err := tweaked.SignSchnorr(digest)
		require.NoError(t, err)

		sig, err := schnorr.ParseSignature(sigBytes)
		require.NoError(t, err)
		require.True(t, sig.Verify(digest, tweaked.PubKey()))
	}
}

func signPSBT(t *testing.T, s *signer.Signer, packet *psbt.Packet, keyPair signer.KeyPair) *wire.MsgTx {
	packetBytes := bytes.NewBuffer(nil)
	require.NoError(t, packet.Serialize(packetBytes))

	signedPSBTBytes, err := s.SignPSBT(signer.SignPSBTParams{
		SerializedPSBT: packetBytes.Bytes(),
		Inputs:         []int{0},
		KeyPair:        keyPair,
	})
	require.NoError(t, err)

	signedPSBT, err := psbt.NewFromRawBytes(bytes.NewReader(signedPSBTBytes), false)
	require.NoError(t, err)
	require.NoError(t, psbt.Finalize(signedPSBT, 0))

	signedTx, err := psbt.Extract(signedPSBT)
	require.NoError(t, err)

	return signedTx
}

func verify(t *testing.T, tx *wire.MsgTx, prevOuts []*wire.TxOut) {
	fetcherMap := make(map[wire.OutPoint]*wire.TxOut, len(prevOuts))
	for idx, prevOut := range prevOuts {
		fetcherMap[tx.TxIn[idx].PreviousOutPoint] = prevOut
	}

	fetcher := txscript.NewMultiPrevOutFetcher(fetcherMap)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, prevOut := range prevOuts {
		if len(tx.TxIn[idx].Witness) == 0 {
			continue
		}

		vm, err := txscript.NewEngine(
			prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags,
			nil, sigHashes, prevOut.Value, fetcher,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute())
	}
}

func mustHex(s string) []byte {
	b, _ := hex.DecodeString(s)

	return b
}

func mustHash(s string) *chainhash.Hash {
	h, _ := chainhash.NewHashFromStr(s)

	return h
}

// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
)

var (
	// ErrNoTransaction defines that transaction to sign is missing.
	ErrNoTransaction = errors.New("no transaction provided")
	// ErrNoKeyPair defines that key pair to sign with is missing.
	ErrNoKeyPair = errors.New("no key pair provided")
	// ErrPrevOutsMismatch defines that previous outputs do not match transaction inputs.
	ErrPrevOutsMismatch = errors.New("previous outputs do not match transaction inputs")
	// ErrInvalidInputIndex defines that input index is out of transaction inputs range.
	ErrInvalidInputIndex = errors.New("invalid input index")
	// ErrNoLeafScript defines that script path spend has no leaf script to sign.
	ErrNoLeafScript = errors.New("no leaf script provided")
	// ErrUnknownSpendingMode defines that spending mode is not supported.
	ErrUnknownSpendingMode = errors.New("unknown spending mode")
	// ErrSigHash defines that signature hash could not be computed.
	ErrSigHash = errors.New("could not compute signature hash")
)

// SpendingMode defines the way taproot output is spent.
type SpendingMode int

const (
	// KeyPath defines spend with the tweaked output key signature.
	KeyPath SpendingMode = iota
	// ScriptPath defines spend with the untweaked key through a revealed leaf script.
	ScriptPath
)

// String returns spending mode name.
func (m SpendingMode) String() string {
	switch m {
	case KeyPath:
		return "key-path"
	case ScriptPath:
		return "script-path"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// SignParams defines parameters for Sign method.
type SignParams struct {
	Tx         *wire.MsgTx
	PrevOuts   []*wire.TxOut // outputs spent by Tx inputs, in inputs order.
	InputIndex int
	Mode       SpendingMode
	KeyPair    KeyPair
	// Envelope is used for ScriptPath, its script and control block are placed into the witness.
	Envelope *inscriptions.Envelope
	// Script is used for ScriptPath when Envelope is not set,
	// control block is computed for single leaf tree with KeyPair public key.
	Script []byte
}

// SignPSBTParams defines parameters for SignPSBT method.
type SignPSBTParams struct {
	SerializedPSBT []byte
	Inputs         []int // inputs indexes.
	KeyPair        KeyPair
}

// signPSBTInputParams defines parameters for signPSBTInput method.
type signPSBTInputParams struct {
	packet       *psbt.Packet
	input        int
	inputFetcher txscript.PrevOutputFetcher
	keyPair      KeyPair
}

// Signer provides transaction signing related logic.
type Signer struct{}

// NewSigner is a constructor for Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// SignKeyPath signs first input of the transaction with tweaked key.
func (signer *Signer) SignKeyPath(tx *wire.MsgTx, prevOuts []*wire.TxOut, keyPair KeyPair) (*wire.MsgTx, error) {
	return signer.Sign(SignParams{
		Tx:       tx,
		PrevOuts: prevOuts,
		Mode:     KeyPath,
		KeyPair:  keyPair,
	})
}

// SignScriptPath signs first input of the transaction through the envelope leaf.
func (signer *Signer) SignScriptPath(tx *wire.MsgTx, prevOuts []*wire.TxOut, keyPair KeyPair, envelope *inscriptions.Envelope) (*wire.MsgTx, error) {
	return signer.Sign(SignParams{
		Tx:       tx,
		PrevOuts: prevOuts,
		Mode:     ScriptPath,
		KeyPair:  keyPair,
		Envelope: envelope,
	})
}

// Sign signs single taproot input with SigHashDefault, returns signed copy of the transaction.
// Only witness of the signed input differs from provided transaction.
func (signer *Signer) Sign(params SignParams) (*wire.MsgTx, error) {
	if params.Tx == nil {
		return nil, ErrNoTransaction
	}
	if params.KeyPair == nil {
		return nil, ErrNoKeyPair
	}
	if len(params.PrevOuts) != len(params.Tx.TxIn) {
		return nil, fmt.Errorf("%w: %d previous outputs for %d inputs", ErrPrevOutsMismatch, len(params.PrevOuts), len(params.Tx.TxIn))
	}
	if params.InputIndex < 0 || params.InputIndex >= len(params.Tx.TxIn) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInputIndex, params.InputIndex)
	}

	var (
		tx                   = params.Tx.Copy()
		prevOutputFetcherMap = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	)
	for idx, prevOut := range params.PrevOuts {
		if prevOut == nil {
			return nil, fmt.Errorf("%w: no previous output for input %d", ErrPrevOutsMismatch, idx)
		}

		prevOutputFetcherMap[tx.TxIn[idx].PreviousOutPoint] = prevOut
	}

	var (
		prevOutputFetcher = txscript.NewMultiPrevOutFetcher(prevOutputFetcherMap)
		sigHashes         = txscript.NewTxSigHashes(tx, prevOutputFetcher)
		witness           wire.TxWitness
		err               error
	)
	switch params.Mode {
	case KeyPath:
		witness, err = signKeyPath(tx, params.InputIndex, sigHashes, prevOutputFetcher, params.KeyPair)
	case ScriptPath:
		witness, err = signScriptPath(tx, params.InputIndex, sigHashes, prevOutputFetcher, params)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpendingMode, params.Mode)
	}
	if err != nil {
		return nil, err
	}

	tx.TxIn[params.InputIndex].Witness = witness

	return tx, nil
}

// signKeyPath returns key path witness: [signature].
func signKeyPath(tx *wire.MsgTx, idx int, sigHashes *txscript.TxSigHashes, fetcher txscript.PrevOutputFetcher, keyPair KeyPair) (wire.TxWitness, error) {
	sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, idx, fetcher)
	if err != nil {
		return nil, errors.Join(ErrSigHash, err)
	}

	sig, err := keyPair.TapTweak(nil).SignSchnorr(sigHash)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig}, nil
}

// signScriptPath returns script path witness: [signature, script, control block].
func signScriptPath(tx *wire.MsgTx, idx int, sigHashes *txscript.TxSigHashes, fetcher txscript.PrevOutputFetcher, params SignParams) (wire.TxWitness, error) {
	tapLeaf, ctrlBlock, err := leafWithControlBlock(params)
	if err != nil {
		return nil, err
	}

	sigHash, err := txscript.CalcTapscriptSignaturehash(sigHashes, txscript.SigHashDefault, tx, idx, fetcher, tapLeaf)
	if err != nil {
		return nil, errors.Join(ErrSigHash, err)
	}

	sig, err := params.KeyPair.SignSchnorr(sigHash)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig, tapLeaf.Script, ctrlBlock}, nil
}

// leafWithControlBlock returns leaf to spend and its control block, envelope data has priority over raw script.
func leafWithControlBlock(params SignParams) (txscript.TapLeaf, []byte, error) {
	if params.Envelope != nil {
		return params.Envelope.TapLeaf(), params.Envelope.SpendInfo().ControlBlock, nil
	}

	if len(params.Script) == 0 {
		return txscript.TapLeaf{}, nil, ErrNoLeafScript
	}

	var (
		tapLeaf       = txscript.NewBaseTapLeaf(params.Script)
		tapScriptTree = txscript.AssembleTaprootScriptTree(tapLeaf)
		ctrlBlock     = tapScriptTree.LeafMerkleProofs[0].ToControlBlock(params.KeyPair.PubKey())
	)

	ctrlBlockBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return txscript.TapLeaf{}, nil, err
	}

	return tapLeaf, ctrlBlockBytes, nil
}

// SignPSBT signs taproot inputs by provided indexes, returns updated serialized PSBT.
// Inputs with TaprootLeafScript are signed through the first leaf, others through the key path.
func (signer *Signer) SignPSBT(params SignPSBTParams) ([]byte, error) {
	if params.KeyPair == nil {
		return nil, ErrNoKeyPair
	}

	packet, err := psbt.NewFromRawBytes(bytes.NewBuffer(params.SerializedPSBT), false)
	if err != nil {
		return nil, err
	}

	var (
		tx                   = packet.UnsignedTx
		prevOutputFetcherMap = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	)
	for idx, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return nil, fmt.Errorf("%w: no witness utxo for input %d", ErrPrevOutsMismatch, idx)
		}

		prevOutputFetcherMap[tx.TxIn[idx].PreviousOutPoint] = in.WitnessUtxo
	}

	var prevOutputFetcher = txscript.NewMultiPrevOutFetcher(prevOutputFetcherMap)
	for _, input := range params.Inputs {
		if input < 0 || len(packet.Inputs) <= input {
			return nil, fmt.Errorf("%w: %d", ErrInvalidInputIndex, input)
		}

		err = signer.signPSBTInput(signPSBTInputParams{
			packet:       packet,
			input:        input,
			inputFetcher: prevOutputFetcher,
			keyPair:      params.KeyPair,
		})
		if err != nil {
			return nil, err
		}
	}

	w := bytes.NewBuffer(nil)
	err = packet.Serialize(w)
	if err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// signPSBTInput signs psbt taproot input through leaf script or key path.
func (signer *Signer) signPSBTInput(params signPSBTInputParams) error {
	var (
		input     = &params.packet.Inputs[params.input]
		tx        = params.packet.UnsignedTx
		sigHashes = txscript.NewTxSigHashes(tx, params.inputFetcher)
	)

	if len(input.TaprootLeafScript) != 0 {
		leafScript := input.TaprootLeafScript[0]
		tapLeaf := txscript.NewTapLeaf(leafScript.LeafVersion, leafScript.Script)
		sigHash, err := txscript.CalcTapscriptSignaturehash(sigHashes, txscript.SigHashDefault, tx, params.input, params.inputFetcher, tapLeaf)
		if err != nil {
			return errors.Join(ErrSigHash, err)
		}

		sig, err := params.keyPair.SignSchnorr(sigHash)
		if err != nil {
			return err
		}

		leafHash := tapLeaf.TapHash()
		input.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
			XOnlyPubKey: schnorr.SerializePubKey(params.keyPair.PubKey()),
			LeafHash:    leafHash.CloneBytes(),
			Signature:   sig,
			SigHash:     txscript.SigHashDefault,
		}}

		return nil
	}

	sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, params.input, params.inputFetcher)
	if err != nil {
		return errors.Join(ErrSigHash, err)
	}

	input.TaprootKeySpendSig, err = params.keyPair.TapTweak(input.TaprootMerkleRoot).SignSchnorr(sigHash)

	return err
}

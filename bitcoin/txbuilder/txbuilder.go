// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/utils"
	"github.com/BoostyLabs/inscriber/internal/numbers"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
	// txSequence defines inputs sequence: replace-by-fee enabled, lock time disabled.
	txSequence uint32 = wire.MaxTxInSequenceNum - 2

	// InscriptionOutputIndex defines index of the commit transaction output that carries envelope commitment.
	InscriptionOutputIndex uint32 = 0
	// ChangeOutputIndex defines index of the commit transaction change output.
	ChangeOutputIndex uint32 = 1

	// DefaultDustFloorSats defines default value of the inscription carrying outputs.
	DefaultDustFloorSats int64 = 546
	// DefaultRevealTxSizeEstimateVBytes defines default reveal transaction size the commit output pre-pays.
	DefaultRevealTxSizeEstimateVBytes int64 = 200
)

var (
	// ErrInvalidConfig defines that builder configuration is invalid.
	ErrInvalidConfig = errors.New("invalid tx builder config")
	// ErrNoEnvelope defines that envelope is missing.
	ErrNoEnvelope = errors.New("no envelope provided")
	// ErrNoCommitTx defines that commit transaction is missing.
	ErrNoCommitTx = errors.New("no commit transaction provided")
	// ErrInvalidFeeRate defines that fee rate is missing or negative.
	ErrInvalidFeeRate = errors.New("invalid fee rate")
	// ErrKeyMismatch defines that key pair does not own envelope internal key.
	ErrKeyMismatch = errors.New("key pair does not match envelope internal key")
	// ErrCommitOutputMismatch defines that commit transaction does not commit to the envelope.
	ErrCommitOutputMismatch = errors.New("commit output does not match envelope")

	// schnorrSigPlaceholder replaces key path signature while estimating size without keys.
	schnorrSigPlaceholder = make([]byte, schnorr.SignatureSize)
)

// Config defines configurable policy values of the TxBuilder.
type Config struct {
	DustFloorSats int64
	// RevealTxSizeEstimateVBytes defines reveal size pre-paid by the commit output,
	// 0 means that the size is measured on the placeholder reveal transaction.
	RevealTxSizeEstimateVBytes int64
}

// DefaultConfig returns Config with default values.
func DefaultConfig() Config {
	return Config{
		DustFloorSats:              DefaultDustFloorSats,
		RevealTxSizeEstimateVBytes: DefaultRevealTxSizeEstimateVBytes,
	}
}

// Validate returns error if config values are out of range.
func (c Config) Validate() error {
	if c.DustFloorSats < 0 || c.DustFloorSats > btcutil.MaxSatoshi {
		return fmt.Errorf("%w: dust floor %d", ErrInvalidConfig, c.DustFloorSats)
	}
	if c.RevealTxSizeEstimateVBytes < 0 {
		return fmt.Errorf("%w: reveal tx size estimate %d", ErrInvalidConfig, c.RevealTxSizeEstimateVBytes)
	}

	return nil
}

// CommitParams describes data needed to build commit transaction.
type CommitParams struct {
	UTXO            bitcoin.UTXO // funding output, empty script means key path only output of envelope internal key.
	Envelope        *inscriptions.Envelope
	SatoshiPerVByte *big.Int // fee rate.
	// KeyPair is optional, if set the size is measured on really signed transaction.
	KeyPair signer.KeyPair
}

// PSBTParams describes data needed to convert unsigned transaction to partly signed bitcoin transaction (PSBT).
type PSBTParams struct {
	Unsigned    *UnsignedTx
	InternalKey *btcec.PublicKey
	// Envelope is optional, if set inputs are prepared for the envelope leaf spending.
	Envelope *inscriptions.Envelope
}

// UnsignedTx describes built transaction with data needed to sign it.
type UnsignedTx struct {
	Tx       *wire.MsgTx
	PrevOuts []*wire.TxOut // outputs spent by Tx inputs, in inputs order.
	Fee      *big.Int      // in Satoshi.
	VSize    int64         // estimated size of the signed transaction in vBytes.
}

// TxBuilder provides commit and reveal transactions building related logic.
type TxBuilder struct {
	networkParams *chaincfg.Params
	config        Config
	signer        *signer.Signer
}

// NewTxBuilder is a constructor for TxBuilder.
func NewTxBuilder(networkParams *chaincfg.Params, config Config) *TxBuilder {
	return &TxBuilder{
		networkParams: networkParams,
		config:        config,
		signer:        signer.NewSigner(),
	}
}

// Config returns builder configuration.
func (b *TxBuilder) Config() Config {
	return b.config
}

// CommitAddress returns address commit transaction sends inscription output to.
func (b *TxBuilder) CommitAddress(envelope *inscriptions.Envelope) (string, error) {
	if envelope == nil {
		return "", ErrNoEnvelope
	}

	address, err := envelope.Address(b.networkParams)
	if err != nil {
		return "", err
	}

	return address.EncodeAddress(), nil
}

// RecipientAddress returns key path only address of the envelope internal key,
// both commit change and revealed inscription are sent to it.
func (b *TxBuilder) RecipientAddress(envelope *inscriptions.Envelope) (string, error) {
	if envelope == nil {
		return "", ErrNoEnvelope
	}

	address, err := utils.NewKeyPathOnlyAddress(b.networkParams, envelope.InternalKey())
	if err != nil {
		return "", err
	}

	return address.EncodeAddress(), nil
}

// BuildCommit constructs commit transaction that locks funds to the envelope commitment.
// Change lower than the dust floor is not added to fee, such funding is rejected
// with InsufficientError as nodes do not relay transactions with dust outputs.
// KeyPair, if set, must own the envelope internal key.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ funding      │ utxo spent through the key path        │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ inscription  │ P2TR(internal key, envelope root),     │
//	│         │              │ dust floor + reveal fee.               │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ P2TR(internal key), funding left after │
//	│         │              │ inscription output and commit fee.     │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildCommit(params CommitParams) (*UnsignedTx, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if params.Envelope == nil {
		return nil, ErrNoEnvelope
	}
	if params.KeyPair != nil && !params.KeyPair.PubKey().IsEqual(params.Envelope.InternalKey()) {
		return nil, ErrKeyMismatch
	}
	if params.SatoshiPerVByte == nil || numbers.IsNegative(params.SatoshiPerVByte) {
		return nil, ErrInvalidFeeRate
	}

	outPoint, err := params.UTXO.OutPoint()
	if err != nil {
		return nil, err
	}
	if !numbers.IsSatoshiAmount(params.UTXO.Amount) {
		return nil, fmt.Errorf("%w: utxo amount %s", bitcoin.ErrAmountOverflow, params.UTXO.Amount)
	}

	revealSize, err := b.revealSize(params.Envelope)
	if err != nil {
		return nil, err
	}

	inscriptionAmount := new(big.Int).Mul(params.SatoshiPerVByte, big.NewInt(revealSize))
	inscriptionAmount.Add(inscriptionAmount, big.NewInt(b.config.DustFloorSats))
	if !numbers.IsSatoshiAmount(inscriptionAmount) {
		return nil, fmt.Errorf("%w: inscription output %s", bitcoin.ErrAmountOverflow, inscriptionAmount)
	}

	commitScript, err := params.Envelope.CommitScript()
	if err != nil {
		return nil, err
	}

	changeScript, err := utils.NewKeyPathOnlyScript(params.Envelope.InternalKey())
	if err != nil {
		return nil, err
	}

	prevOutScript := params.UTXO.Script
	if len(prevOutScript) == 0 {
		prevOutScript = changeScript
	}
	prevOuts := []*wire.TxOut{wire.NewTxOut(params.UTXO.Amount.Int64(), prevOutScript)}

	tx := wire.NewMsgTx(txVersion)
	txIn := wire.NewTxIn(outPoint, nil, nil)
	txIn.Sequence = txSequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(inscriptionAmount.Int64(), commitScript))
	// change is zero until fee is known.
	tx.AddTxOut(wire.NewTxOut(0, changeScript))

	vSize, err := b.keyPathVSize(tx, prevOuts, params.KeyPair)
	if err != nil {
		return nil, err
	}

	fee := new(big.Int).Mul(params.SatoshiPerVByte, big.NewInt(vSize))
	need := new(big.Int).Add(inscriptionAmount, fee)
	change := new(big.Int).Sub(params.UTXO.Amount, need)
	if numbers.IsLess(change, big.NewInt(b.config.DustFloorSats)) {
		need.Add(need, big.NewInt(b.config.DustFloorSats))

		return nil, errInsufficientBitcoin.clarify(need, params.UTXO.Amount).setCauser(CauserFundingUTXO)
	}

	tx.TxOut[ChangeOutputIndex].Value = change.Int64()

	return &UnsignedTx{
		Tx:       tx,
		PrevOuts: prevOuts,
		Fee:      fee,
		VSize:    vSize,
	}, nil
}

// BuildReveal constructs reveal transaction that spends commit transaction inscription output through the envelope leaf.
// Output pays dust floor to the key path only output of the envelope internal key,
// the rest of the inscription output goes to fee.
func (b *TxBuilder) BuildReveal(commitTx *wire.MsgTx, envelope *inscriptions.Envelope) (*UnsignedTx, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if commitTx == nil {
		return nil, ErrNoCommitTx
	}
	if envelope == nil {
		return nil, ErrNoEnvelope
	}

	commitScript, err := envelope.CommitScript()
	if err != nil {
		return nil, err
	}

	if len(commitTx.TxOut) <= int(InscriptionOutputIndex) {
		return nil, fmt.Errorf("%w: no output %d", ErrCommitOutputMismatch, InscriptionOutputIndex)
	}

	commitOut := commitTx.TxOut[InscriptionOutputIndex]
	if !bytes.Equal(commitOut.PkScript, commitScript) {
		return nil, fmt.Errorf("%w: unexpected script %x", ErrCommitOutputMismatch, commitOut.PkScript)
	}
	if commitOut.Value < b.config.DustFloorSats {
		return nil, errInsufficientBitcoin.
			clarify(big.NewInt(b.config.DustFloorSats), big.NewInt(commitOut.Value)).
			setCauser(CauserCommitOutput)
	}

	tx, err := b.revealTx(commitTx.TxHash(), envelope)
	if err != nil {
		return nil, err
	}

	vSize := scriptPathVSize(tx, envelope)

	return &UnsignedTx{
		Tx:       tx,
		PrevOuts: []*wire.TxOut{wire.NewTxOut(commitOut.Value, commitOut.PkScript)},
		Fee:      big.NewInt(commitOut.Value - b.config.DustFloorSats),
		VSize:    vSize,
	}, nil
}

// BuildRevealPSBT constructs reveal transaction and returns it as serialized PSBT ready for script path signing.
func (b *TxBuilder) BuildRevealPSBT(commitTx *wire.MsgTx, envelope *inscriptions.Envelope) ([]byte, error) {
	unsigned, err := b.BuildReveal(commitTx, envelope)
	if err != nil {
		return nil, err
	}

	return b.IntoPSBT(PSBTParams{
		Unsigned:    unsigned,
		InternalKey: envelope.InternalKey(),
		Envelope:    envelope,
	})
}

// IntoPSBT returns serialised PSBT from unsigned transaction.
func (b *TxBuilder) IntoPSBT(params PSBTParams) ([]byte, error) {
	if params.Unsigned == nil || params.Unsigned.Tx == nil {
		return nil, signer.ErrNoTransaction
	}
	if len(params.Unsigned.PrevOuts) != len(params.Unsigned.Tx.TxIn) {
		return nil, signer.ErrPrevOutsMismatch
	}
	if params.InternalKey == nil {
		return nil, utils.ErrNoInternalKey
	}

	p, err := psbt.NewFromUnsignedTx(params.Unsigned.Tx)
	if err != nil {
		return nil, err
	}

	for i, prevOut := range params.Unsigned.PrevOuts {
		p.Inputs[i].WitnessUtxo = wire.NewTxOut(prevOut.Value, prevOut.PkScript)
		p.Inputs[i].TaprootInternalKey = schnorr.SerializePubKey(params.InternalKey)
		if params.Envelope == nil {
			continue
		}

		err = utils.UpdatePSBTInputWithTapScriptLeafData(&p.Inputs[i], params.Envelope.Script())
		if err != nil {
			return nil, err
		}
	}

	w := bytes.NewBuffer(nil)
	err = p.Serialize(w)
	if err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// revealTx returns unsigned reveal transaction spending inscription output of the commit transaction.
func (b *TxBuilder) revealTx(commitTxHash chainhash.Hash, envelope *inscriptions.Envelope) (*wire.MsgTx, error) {
	outputScript, err := utils.NewKeyPathOnlyScript(envelope.InternalKey())
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	txIn := wire.NewTxIn(wire.NewOutPoint(&commitTxHash, InscriptionOutputIndex), nil, nil)
	txIn.Sequence = txSequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(b.config.DustFloorSats, outputScript))

	return tx, nil
}

// revealSize returns reveal transaction size the commit output pre-pays.
func (b *TxBuilder) revealSize(envelope *inscriptions.Envelope) (int64, error) {
	if b.config.RevealTxSizeEstimateVBytes != 0 {
		return b.config.RevealTxSizeEstimateVBytes, nil
	}

	tx, err := b.revealTx(chainhash.Hash{}, envelope)
	if err != nil {
		return 0, err
	}

	return scriptPathVSize(tx, envelope), nil
}

// keyPathVSize returns size of the transaction with all inputs signed through the key path.
// Signature is real if keyPair is provided, placeholder of the same size otherwise.
func (b *TxBuilder) keyPathVSize(tx *wire.MsgTx, prevOuts []*wire.TxOut, keyPair signer.KeyPair) (int64, error) {
	if keyPair == nil {
		sized := tx.Copy()
		for _, txIn := range sized.TxIn {
			txIn.Witness = wire.TxWitness{schnorrSigPlaceholder}
		}

		return mempool.GetTxVirtualSize(btcutil.NewTx(sized)), nil
	}

	signed := tx
	for idx := range tx.TxIn {
		var err error
		signed, err = b.signer.Sign(signer.SignParams{
			Tx:         signed,
			PrevOuts:   prevOuts,
			InputIndex: idx,
			Mode:       signer.KeyPath,
			KeyPair:    keyPair,
		})
		if err != nil {
			return 0, err
		}
	}

	return mempool.GetTxVirtualSize(btcutil.NewTx(signed)), nil
}

// scriptPathVSize returns size of the transaction with first input spent through the envelope leaf.
func scriptPathVSize(tx *wire.MsgTx, envelope *inscriptions.Envelope) int64 {
	sized := tx.Copy()
	sized.TxIn[0].Witness = wire.TxWitness{schnorrSigPlaceholder, envelope.Script(), envelope.SpendInfo().ControlBlock}

	return mempool.GetTxVirtualSize(btcutil.NewTx(sized))
}

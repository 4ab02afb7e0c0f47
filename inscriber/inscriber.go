// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriber

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/brc20"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
)

var (
	// ErrNoBroadcaster defines that inscriber was created without broadcaster and can only prepare transactions.
	ErrNoBroadcaster = errors.New("no broadcaster provided")
	// ErrBroadcast defines that transaction was rejected by the node.
	ErrBroadcast = errors.New("could not broadcast transaction")
)

// Broadcaster sends signed transactions to the network, *rpcclient.Client implements it.
type Broadcaster interface {
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
}

// Params describes single BRC-20 inscription.
type Params struct {
	UTXO            bitcoin.UTXO
	Operation       brc20.Operation
	Ticker          string
	Amount          string
	SatoshiPerVByte *big.Int
}

// Result holds signed commit and reveal transactions of the inscription.
type Result struct {
	CommitTx         *wire.MsgTx
	CommitFee        *big.Int
	CommitAddress    string
	RecipientAddress string // receives commit change and revealed inscription.
	RevealTx         *wire.MsgTx
	RevealFee        *big.Int
	InscriptionID    *inscriptions.ID
}

// Inscriber builds, signs and broadcasts commit and reveal transactions of BRC-20 inscriptions.
type Inscriber struct {
	log         logrus.FieldLogger
	txBuilder   *txbuilder.TxBuilder
	signer      *signer.Signer
	keyPair     signer.KeyPair
	broadcaster Broadcaster
}

// New is a constructor for Inscriber, broadcaster may be nil if only Prepare is used.
func New(log logrus.FieldLogger, txBuilder *txbuilder.TxBuilder, keyPair signer.KeyPair, broadcaster Broadcaster) *Inscriber {
	return &Inscriber{
		log:         log,
		txBuilder:   txBuilder,
		signer:      signer.NewSigner(),
		keyPair:     keyPair,
		broadcaster: broadcaster,
	}
}

// Prepare builds and signs commit and reveal transactions without network access.
func (i *Inscriber) Prepare(params Params) (*Result, error) {
	if i.keyPair == nil {
		return nil, signer.ErrNoKeyPair
	}

	record, err := brc20.NewRecord(params.Operation, params.Ticker, params.Amount)
	if err != nil {
		return nil, err
	}

	envelope, err := record.Inscription(i.keyPair.PubKey())
	if err != nil {
		return nil, err
	}

	commitAddress, err := i.txBuilder.CommitAddress(envelope)
	if err != nil {
		return nil, err
	}

	recipientAddress, err := i.txBuilder.RecipientAddress(envelope)
	if err != nil {
		return nil, err
	}

	commit, err := i.txBuilder.BuildCommit(txbuilder.CommitParams{
		UTXO:            params.UTXO,
		Envelope:        envelope,
		SatoshiPerVByte: params.SatoshiPerVByte,
		KeyPair:         i.keyPair,
	})
	if err != nil {
		return nil, fmt.Errorf("could not build commit transaction: %w", err)
	}

	commitTx, err := i.signer.SignKeyPath(commit.Tx, commit.PrevOuts, i.keyPair)
	if err != nil {
		return nil, fmt.Errorf("could not sign commit transaction: %w", err)
	}

	i.log.WithFields(logrus.Fields{
		"txid":    commitTx.TxHash().String(),
		"vsize":   commit.VSize,
		"fee":     commit.Fee.String(),
		"address": commitAddress,
	}).Debug("commit transaction signed")

	reveal, err := i.txBuilder.BuildReveal(commitTx, envelope)
	if err != nil {
		return nil, fmt.Errorf("could not build reveal transaction: %w", err)
	}

	revealTx, err := i.signer.SignScriptPath(reveal.Tx, reveal.PrevOuts, i.keyPair, envelope)
	if err != nil {
		return nil, fmt.Errorf("could not sign reveal transaction: %w", err)
	}

	i.log.WithFields(logrus.Fields{
		"txid":      revealTx.TxHash().String(),
		"vsize":     reveal.VSize,
		"fee":       reveal.Fee.String(),
		"recipient": recipientAddress,
	}).Debug("reveal transaction signed")

	return &Result{
		CommitTx:         commitTx,
		CommitFee:        commit.Fee,
		CommitAddress:    commitAddress,
		RecipientAddress: recipientAddress,
		RevealTx:         revealTx,
		RevealFee:        reveal.Fee,
		InscriptionID:    inscriptions.NewID(revealTx.TxHash(), 0),
	}, nil
}

// Inscribe prepares commit and reveal transactions and broadcasts them in that order.
// Transaction that is already in chain is treated as broadcasted.
func (i *Inscriber) Inscribe(ctx context.Context, params Params) (*Result, error) {
	if i.broadcaster == nil {
		return nil, ErrNoBroadcaster
	}

	result, err := i.Prepare(params)
	if err != nil {
		return nil, err
	}

	if err = i.broadcast(ctx, result.CommitTx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if err = i.broadcast(ctx, result.RevealTx); err != nil {
		return nil, fmt.Errorf("reveal: %w", err)
	}

	i.log.WithFields(logrus.Fields{
		"inscription": result.InscriptionID.String(),
		"commit":      result.CommitTx.TxHash().String(),
		"reveal":      result.RevealTx.TxHash().String(),
	}).Info("inscription broadcasted")

	return result, nil
}

// broadcast sends transaction to the node.
func (i *Inscriber) broadcast(ctx context.Context, tx *wire.MsgTx) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txHash := tx.TxHash()
	log := i.log.WithField("txid", txHash.String())

	_, err := i.broadcaster.SendRawTransaction(tx, false)
	if alreadyBroadcasted(err) {
		log.Warn("transaction is already in chain")
		return nil
	}
	if err != nil {
		return errors.Join(ErrBroadcast, err)
	}

	log.Debug("transaction broadcasted")

	return nil
}

// alreadyBroadcasted returns true if node reports that transaction is already in chain.
func alreadyBroadcasted(err error) bool {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == btcjson.ErrRPCVerifyAlreadyInChain
	}

	return false
}

// SerializeTxHex returns hex encoded transaction with witness data, as accepted by sendrawtransaction.
func SerializeTxHex(tx *wire.MsgTx) (string, error) {
	w := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(w); err != nil {
		return "", err
	}

	return hex.EncodeToString(w.Bytes()), nil
}

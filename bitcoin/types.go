// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// UTXO describes unspent transaction output data used as a funding input.
type UTXO struct {
	TxHash  string
	Index   uint32   // output index in transaction outputs.
	Amount  *big.Int // in Satoshi.
	Script  []byte   // ScriptPubKey, optional.
	Address string   // output owner address, optional.
}

// OutPoint returns UTXO reference as wire.OutPoint.
func (u *UTXO) OutPoint() (*wire.OutPoint, error) {
	if u.Amount == nil || u.Amount.Sign() < 0 {
		return nil, ErrInvalidUTXOAmount
	}

	hash, err := chainhash.NewHashFromStr(u.TxHash)
	if err != nil {
		return nil, err
	}

	return wire.NewOutPoint(hash, u.Index), nil
}

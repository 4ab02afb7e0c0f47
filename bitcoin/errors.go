// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
)

// ErrInvalidUTXOAmount defines that utxo amount is missing or negative.
var ErrInvalidUTXOAmount = errors.New("invalid utxo amount")

// ErrAmountOverflow defines that satoshi amount exceeds the total bitcoin supply.
var ErrAmountOverflow = errors.New("amount overflows maximum satoshi value")

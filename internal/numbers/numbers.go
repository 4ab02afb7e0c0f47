// Copyright (C) 2022 Creditor Corp. Group.
// See LICENSE for copying information.

package numbers

import (
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
)

// MaxSatoshi defines the total bitcoin supply in satoshi as *big.Int type.
var MaxSatoshi = big.NewInt(btcutil.MaxSatoshi)

// IsNegative returns true if the number is less than zero.
func IsNegative(num *big.Int) bool {
	return num.Sign() < 0
}

// IsGreater returns true is a > b.
func IsGreater(a, b *big.Int) bool {
	return a.Cmp(b) > 0
}

// IsLess returns true is a < b.
func IsLess(a, b *big.Int) bool {
	return a.Cmp(b) < 0
}

// IsSatoshiAmount returns true if the number can be used as output value:
// not negative and not greater than total supply.
func IsSatoshiAmount(num *big.Int) bool {
	return num != nil && !IsNegative(num) && !IsGreater(num, MaxSatoshi)
}

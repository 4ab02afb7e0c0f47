// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInsufficientFunding defines that provided funds can not cover outputs and fee.
// Every InsufficientError matches it with errors.Is.
var ErrInsufficientFunding = errors.New("insufficient funding")

type balanceErrorType string

type causerSign string

const (
	// InsufficientErrorTypeBitcoin defines insufficient bitcoin balance error type.
	InsufficientErrorTypeBitcoin balanceErrorType = "bitcoin"

	// CauserFundingUTXO defines that the funding utxo of the commit transaction caused this error type.
	CauserFundingUTXO causerSign = "funding utxo"
	// CauserCommitOutput defines that the inscription output of the commit transaction caused this error type.
	CauserCommitOutput causerSign = "commit output"
)

// errInsufficientBitcoin is a template for bitcoin balance errors, clarified on use.
var errInsufficientBitcoin = NewInsufficientError(InsufficientErrorTypeBitcoin, nil, nil)

// InsufficientError is the error type to describe insufficient balance errors with details.
type InsufficientError struct {
	Type   balanceErrorType
	Need   *big.Int // in Satoshi.
	Have   *big.Int // in Satoshi.
	Causer causerSign
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(type_ balanceErrorType, need, have *big.Int) *InsufficientError {
	return &InsufficientError{type_, need, have, ""}
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	var errMsg = fmt.Sprintf("insufficient %s balance", e.Type)

	if e.Have != nil && e.Need != nil {
		errMsg += fmt.Sprintf(": Need - %s, Have - %s", e.Need, e.Have)
	}

	if e.Causer != "" {
		errMsg += " (" + string(e.Causer) + ")"
	}

	return errMsg
}

// Is implements comparator method for [errors] package.
func (e *InsufficientError) Is(target error) bool {
	if target == ErrInsufficientFunding {
		return true
	}

	var insufficientErr *InsufficientError
	if !errors.As(target, &insufficientErr) {
		return false
	}

	return insufficientErr.Type == e.Type
}

// clarify returns formed error with Need and Have values set.
func (e *InsufficientError) clarify(need, have *big.Int) *InsufficientError {
	return &InsufficientError{e.Type, need, have, e.Causer}
}

// setCauser updates InsufficientError with provided causer.
func (e *InsufficientError) setCauser(causer causerSign) *InsufficientError {
	e.Causer = causer
	return e
}

// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package brc20

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
)

// ErrInvalidTickerLength defines that ticker is not exactly TickerLength characters long.
var ErrInvalidTickerLength = errors.New("invalid brc-20 ticker length")

// ErrInvalidTickerEncoding defines that ticker is not valid utf-8 string.
var ErrInvalidTickerEncoding = errors.New("invalid brc-20 ticker encoding")

// ErrMalformedRecord defines that payload could not be decoded into brc-20 record.
var ErrMalformedRecord = errors.New("malformed brc-20 record")

const (
	// Protocol defines protocol marker of every brc-20 record.
	Protocol string = "brc-20"
	// MIME defines content type brc-20 records are inscribed with.
	MIME string = "text/plain;charset=utf-8"
	// TickerLength defines ticker length in unicode characters.
	TickerLength int = 4
)

// Operation defines brc-20 operation name.
type Operation = string

const (
	// OpMint defines mint operation.
	OpMint Operation = "mint"
	// OpTransfer defines transfer operation.
	OpTransfer Operation = "transfer"
)

// Ticker defines brc-20 token ticker.
type Ticker string

// NewTicker returns validated ticker, length is counted in unicode characters.
func NewTicker(s string) (Ticker, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTickerEncoding, s)
	}
	if length := utf8.RuneCountInString(s); length != TickerLength {
		return "", fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidTickerLength, TickerLength, length)
	}

	return Ticker(s), nil
}

// String returns ticker raw string.
func (t Ticker) String() string {
	return string(t)
}

// Record describes brc-20 token operation payload.
// Fields order defines serialization order.
type Record struct {
	Protocol  string    `json:"p"`
	Operation Operation `json:"op"`
	Ticker    Ticker    `json:"tick"`
	Amount    string    `json:"amt"`
}

// NewRecord returns brc-20 record, operation and amount are not validated.
func NewRecord(op Operation, ticker, amount string) (*Record, error) {
	tick, err := NewTicker(ticker)
	if err != nil {
		return nil, err
	}

	return &Record{
		Protocol:  Protocol,
		Operation: op,
		Ticker:    tick,
		Amount:    amount,
	}, nil
}

// Mint returns brc-20 mint record.
func Mint(ticker, amount string) (*Record, error) {
	return NewRecord(OpMint, ticker, amount)
}

// Transfer returns brc-20 transfer record.
func Transfer(ticker, amount string) (*Record, error) {
	return NewRecord(OpTransfer, ticker, amount)
}

// ParseRecord decodes brc-20 record from inscription payload.
func ParseRecord(data []byte) (*Record, error) {
	record := new(Record)
	if err := json.Unmarshal(data, record); err != nil {
		return nil, errors.Join(ErrMalformedRecord, err)
	}

	if _, err := NewTicker(record.Ticker.String()); err != nil {
		return nil, err
	}

	return record, nil
}

// Bytes returns compact json representation of the record.
func (r *Record) Bytes() ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(r); err != nil {
		return nil, err
	}

	// Encode terminates each value with newline.
	return unescapeLineSeparators(bytes.TrimSuffix(buffer.Bytes(), []byte{'\n'})), nil
}

var (
	escapedLineSeparator      = []byte(`\u2028`)
	escapedParagraphSeparator = []byte(`\u2029`)
)

// unescapeLineSeparators writes U+2028 and U+2029 as raw utf-8, encoding/json always escapes them.
// Every backslash of encoded json starts an escape sequence, so escaped backslashes are copied as pairs.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, escapedLineSeparator) && !bytes.Contains(data, escapedParagraphSeparator) {
		return data
	}

	unescaped := make([]byte, 0, len(data))
	for idx := 0; idx < len(data); idx++ {
		switch {
		case data[idx] != '\\' || idx+1 == len(data):
			unescaped = append(unescaped, data[idx])
		case bytes.HasPrefix(data[idx:], escapedLineSeparator):
			unescaped = append(unescaped, "\u2028"...)
			idx += len(escapedLineSeparator) - 1
		case bytes.HasPrefix(data[idx:], escapedParagraphSeparator):
			unescaped = append(unescaped, "\u2029"...)
			idx += len(escapedParagraphSeparator) - 1
		default:
			unescaped = append(unescaped, data[idx], data[idx+1])
			idx++
		}
	}

	return unescaped
}

// Inscription returns envelope inscribing the record for the recipient key.
func (r *Record) Inscription(recipient *btcec.PublicKey) (*inscriptions.Envelope, error) {
	payload, err := r.Bytes()
	if err != nil {
		return nil, err
	}

	return inscriptions.NewEnvelope([]byte(MIME), payload, recipient)
}

// MintInscription returns envelope inscribing brc-20 mint.
func MintInscription(recipient *btcec.PublicKey, ticker, amount string) (*inscriptions.Envelope, error) {
	record, err := Mint(ticker, amount)
	if err != nil {
		return nil, err
	}

	return record.Inscription(recipient)
}

// TransferInscription returns envelope inscribing brc-20 transfer.
func TransferInscription(recipient *btcec.PublicKey, ticker, amount string) (*inscriptions.Envelope, error) {
	record, err := Transfer(ticker, amount)
	if err != nil {
		return nil, err
	}

	return record.Inscription(recipient)
}

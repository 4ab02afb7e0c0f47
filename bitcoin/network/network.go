// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// ErrUnknownNetwork defines that network name is not recognized.
var ErrUnknownNetwork = errors.New("unknown network")

// Network is the type for Bitcoin networks the inscriber can operate on.
type Network int

const (
	// Unspecified defines zero value of the Network.
	Unspecified Network = iota
	// Mainnet is the main Bitcoin network.
	Mainnet
	// Regtest is the regression test network.
	Regtest
	// Testnet is the test network (testnet3).
	Testnet
	// Signet is the signet network.
	Signet
)

// FromString parses case-insensitive network name and returns the corresponding Network.
func FromString(network string) (Network, error) {
	switch strings.ToUpper(network) {
	case "MAINNET":
		return Mainnet, nil
	case "REGTEST":
		return Regtest, nil
	case "TESTNET", "TESTNET3":
		return Testnet, nil
	case "SIGNET":
		return Signet, nil
	default:
		return Unspecified, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
}

// String returns the uppercase string representation of the Network.
func (n Network) String() string {
	switch n {
	case Mainnet:
		return "MAINNET"
	case Regtest:
		return "REGTEST"
	case Testnet:
		return "TESTNET"
	case Signet:
		return "SIGNET"
	default:
		return "UNSPECIFIED"
	}
}

// Params converts a Network into its corresponding chaincfg.Params.
// Unspecified network falls back to mainnet.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Regtest:
		return &chaincfg.RegressionNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Signet:
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// UnmarshalFlag implements flags.Unmarshaler interface.
func (n *Network) UnmarshalFlag(value string) (err error) {
	*n, err = FromString(value)
	return err
}

// MarshalFlag implements flags.Marshaler interface.
func (n Network) MarshalFlag() (string, error) {
	return strings.ToLower(n.String()), nil
}

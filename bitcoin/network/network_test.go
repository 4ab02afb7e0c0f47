// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package network_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/bitcoin/network"
)

func TestNetwork(t *testing.T) {
	t.Run("FromString", func(t *testing.T) {
		tests := []struct {
			value    string
			expected network.Network
			invalid  bool
		}{
			{"mainnet", network.Mainnet, false},
			{"REGTEST", network.Regtest, false},
			{"testnet3", network.Testnet, false},
			{"Signet", network.Signet, false},
			{"liquid", network.Unspecified, true},
			{"", network.Unspecified, true},
		}
		for _, test := range tests {
			n, err := network.FromString(test.value)
			if test.invalid {
				require.ErrorIs(t, err, network.ErrUnknownNetwork)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, test.expected, n)
		}
	})

	t.Run("Params", func(t *testing.T) {
		require.Equal(t, &chaincfg.MainNetParams, network.Mainnet.Params())
		require.Equal(t, &chaincfg.RegressionNetParams, network.Regtest.Params())
		require.Equal(t, &chaincfg.TestNet3Params, network.Testnet.Params())
		require.Equal(t, &chaincfg.SigNetParams, network.Signet.Params())
		require.Equal(t, &chaincfg.MainNetParams, network.Unspecified.Params())
	})

	t.Run("flag round trip", func(t *testing.T) {
		var n network.Network
		require.NoError(t, n.UnmarshalFlag("signet"))
		require.Equal(t, network.Signet, n)

		value, err := n.MarshalFlag()
		require.NoError(t, err)
		require.Equal(t, "signet", value)
		require.Error(t, n.UnmarshalFlag("unknown"))
	})
}

// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package config

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/network"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/brc20"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
	"github.com/BoostyLabs/inscriber/inscriber"
)

var (
	// ErrInvalidConfig defines that loaded configuration is invalid.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrKeyNetworkMismatch defines that extended key belongs to another network.
	ErrKeyNetworkMismatch = errors.New("extended key is not for configured network")
)

// RPC defines bitcoin node connection options.
type RPC struct {
	Host       string `long:"host" description:"Bitcoin node RPC host:port"`
	User       string `long:"user" description:"RPC user"`
	Pass       string `long:"pass" description:"RPC password"`
	DisableTLS bool   `long:"notls" description:"Disable TLS for the RPC connection"`
}

// Funding defines the output that pays for the inscription.
type Funding struct {
	TxID   string `long:"txid" description:"Funding transaction id"`
	Vout   uint32 `long:"vout" description:"Funding output index"`
	Amount int64  `long:"amount" description:"Funding output value in satoshi"`
}

// Record defines brc-20 record to inscribe.
type Record struct {
	Operation string `long:"op" description:"Operation: mint or transfer" choice:"mint" choice:"transfer"`
	Ticker    string `long:"tick" description:"Four characters ticker"`
	Amount    string `long:"amt" description:"Amount as decimal string"`
}

// Config defines inscriber configuration loaded from command line and optional ini file.
type Config struct {
	ConfigFile string          `short:"C" long:"configfile" description:"Path to ini configuration file"`
	Network    network.Network `long:"network" description:"Network: mainnet, testnet, signet or regtest"`
	LogLevel   string          `long:"loglevel" description:"Logging level: trace, debug, info, warn, error"`
	LogFile    string          `long:"logfile" description:"Path to rotated json log file, file logging is disabled if empty"`
	DryRun     bool            `long:"dryrun" description:"Build and sign transactions without broadcasting"`

	ExtendedKey string `long:"xprv" description:"BIP-32 extended private key used both for funding and inscription"`
	FeeRate     int64  `long:"feerate" description:"Fee rate in satoshi per vByte"`

	DustFloorSats              int64 `long:"dustfloor" description:"Value of inscription carrying outputs in satoshi"`
	RevealTxSizeEstimateVBytes int64 `long:"revealvsize" description:"Reveal transaction size pre-paid by commit output, 0 to measure"`

	RPC     RPC     `group:"RPC" namespace:"rpc"`
	Funding Funding `group:"Funding" namespace:"funding"`
	Record  Record  `group:"BRC-20" namespace:"brc20"`
}

// Default returns Config with default values.
func Default() Config {
	return Config{
		Network:                    network.Signet,
		LogLevel:                   logrus.InfoLevel.String(),
		FeeRate:                    1,
		DustFloorSats:              txbuilder.DefaultDustFloorSats,
		RevealTxSizeEstimateVBytes: txbuilder.DefaultRevealTxSizeEstimateVBytes,
		Record: Record{
			Operation: brc20.OpTransfer,
		},
	}
}

// Load parses command line arguments over defaults, ini file values (if configured) are applied before arguments.
func Load(args []string) (*Config, error) {
	preCfg := Default()
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg := Default()
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if preCfg.ConfigFile != "" {
		if err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("could not parse config file %s: %w", preCfg.ConfigFile, err)
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate returns error if configuration can not be used.
func (cfg *Config) Validate() error {
	if cfg.Network == network.Unspecified {
		return fmt.Errorf("%w: network is not set", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if cfg.ExtendedKey == "" {
		return fmt.Errorf("%w: extended key is not set", ErrInvalidConfig)
	}
	if cfg.FeeRate < 0 {
		return fmt.Errorf("%w: negative fee rate %d", ErrInvalidConfig, cfg.FeeRate)
	}
	if cfg.Funding.TxID == "" {
		return fmt.Errorf("%w: funding transaction id is not set", ErrInvalidConfig)
	}
	if cfg.Funding.Amount <= 0 {
		return fmt.Errorf("%w: funding amount %d", ErrInvalidConfig, cfg.Funding.Amount)
	}
	if _, err := brc20.NewTicker(cfg.Record.Ticker); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if cfg.Record.Amount == "" {
		return fmt.Errorf("%w: record amount is not set", ErrInvalidConfig)
	}
	if !cfg.DryRun && cfg.RPC.Host == "" {
		return fmt.Errorf("%w: rpc host is not set", ErrInvalidConfig)
	}

	if err := cfg.TxBuilderConfig().Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	return nil
}

// NetworkParams returns parameters of the configured network.
func (cfg *Config) NetworkParams() *chaincfg.Params {
	return cfg.Network.Params()
}

// Level returns configured logging level, info if it is not valid.
func (cfg *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}

// TxBuilderConfig returns transaction builder policy values.
func (cfg *Config) TxBuilderConfig() txbuilder.Config {
	return txbuilder.Config{
		DustFloorSats:              cfg.DustFloorSats,
		RevealTxSizeEstimateVBytes: cfg.RevealTxSizeEstimateVBytes,
	}
}

// PrivateKey decodes configured extended private key.
// The key is used as is, without child derivation.
func (cfg *Config) PrivateKey() (*btcec.PrivateKey, error) {
	extendedKey, err := hdkeychain.NewKeyFromString(cfg.ExtendedKey)
	if err != nil {
		return nil, err
	}

	if !extendedKey.IsForNet(cfg.NetworkParams()) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNetworkMismatch, cfg.Network)
	}

	return extendedKey.ECPrivKey()
}

// RPCConnConfig returns bitcoin node connection config for HTTP POST mode.
func (cfg *Config) RPCConnConfig() *rpcclient.ConnConfig {
	return &rpcclient.ConnConfig{
		Host:         cfg.RPC.Host,
		User:         cfg.RPC.User,
		Pass:         cfg.RPC.Pass,
		HTTPPostMode: true,
		DisableTLS:   cfg.RPC.DisableTLS,
	}
}

// InscriberParams returns configured inscription.
func (cfg *Config) InscriberParams() inscriber.Params {
	return inscriber.Params{
		UTXO: bitcoin.UTXO{
			TxHash: cfg.Funding.TxID,
			Index:  cfg.Funding.Vout,
			Amount: big.NewInt(cfg.Funding.Amount),
		},
		Operation:       cfg.Record.Operation,
		Ticker:          cfg.Record.Ticker,
		Amount:          cfg.Record.Amount,
		SatoshiPerVByte: big.NewInt(cfg.FeeRate),
	}
}

// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"

	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
	"github.com/BoostyLabs/inscriber/inscriber"
	"github.com/BoostyLabs/inscriber/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Level(), cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err = run(ctx, log, cfg); err != nil {
		log.WithError(err).Error("inscription failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logrus.Logger, cfg *config.Config) error {
	privKey, err := cfg.PrivateKey()
	if err != nil {
		return err
	}

	txBuilder := txbuilder.NewTxBuilder(cfg.NetworkParams(), cfg.TxBuilderConfig())
	keyPair := signer.NewKeyPair(privKey)

	if cfg.DryRun {
		result, err := inscriber.New(log, txBuilder, keyPair, nil).Prepare(cfg.InscriberParams())
		if err != nil {
			return err
		}

		commitTx, err := inscriber.SerializeTxHex(result.CommitTx)
		if err != nil {
			return err
		}

		revealTx, err := inscriber.SerializeTxHex(result.RevealTx)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"address":     result.CommitAddress,
			"recipient":   result.RecipientAddress,
			"commit":      commitTx,
			"reveal":      revealTx,
			"inscription": result.InscriptionID.String(),
		}).Info("transactions prepared")

		return nil
	}

	client, err := rpcclient.New(cfg.RPCConnConfig(), nil)
	if err != nil {
		return err
	}
	defer client.Shutdown()

	result, err := inscriber.New(log, txBuilder, keyPair, client).Inscribe(ctx, cfg.InscriberParams())
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"address":    result.CommitAddress,
		"recipient":  result.RecipientAddress,
		"commit_fee": result.CommitFee.String(),
		"reveal_fee": result.RevealFee.String(),
	}).Info("done")

	return nil
}

// newLogger returns colored stdout logger, duplicated into rotated file if logFile is set.
func newLogger(level logrus.Level, logFile string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetLevel(level)
	log.SetOutput(colorable.NewColorableStdout())
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC822,
	})

	if logFile == "" {
		return log, nil
	}

	rotateFileHook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
		Filename:   logFile,
		MaxSize:    50, // megabytes.
		MaxBackups: 3,
		MaxAge:     28, // days.
		Level:      level,
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: time.DateTime,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create log file hook: %w", err)
	}

	log.AddHook(rotateFileHook)

	return log, nil
}

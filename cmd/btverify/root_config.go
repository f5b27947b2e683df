/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/spf13/cobra"
	"github.com/veraison/go-cose"
	"go.uber.org/zap"
)

var errNoPEMBlock = errors.New("no PEM block found")

var rootFlagNames = []string{
	"root-endpoint", "root-host-endpoint", "root-timeout", "root-cache-size",
	"root-insecure", "root-key", "root-alg",
}

var rootAlgorithms = []cose.Algorithm{
	cose.AlgorithmES256,
	cose.AlgorithmES384,
	cose.AlgorithmES512,
	cose.AlgorithmPS256,
	cose.AlgorithmEdDSA,
}

// addRootFlags registers the flags shared by every command that fetches
// authoritative roots.
func addRootFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("root-endpoint", config.DefaultRootEndpoint, "Base URL serving /ipfs/{version} root documents")
	f.StringToString("root-host-endpoint", nil, "Per trusted host endpoint overrides, host=url")
	f.Duration("root-timeout", config.DefaultRootTimeout, "Timeout for one root fetch")
	f.Int("root-cache-size", config.DefaultRootCacheSize, "Number of root documents kept in memory")
	f.Bool("root-insecure", false, "Skip TLS verification of the root endpoint")
	f.String("root-key", "", "PEM public key; when set root documents must be COSE_Sign1 signed")
	f.String("root-alg", "ES256", "COSE algorithm of --root-key")
}

// bindRootFlags exposes the running command's root flags as root.* keys.
// serve and scan share the names, so binding happens once the command is
// known.
func bindRootFlags(cmd *cobra.Command, _ []string) error {
	for _, name := range rootFlagNames {
		key := "root." + strings.TrimPrefix(name, "root-")
		if err := cfg.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func rootFetchConfig(logger *zap.SugaredLogger) (config.RootFetchConfig, error) {
	rc := config.RootFetchConfig{
		Endpoint:      cfg.GetString("root.endpoint"),
		HostEndpoints: cfg.GetStringMapString("root.host-endpoint"),
		Timeout:       cfg.GetDuration("root.timeout"),
		CacheSize:     cfg.GetInt("root.cache-size"),
		InsecureTLS:   cfg.GetBool("root.insecure"),
		Logger:        logger,
	}
	keyFile := cfg.GetString("root.key")
	if keyFile == "" {
		return rc, nil
	}
	key, err := loadPublicKey(keyFile)
	if err != nil {
		return rc, err
	}
	alg, err := parseAlgorithm(cfg.GetString("root.alg"))
	if err != nil {
		return rc, err
	}
	rc.VerificationKey = key
	rc.Algorithm = alg
	return rc, nil
}

func loadPublicKey(path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: %w", path, errNoPEMBlock)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse root key %s: %w", path, err)
	}
	return key, nil
}

func parseAlgorithm(name string) (cose.Algorithm, error) {
	for _, alg := range rootAlgorithms {
		if alg.String() == name {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("unsupported COSE algorithm %q", name)
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d := cfg.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

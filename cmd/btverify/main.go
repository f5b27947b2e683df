/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Command btverify runs the binary-transparency verification server and
// checks pages against it from the command line.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "BTVERIFY"

var cfg = viper.New()

var rootCmd = &cobra.Command{
	Use:           "btverify",
	Short:         "Verify web page scripts against binary-transparency manifests",
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file (yaml, toml or json)")
	flags.BoolP("verbose", "v", false, "Log at debug level")
	flags.String("db", "btverify.db", "SQLite database holding the allow and disallow lists")

	for _, key := range []string{"config", "verbose", "db"} {
		if err := cfg.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	cfg.AutomaticEnv()
}

func loadConfig() error {
	file := cfg.GetString("config")
	if file == "" {
		return nil
	}
	cfg.SetConfigFile(file)
	if err := cfg.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", file, err)
	}
	return nil
}

func newLogger() (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	if cfg.GetBool("verbose") {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}

// bindFlags exposes cmd's local flags through viper under prefix.
func bindFlags(cmd *cobra.Command, prefix string, names ...string) {
	for _, name := range names {
		if err := cfg.BindPFlag(prefix+name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

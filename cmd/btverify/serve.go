/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the verification engine over HTTP",
	Args:    cobra.NoArgs,
	PreRunE: bindRootFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		rc, err := rootFetchConfig(logger)
		if err != nil {
			return err
		}
		srv, err := server.New(config.ServerConfig{
			Addr:          cfg.GetString("serve.addr"),
			Logger:        logger,
			Origins:       config.DefaultOrigins(),
			RootFetch:     rc,
			CSPHeaderTTL:  durationOr("serve.csp-ttl", config.DefaultCSPHeaderTTL),
			ScriptTimeout: durationOr("serve.script-timeout", config.DefaultScriptTimeout),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	serveCmd.Flags().Duration("csp-ttl", config.DefaultCSPHeaderTTL, "How long recorded CSP headers are kept")
	serveCmd.Flags().Duration("script-timeout", config.DefaultScriptTimeout, "Timeout for fetching a script sent by URL")
	bindFlags(serveCmd, "serve.", "addr", "csp-ttl", "script-timeout")
	addRootFlags(serveCmd)
}

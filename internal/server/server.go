/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kentakayama/bt-verify/internal/background"
	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/infra/rootfetch"
	"go.uber.org/zap"
)

// Server wires the HTTP listener and request handling stack.
type Server struct {
	cfg     config.ServerConfig
	engine  *background.Engine
	handler *handler
	http    *http.Server
	logger  *zap.SugaredLogger
}

// New constructs a Server using the provided configuration.
func New(cfg config.ServerConfig) (*Server, error) {
	logger := config.LoggerOrNop(cfg.Logger)

	rf := cfg.RootFetch
	if rf.Logger == nil {
		rf.Logger = logger
	}
	rootClient, err := rootfetch.NewClient(rf)
	if err != nil {
		return nil, err
	}

	engine := background.NewEngine(background.EngineConfig{
		Origins:      cfg.Origins,
		RootSource:   rootClient,
		ScriptClient: scriptClient(cfg.ScriptTimeout),
		CSPHeaderTTL: cfg.CSPHeaderTTL,
		Logger:       logger,
	})

	h := newHandler(engine, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:     cfg,
		engine:  engine,
		handler: h,
		http:    httpSrv,
		logger:  logger,
	}, nil
}

// scriptClient fetches src URLs that clients send instead of the script
// text. It has no access to page cookies, so credentialed scripts must be
// fetched by the client and sent as rawjs.
func scriptClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = config.DefaultScriptTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Engine returns the engine answering this server's messages.
func (s *Server) Engine() *background.Engine {
	return s.engine
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Run verification server on %s.", s.http.Addr)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"net/http"
	"time"

	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/infra/rootfetch"
	"github.com/kentakayama/bt-verify/internal/manifest"
	"github.com/kentakayama/bt-verify/internal/matcher"
	"github.com/kentakayama/bt-verify/internal/verify"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// EngineConfig wires the collaborators of an Engine.
type EngineConfig struct {
	Origins    config.OriginTable
	RootSource rootfetch.IRootSource
	// ScriptClient fetches external scripts; nil uses http.DefaultClient.
	ScriptClient *http.Client
	CSPHeaderTTL time.Duration
	// Now overrides the manifest cache clock.
	Now    func() time.Time
	Logger *zap.SugaredLogger
}

// Engine is the single owner of verified manifests. It answers every
// message sent by page sessions.
type Engine struct {
	origins  config.OriginTable
	store    *manifest.Store
	verifier *verify.Verifier
	matcher  *matcher.Matcher
	debug    *DebugLog
	tabs     *TabStates
	csp      *CSPHeaders
	registry *prometheus.Registry
	metrics  *metrics
	logger   *zap.SugaredLogger
}

func NewEngine(cfg EngineConfig) *Engine {
	logger := config.LoggerOrNop(cfg.Logger)
	origins := cfg.Origins
	if origins == nil {
		origins = config.DefaultOrigins()
	}
	var opts []manifest.Option
	if cfg.Now != nil {
		opts = append(opts, manifest.WithClock(cfg.Now))
	}
	store := manifest.NewStore(origins, opts...)
	reg := prometheus.NewRegistry()

	return &Engine{
		origins:  origins,
		store:    store,
		verifier: verify.NewVerifier(cfg.RootSource, logger),
		matcher:  matcher.NewMatcher(store, cfg.ScriptClient, logger),
		debug:    NewDebugLog(),
		tabs:     NewTabStates(),
		csp:      NewCSPHeaders(cfg.CSPHeaderTTL),
		registry: reg,
		metrics:  newMetrics(reg),
		logger:   logger,
	}
}

func (e *Engine) Store() *manifest.Store {
	return e.store
}

// Registry exposes the engine's metrics for scraping.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Engine) DebugLog() *DebugLog {
	return e.debug
}

func (e *Engine) TabStates() *TabStates {
	return e.tabs
}

// RecordHeaders stores the CSP headers of a tab's main-frame response.
func (e *Engine) RecordHeaders(tabID int, header http.Header) {
	e.csp.Record(tabID, header.Get(HeaderCSP), header.Get(HeaderCSPReportOnly))
}

// RemoveTab forgets everything kept for a closed tab.
func (e *Engine) RemoveTab(tabID int) {
	e.debug.RemoveTab(tabID)
	e.tabs.RemoveTab(tabID)
	e.csp.RemoveTab(tabID)
}

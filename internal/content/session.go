/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/kentakayama/bt-verify/internal/background"
	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/domain/service"
	"github.com/kentakayama/bt-verify/internal/matcher"
	"github.com/kentakayama/bt-verify/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	filterBoth      = "BOTH"
	debugTruncation = 500
)

// Bus carries messages to the background engine.
type Bus interface {
	Send(ctx context.Context, msg background.Message) (background.Response, error)
}

// Page is one loaded document.
type Page struct {
	URL     *url.URL
	Body    io.Reader
	Cookies []*http.Cookie
}

// Session verifies the scripts of one page load. It is created per page and
// talks to the background only through its Bus.
type Session struct {
	ID       uuid.UUID
	origin   model.Origin
	sender   background.Sender
	bus      Bus
	allow    service.ScriptListRepository
	disallow service.ScriptListRepository
	scripts  *http.Client
	cfg      config.ContentConfig
	logger   *zap.SugaredLogger

	mu            sync.Mutex
	state         model.State
	base          *url.URL
	filterType    string
	version       string
	manifestReady bool
	pending       []model.ScriptRecord
	timer         *time.Timer
}

type SessionOption func(*Session)

// WithLists enables the allow/disallow policy for failing scripts.
func WithLists(allow, disallow service.ScriptListRepository) SessionOption {
	return func(s *Session) {
		s.allow = allow
		s.disallow = disallow
	}
}

// WithScriptClient makes the session fetch external scripts itself with the
// page's client and send their packages as inline source. Without it the
// background fetches src URLs with its own client.
func WithScriptClient(client *http.Client) SessionOption {
	return func(s *Session) {
		s.scripts = client
	}
}

func NewSession(origin model.Origin, sender background.Sender, bus Bus, cfg config.ContentConfig, opts ...SessionOption) *Session {
	if cfg.ManifestTimeout <= 0 {
		cfg.ManifestTimeout = config.DefaultManifestTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = config.DefaultRetryInterval
	}
	s := &Session{
		ID:     uuid.New(),
		origin: origin,
		sender: sender,
		bus:    bus,
		cfg:    cfg,
		state:  model.StateStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = config.LoggerOrNop(cfg.Logger).With("session", s.ID.String(), "origin", string(origin))
	return s
}

// State returns the current trust level of the page.
func (s *Session) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the manifest version once one has been seen.
func (s *Session) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Start announces the page, scans it and loads its manifest. Scripts are
// checked as soon as a manifest verifies; a page without a valid manifest
// turns TIMEOUT after the manifest timeout.
func (s *Session) Start(ctx context.Context, page Page) error {
	if page.URL == nil {
		return ErrNoPageURL
	}

	resp, err := s.bus.Send(ctx, background.ContentScriptStart{Sender: s.sender, Origin: s.origin})
	if err != nil {
		return fmt.Errorf("content script start: %w", err)
	}
	if s.origin.IsCompany() {
		if reason := checkCSP(resp.CSPHeader, resp.CSPReportHeader); reason != "" {
			s.debug(ctx, reason)
			s.updateState(ctx, model.StateInvalid)
		}
	}

	if isPathnameExcluded(page.URL.Path, s.cfg.ExcludedPathnames) {
		s.updateState(ctx, model.StateIgnore)
		return nil
	}
	if !isLoggedIn(s.origin, page.Cookies) {
		s.logger.Debugf("%s: no signed-in user, skipping", page.URL)
		return nil
	}

	s.updateState(ctx, model.StateProcessing)
	s.mu.Lock()
	s.base = page.URL
	s.mu.Unlock()

	res, err := Scan(page.Body, page.URL)
	if err != nil {
		s.updateState(ctx, model.StateInvalid)
		return err
	}
	s.armManifestTimer(ctx)
	s.absorb(ctx, res)
	return nil
}

// Observe scans markup added to the page after Start, like nodes reported
// by a mutation observer.
func (s *Session) Observe(ctx context.Context, r io.Reader) error {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	res, err := Scan(r, base)
	if err != nil {
		return err
	}
	s.absorb(ctx, res)
	return nil
}

// Run re-checks newly found scripts every retry interval until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ProcessFoundJS(ctx)
		}
	}
}

// Close stops the manifest timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session) absorb(ctx context.Context, res *ScanResult) {
	for _, v := range res.Violations {
		s.debug(ctx, v)
		s.updateState(ctx, model.StateInvalid)
	}
	if len(res.Scripts) > 0 {
		s.mu.Lock()
		s.pending = append(s.pending, res.Scripts...)
		s.mu.Unlock()
		s.updateState(ctx, model.StateProcessing)
	}
	if res.Manifest != nil {
		s.loadManifest(ctx, res.Manifest)
	}
}

func (s *Session) armManifestTimer(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.cfg.ManifestTimeout, func() {
		s.mu.Lock()
		ready := s.manifestReady
		s.mu.Unlock()
		if !ready {
			s.debug(ctx, "manifest failed to load in time")
			s.updateState(ctx, model.StateTimeout)
		}
	})
}

func (s *Session) loadManifest(ctx context.Context, node *ManifestNode) {
	m, err := parseManifest(s.origin, node)
	if err != nil {
		s.debug(ctx, util.Truncate(err.Error(), debugTruncation))
		s.updateState(ctx, model.StateInvalid)
		return
	}

	s.mu.Lock()
	if s.origin.IsCompany() {
		if s.filterType != "" {
			s.filterType = filterBoth
		} else {
			s.filterType = m.otherType
		}
	} else {
		s.filterType = filterBoth
	}
	s.version = m.version
	s.mu.Unlock()

	resp, err := s.bus.Send(ctx, background.LoadManifest{
		Sender:      s.sender,
		Origin:      s.origin,
		Version:     m.version,
		RootHash:    m.rootHash,
		Leaves:      m.leaves,
		OtherHashes: m.otherHashes,
		Workaround:  node.Text,
	})
	if err != nil {
		s.logger.Warnf("failed to send manifest: %v", err)
		s.updateState(ctx, model.StateTimeout)
		return
	}
	v := resp.Verdict()
	s.debug(ctx, "manifest load response is "+describe(v))

	switch {
	case v.Valid:
		s.mu.Lock()
		s.manifestReady = true
		if s.timer != nil {
			s.timer.Stop()
		}
		s.mu.Unlock()
		s.ProcessFoundJS(ctx)
	case v.IsEndpointFailure():
		s.updateState(ctx, model.StateTimeout)
	default:
		s.updateState(ctx, model.StateInvalid)
	}
}

// ProcessFoundJS checks every pending script that matches the page's
// manifest type. Scripts of another type stay pending.
func (s *Session) ProcessFoundJS(ctx context.Context) {
	s.mu.Lock()
	if !s.manifestReady {
		s.mu.Unlock()
		return
	}
	version, filter := s.version, s.filterType
	var batch, keep []model.ScriptRecord
	for _, rec := range s.pending {
		if filter == "" || filter == filterBoth || rec.OtherType == filter {
			batch = append(batch, rec)
		} else {
			keep = append(keep, rec)
		}
	}
	s.pending = keep
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	snap := s.snapshotLists(ctx)
	remaining := len(batch)
	for _, rec := range batch {
		remaining--
		v := s.check(ctx, rec, version)
		if v.Valid {
			if remaining == 0 {
				s.updateState(ctx, model.StateValid)
			}
		} else {
			s.recordDisallowed(ctx, rec, v.Hash)
			s.updateState(ctx, s.failureState(ctx, rec, v.Hash, snap))
		}

		if rec.IsExternal() {
			s.debug(ctx, "processed JS with SRC, "+rec.Src+",response is "+describe(v))
		} else {
			s.debug(ctx, "processed the RAW_JS, response is "+v.Hash+" "+describe(v))
		}
	}
}

func (s *Session) check(ctx context.Context, rec model.ScriptRecord, version string) model.Verdict {
	msg := background.RawJS{
		Sender:    s.sender,
		Origin:    s.origin,
		Version:   version,
		LookupKey: rec.LookupKey,
	}
	if rec.IsExternal() {
		if s.scripts != nil {
			return s.checkFetched(ctx, rec, version)
		}
		msg.Src = rec.Src
	} else {
		msg.RawJS = strings.TrimLeftFunc(rec.RawJS, unicode.IsSpace)
	}
	resp, err := s.bus.Send(ctx, msg)
	if err != nil {
		return model.Invalid(err.Error())
	}
	return resp.Verdict()
}

// updateState moves the page to st when the transition is allowed and
// reports it to the background.
type packageFailure struct {
	verdict model.Verdict
}

func (e *packageFailure) Error() string {
	return e.verdict.Reason
}

// checkFetched loads rec.Src with the page's client and checks every
// package as an inline script. The first failing package fails the script.
func (s *Session) checkFetched(ctx context.Context, rec model.ScriptRecord, version string) model.Verdict {
	text, err := matcher.FetchSource(ctx, s.scripts, rec.Src)
	if err != nil {
		s.logger.Infof("cannot load script %s: %v", rec.Src, err)
		return model.Invalid(err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pkg := range matcher.SplitPackages(text) {
		g.Go(func() error {
			resp, err := s.bus.Send(gctx, background.RawJS{
				Sender:  s.sender,
				Origin:  s.origin,
				Version: version,
				RawJS:   pkg,
			})
			if err != nil {
				return err
			}
			if v := resp.Verdict(); !v.Valid {
				return &packageFailure{verdict: v}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var pf *packageFailure
		if errors.As(err, &pf) {
			return pf.verdict
		}
		return model.Invalid(err.Error())
	}
	return model.Valid()
}

func (s *Session) updateState(ctx context.Context, st model.State) {
	s.mu.Lock()
	cur := s.state
	if cur == st || !cur.CanTransition(st) {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	s.logger.Debugf("state %s -> %s", cur, st)
	_, err := s.bus.Send(ctx, background.UpdateState{Sender: s.sender, State: st, Origin: s.origin})
	if err != nil {
		s.logger.Warnf("failed to report state %s: %v", st, err)
	}
}

func (s *Session) debug(ctx context.Context, line string) {
	if _, err := s.bus.Send(ctx, background.Debug{Sender: s.sender, Log: line}); err != nil {
		s.logger.Debugf("failed to send debug line: %v", err)
	}
}

func describe(v model.Verdict) string {
	b, err := json.Marshal(v)
	if err != nil {
		return err.Error()
	}
	return util.Truncate(string(b), debugTruncation)
}

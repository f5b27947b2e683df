/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/kentakayama/bt-verify/internal/background"
	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/content"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/infra/bus"
	"github.com/kentakayama/bt-verify/internal/infra/rootfetch"
	"github.com/kentakayama/bt-verify/internal/infra/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	maxPageSize  = 32 << 20
	pollInterval = 200 * time.Millisecond
)

var (
	errUnknownOrigin = errors.New("page does not belong to a protected origin")
	errBadCookie     = errors.New("cookie must be name=value")
)

// scanBus is a content bus that can also be told the page's response
// headers.
type scanBus interface {
	content.Bus
	RecordHeaders(ctx context.Context, tabID int, header http.Header) error
}

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Fetch a page and verify its scripts",
	Long: `'scan' loads a page, finds its binary-transparency manifest and checks every
script against it. By default verification runs in process; with --server the
messages go to a running 'btverify serve'.
`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindRootFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		rep, err := runScan(cmd.Context(), args[0], logger)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	f := scanCmd.Flags()
	f.String("server", "", "Base URL of a btverify server; empty verifies in process")
	f.Int("tab", 1, "Tab identifier reported with every message")
	f.Duration("wait", 60*time.Second, "How long to wait for a settled state")
	f.Duration("manifest-timeout", config.DefaultManifestTimeout, "How long the page may take to provide a valid manifest")
	f.Duration("retry-interval", config.DefaultRetryInterval, "Interval between script verification passes")
	f.StringSlice("exclude", nil, "Pathnames never verified; a leading ^ makes a regular expression")
	f.StringToString("known-extension", nil, "Script hashes injected by browser extensions, hash=name")
	f.StringArray("cookie", nil, "Cookie sent with the page request, name=value")
	bindFlags(scanCmd, "scan.", "server", "tab", "wait", "manifest-timeout", "retry-interval",
		"exclude", "known-extension", "cookie")
	addRootFlags(scanCmd)
}

type report struct {
	URL     string
	Origin  model.Origin
	Session string
	Version string
	State   model.State
	Debug   []string
}

func runScan(ctx context.Context, rawURL string, logger *zap.SugaredLogger) (*report, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	origins := config.DefaultOrigins()
	origin, ok := origins.OriginFor(pageURL.Hostname())
	if !ok {
		return nil, fmt.Errorf("%s: %w", pageURL.Hostname(), errUnknownOrigin)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	cookies, err := parseCookies(cfg.GetStringSlice("scan.cookie"))
	if err != nil {
		return nil, err
	}
	jar.SetCookies(pageURL, cookies)
	client := &http.Client{Jar: jar, Timeout: config.DefaultRootTimeout}

	b, err := newScanBus(origins, client, logger)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.InitDB(ctx, cfg.GetString("db"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = sqlite.CloseDB(db) }()

	tab := cfg.GetInt("scan.tab")
	page, header, err := fetchPage(ctx, client, pageURL)
	if err != nil {
		return nil, err
	}
	if err := b.RecordHeaders(ctx, tab, header); err != nil {
		return nil, fmt.Errorf("record headers: %w", err)
	}
	page.Cookies = jar.Cookies(page.URL)

	cc := config.ContentConfig{
		ManifestTimeout:      cfg.GetDuration("scan.manifest-timeout"),
		RetryInterval:        cfg.GetDuration("scan.retry-interval"),
		ExcludedPathnames:    cfg.GetStringSlice("scan.exclude"),
		KnownExtensionHashes: cfg.GetStringMapString("scan.known-extension"),
		Logger:               logger,
	}
	// Scripts are fetched here with the page's cookies, never by a server.
	s := content.NewSession(origin, background.Sender{TabID: tab}, b, cc,
		content.WithLists(sqlite.NewAllowListRepository(db), sqlite.NewDisallowListRepository(db)),
		content.WithScriptClient(client),
	)
	defer s.Close()

	if err := s.Start(ctx, page); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, durationOr("scan.wait", time.Minute))
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(waitCtx) }()
	waitSettled(waitCtx, s)
	cancel()
	if err := <-done; err != nil {
		return nil, err
	}

	resp, err := b.Send(ctx, background.GetDebug{TabID: tab})
	if err != nil {
		return nil, fmt.Errorf("get debug list: %w", err)
	}
	return &report{
		URL:     pageURL.String(),
		Origin:  origin,
		Session: s.ID.String(),
		Version: s.Version(),
		State:   s.State(),
		Debug:   resp.DebugList,
	}, nil
}

func newScanBus(origins config.OriginTable, client *http.Client, logger *zap.SugaredLogger) (scanBus, error) {
	if server := cfg.GetString("scan.server"); server != "" {
		return bus.NewHTTP(server, 0, logger), nil
	}
	rc, err := rootFetchConfig(logger)
	if err != nil {
		return nil, err
	}
	roots, err := rootfetch.NewClient(rc)
	if err != nil {
		return nil, err
	}
	return bus.NewLocal(background.NewEngine(background.EngineConfig{
		Origins:      origins,
		RootSource:   roots,
		ScriptClient: client,
		Logger:       logger,
	})), nil
}

func fetchPage(ctx context.Context, client *http.Client, u *url.URL) (content.Page, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return content.Page{}, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return content.Page{}, nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return content.Page{}, nil, fmt.Errorf("fetch %s: status %s", u, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return content.Page{}, nil, fmt.Errorf("read %s: %w", u, err)
	}
	return content.Page{URL: resp.Request.URL, Body: bytes.NewReader(body)}, resp.Header, nil
}

func parseCookies(values []string) ([]*http.Cookie, error) {
	cookies := make([]*http.Cookie, 0, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: %w", v, errBadCookie)
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies, nil
}

// waitSettled returns once the session leaves START and PROCESSING or ctx
// is done.
func waitSettled(ctx context.Context, s *content.Session) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		switch s.State() {
		case model.StateStart, model.StateProcessing:
		default:
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

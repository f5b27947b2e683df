/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kentakayama/bt-verify/internal/background"
	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/infra/bus"
	"github.com/kentakayama/bt-verify/internal/infra/rootfetch"
	"github.com/kentakayama/bt-verify/internal/infra/sqlite"
	"github.com/kentakayama/bt-verify/internal/server"
	"github.com/kentakayama/bt-verify/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRoot struct {
	root string
	err  error
}

func (f *fakeRoot) FetchRoot(_ context.Context, _, version string) (*rootfetch.RootDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &rootfetch.RootDocument{Version: version, RootHash: f.root}, nil
}

var tab = background.Sender{TabID: 1}

type fixture struct {
	engine   *background.Engine
	allow    *sqlite.ScriptListRepository
	disallow *sqlite.ScriptListRepository
	cfg      config.ContentConfig
}

func newFixture(t *testing.T, src rootfetch.IRootSource) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.InitDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.CloseDB(db) })

	logger := zaptest.NewLogger(t).Sugar()
	return &fixture{
		engine:   background.NewEngine(background.EngineConfig{RootSource: src, Logger: logger}),
		allow:    sqlite.NewAllowListRepository(db),
		disallow: sqlite.NewDisallowListRepository(db),
		cfg: config.ContentConfig{
			ManifestTimeout: time.Minute,
			RetryInterval:   10 * time.Millisecond,
			Logger:          logger,
		},
	}
}

func (f *fixture) session(t *testing.T, origin model.Origin) *Session {
	t.Helper()
	s := NewSession(origin, tab, bus.NewLocal(f.engine), f.cfg, WithLists(f.allow, f.disallow))
	t.Cleanup(s.Close)
	return s
}

func page(t *testing.T, rawURL, body string, cookies ...*http.Cookie) Page {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return Page{URL: u, Body: strings.NewReader(body), Cookies: cookies}
}

// standardManifest builds a two-leaf manifest over the given scripts and
// returns it with the Merkle root.
func standardManifest(t *testing.T, scripts ...string) (string, string) {
	t.Helper()
	var leaves []string
	var concat []byte
	for _, s := range scripts {
		sum := sha256.Sum256([]byte(s))
		leaves = append(leaves, "0x"+hex.EncodeToString(sum[:]))
		concat = append(concat, sum[:]...)
	}
	root := sha256.Sum256(concat)
	rootHex := hex.EncodeToString(root[:])
	b, err := json.Marshal(map[string]any{"leaves": leaves, "root": "0x" + rootHex, "version": "1"})
	require.NoError(t, err)
	return string(b), rootHex
}

func whatsAppPage(manifest string, scripts ...string) string {
	var sb strings.Builder
	sb.WriteString(`<html><head><script id="binary-transparency-manifest" type="application/json">`)
	sb.WriteString(manifest)
	sb.WriteString("</script></head><body>")
	for _, s := range scripts {
		sb.WriteString("<script>" + s + "</script>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func tabState(t *testing.T, f *fixture) model.State {
	t.Helper()
	st, ok := f.engine.TabStates().State(tab.TabID)
	require.True(t, ok)
	return st
}

func TestSession_ValidPage(t *testing.T) {
	manifest, root := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{root: "0x" + root})
	s := f.session(t, model.OriginWhatsApp)

	err := s.Start(context.Background(), page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "a();", "b();")))
	require.NoError(t, err)

	assert.Equal(t, model.StateValid, s.State())
	assert.Equal(t, model.StateValid, tabState(t, f))
	assert.Equal(t, "1", s.Version())
}

func TestSession_TamperedScriptIsInvalidAndDisallowed(t *testing.T) {
	ctx := context.Background()
	manifest, root := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{root: root})
	s := f.session(t, model.OriginWhatsApp)

	require.NoError(t, s.Start(ctx, page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "a();", "evil();"))))

	assert.Equal(t, model.StateInvalid, s.State())
	ok, err := f.disallow.Has(ctx, util.SHA256HexString("evil();"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSession_AllowListedFailure(t *testing.T) {
	ctx := context.Background()
	manifest, root := standardManifest(t, "a();", "b();")
	hash := util.SHA256HexString("mine();")

	t.Run("valid while nothing is disallowed", func(t *testing.T) {
		f := newFixture(t, &fakeRoot{root: root})
		_, err := f.allow.Add(ctx, &model.ListEntry{Key: hash, Script: "mine();"})
		require.NoError(t, err)
		s := f.session(t, model.OriginWhatsApp)

		require.NoError(t, s.Start(ctx, page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "mine();"))))
		assert.Equal(t, model.StateValid, s.State())

		n, err := f.disallow.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("risk once something is disallowed", func(t *testing.T) {
		f := newFixture(t, &fakeRoot{root: root})
		_, err := f.allow.Add(ctx, &model.ListEntry{Key: hash, Script: "mine();"})
		require.NoError(t, err)
		_, err = f.disallow.Add(ctx, &model.ListEntry{Key: "other", Script: "other();"})
		require.NoError(t, err)
		s := f.session(t, model.OriginWhatsApp)

		require.NoError(t, s.Start(ctx, page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "mine();"))))
		assert.Equal(t, model.StateRisk, s.State())
	})
}

func TestSession_KnownExtensionIsRisk(t *testing.T) {
	manifest, root := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{root: root})
	f.cfg.KnownExtensionHashes = map[string]string{util.SHA256HexString("ext();"): "Some Extension"}
	s := f.session(t, model.OriginWhatsApp)

	require.NoError(t, s.Start(context.Background(), page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "a();", "ext();"))))
	assert.Equal(t, model.StateRisk, s.State())
}

func TestSession_ManifestTimeout(t *testing.T) {
	f := newFixture(t, &fakeRoot{})
	f.cfg.ManifestTimeout = 20 * time.Millisecond
	s := f.session(t, model.OriginWhatsApp)

	require.NoError(t, s.Start(context.Background(), page(t, "https://web.whatsapp.com/", "<script>a();</script>")))
	assert.Equal(t, model.StateProcessing, s.State())

	assert.Eventually(t, func() bool {
		return s.State() == model.StateTimeout
	}, time.Second, 5*time.Millisecond)
}

func TestSession_EndpointFailureIsTimeout(t *testing.T) {
	manifest, _ := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{err: errors.New("dial tcp: refused")})
	s := f.session(t, model.OriginWhatsApp)

	require.NoError(t, s.Start(context.Background(), page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "a();"))))
	assert.Equal(t, model.StateTimeout, s.State())
}

func TestSession_WrongRootIsInvalid(t *testing.T) {
	manifest, _ := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{root: strings.Repeat("ab", 32)})
	s := f.session(t, model.OriginWhatsApp)

	require.NoError(t, s.Start(context.Background(), page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "a();"))))
	assert.Equal(t, model.StateInvalid, s.State())
}

func TestSession_ExcludedPathnameIsIgnored(t *testing.T) {
	f := newFixture(t, &fakeRoot{})
	f.cfg.ExcludedPathnames = []string{"/settings/", "^/help/.*"}

	for _, u := range []string{"https://web.whatsapp.com/settings", "https://web.whatsapp.com/help/faq"} {
		s := f.session(t, model.OriginWhatsApp)
		require.NoError(t, s.Start(context.Background(), page(t, u, "<script>x();</script>")))
		assert.Equal(t, model.StateIgnore, s.State(), u)
	}
}

func TestSession_ViolationsAreInvalid(t *testing.T) {
	bodies := map[string]string{
		"event handler":  `<img src="x.png" onerror="steal()">`,
		"javascript url": `<a href="JavaScript:steal()">x</a>`,
		"blob script":    `<script src="blob:https://web.whatsapp.com/1234"></script>`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, &fakeRoot{})
			s := f.session(t, model.OriginWhatsApp)
			require.NoError(t, s.Start(context.Background(), page(t, "https://web.whatsapp.com/", body)))
			assert.Equal(t, model.StateInvalid, s.State())
			assert.NotEmpty(t, f.engine.DebugLog().List(tab.TabID))
		})
	}
}

func companyPage(t *testing.T, scripts map[string]string) (string, string) {
	t.Helper()
	var leaves []string
	for _, src := range scripts {
		leaves = append(leaves, util.SHA256HexString(src))
	}
	encoded, err := json.Marshal(leaves)
	require.NoError(t, err)
	main := util.SHA256Hex(encoded)
	longtail := strings.Repeat("0", 64)
	combined := util.SHA256HexString(longtail + main)

	manifest, err := json.Marshal(map[string]any{
		"manifest": leaves,
		"manifest_hashes": map[string]string{
			"main": main, "longtail": longtail, "combined_hash": combined,
		},
	})
	require.NoError(t, err)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<script id="binary-transparency-manifest" type="application/json" data-manifest-type="main" data-manifest-rev="1009">%s</script>`, manifest)
	for kind, src := range scripts {
		fmt.Fprintf(&sb, `<script data-btmanifest="1009_%s">%s</script>`, kind, src)
	}
	return sb.String(), combined
}

func cspHeader(policy string) http.Header {
	h := http.Header{}
	h.Set(background.HeaderCSP, policy)
	return h
}

func TestSession_CompanyPage(t *testing.T) {
	ctx := context.Background()
	body, _ := companyPage(t, map[string]string{"main": "m();"})
	body += `<script data-btmanifest="1009_longtail">lt();</script>`

	f := newFixture(t, &fakeRoot{})
	f.engine.RecordHeaders(tab.TabID, cspHeader("script-src 'self'"))
	s := f.session(t, model.OriginFacebook)

	cookie := &http.Cookie{Name: "c_user", Value: "42"}
	require.NoError(t, s.Start(ctx, page(t, "https://www.facebook.com/", body, cookie)))

	assert.Equal(t, "1009", s.Version())
	assert.Equal(t, model.StateValid, s.State())
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.pending, 1)
	assert.Equal(t, "longtail", s.pending[0].OtherType)
}

func TestSession_CompanyPageGuards(t *testing.T) {
	ctx := context.Background()
	body, _ := companyPage(t, map[string]string{"main": "m();"})

	t.Run("signed out", func(t *testing.T) {
		f := newFixture(t, &fakeRoot{})
		f.engine.RecordHeaders(tab.TabID, cspHeader("script-src 'self'"))
		s := f.session(t, model.OriginFacebook)
		require.NoError(t, s.Start(ctx, page(t, "https://www.facebook.com/", body)))
		assert.Equal(t, model.StateStart, s.State())
	})

	t.Run("eval without report-only policy", func(t *testing.T) {
		f := newFixture(t, &fakeRoot{})
		f.engine.RecordHeaders(tab.TabID, cspHeader("script-src 'self' 'unsafe-eval'"))
		s := f.session(t, model.OriginFacebook)
		require.NoError(t, s.Start(ctx, page(t, "https://www.facebook.com/", body, &http.Cookie{Name: "c_user", Value: "1"})))
		assert.Equal(t, model.StateInvalid, s.State())
		assert.Contains(t, f.engine.DebugLog().List(tab.TabID), "Missing CSP report-only header")
	})
}

func TestSession_ExternalScript(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a();/*FB_PKG_DELIM*/\nb();"))
	}))
	defer ts.Close()

	manifest, root := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{root: root})
	s := f.session(t, model.OriginWhatsApp)

	body := whatsAppPage(manifest) + `<script src="/app.js"></script>`
	require.NoError(t, s.Start(context.Background(), page(t, ts.URL+"/", body)))
	assert.Equal(t, model.StateValid, s.State())
}

func TestSession_RunPicksUpObservedScripts(t *testing.T) {
	manifest, root := standardManifest(t, "a();", "b();")
	f := newFixture(t, &fakeRoot{root: root})
	s := f.session(t, model.OriginWhatsApp)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, page(t, "https://web.whatsapp.com/", whatsAppPage(manifest, "a();"))))
	require.Equal(t, model.StateValid, s.State())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Observe(ctx, strings.NewReader("<script>late();</script>")))
	assert.Eventually(t, func() bool {
		return s.State() == model.StateInvalid
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSession_RemoteBusFetchesScriptsWithPageCookies(t *testing.T) {
	scripts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "s3cret" {
			http.Error(w, "login required", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("a();/*FB_PKG_DELIM*/\n  b();"))
	}))
	defer scripts.Close()

	manifest, root := standardManifest(t, "a();", "b();")
	body := whatsAppPage(manifest) + `<script src="/bundle.js"></script>`
	pageURL, err := url.Parse(scripts.URL + "/")
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	jar.SetCookies(pageURL, []*http.Cookie{{Name: "sid", Value: "s3cret"}})
	pageClient := &http.Client{Jar: jar}

	run := func(t *testing.T, opts ...SessionOption) model.State {
		f := newFixture(t, &fakeRoot{root: root})
		logger := zaptest.NewLogger(t).Sugar()
		remote := httptest.NewServer(server.NewHandler(f.engine, logger))
		t.Cleanup(remote.Close)

		opts = append(opts, WithLists(f.allow, f.disallow))
		s := NewSession(model.OriginWhatsApp, tab, bus.NewHTTP(remote.URL, 0, logger), f.cfg, opts...)
		t.Cleanup(s.Close)
		require.NoError(t, s.Start(context.Background(), page(t, pageURL.String(), body)))
		return s.State()
	}

	t.Run("page client", func(t *testing.T) {
		assert.Equal(t, model.StateValid, run(t, WithScriptClient(pageClient)))
	})
	t.Run("server fetch has no page cookies", func(t *testing.T) {
		assert.Equal(t, model.StateInvalid, run(t))
	})
}

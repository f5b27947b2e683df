/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package rootfetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/arc/v2"
	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/veraison/go-cose"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultUserAgent    = "bt-verify/root-client"
	maxRootDocumentSize = 4 << 20
)

// Client fetches root documents over HTTP, caching successful answers per
// (host, version) since a published root never changes.
type Client struct {
	cfg        config.RootFetchConfig
	httpClient *http.Client
	verifier   cose.Verifier
	cache      *arc.ARCCache[string, *RootDocument]
	group      singleflight.Group
	logger     *zap.SugaredLogger
}

func NewClient(cfg config.RootFetchConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultRootTimeout
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = config.DefaultRootCacheSize
	}

	cache, err := arc.NewARC[string, *RootDocument](size)
	if err != nil {
		return nil, fmt.Errorf("create root cache: %w", err)
	}

	transport := &http.Transport{}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		cache:  cache,
		logger: config.LoggerOrNop(cfg.Logger),
	}

	if cfg.VerificationKey != nil {
		alg := cfg.Algorithm
		if alg == 0 {
			alg = cose.AlgorithmES256
		}
		v, err := cose.NewVerifier(alg, cfg.VerificationKey)
		if err != nil {
			return nil, fmt.Errorf("init root verifier: %w", err)
		}
		c.verifier = v
	}
	return c, nil
}

// FetchRoot returns the root document for version from host's endpoint.
func (c *Client) FetchRoot(ctx context.Context, host, version string) (*RootDocument, error) {
	key := host + "\x00" + version
	if doc, ok := c.cache.Get(key); ok {
		return doc, nil
	}

	// The shared fetch outlives any single caller; httpClient's timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		doc, err := c.fetch(fetchCtx, host, version)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, doc)
		return doc, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.logger.Debugf("root fetch for %s/%s shared with a concurrent caller", host, version)
	}
	return res.Val.(*RootDocument), nil
}

func (c *Client) rootURL(host, version string) (*url.URL, error) {
	raw := strings.TrimRight(c.cfg.EndpointFor(host), "/") + "/ipfs/" + url.PathEscape(version)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse root endpoint: %w", err)
	}
	return u, nil
}

func (c *Client) fetch(ctx context.Context, host, version string) (*RootDocument, error) {
	u, err := c.rootURL(host, version)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if c.verifier != nil {
		req.Header.Set("Accept", "application/cose")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("unexpected root status %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRootDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	c.logger.Debugf("fetched root for %s version %s in %v", host, version, time.Since(start))

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrMissingPayload
	}

	if c.verifier != nil {
		body, err = c.openSigned(body)
		if err != nil {
			return nil, err
		}
	}
	doc, err := ParseRootDocument(body, version)
	if err != nil {
		return nil, err
	}
	if doc.FilesErr != nil {
		c.logger.Warnf("ignoring malformed file listing in root for %s version %s: %v", host, version, doc.FilesErr)
	}
	return doc, nil
}

// openSigned verifies a COSE_Sign1 envelope and returns its payload.
func (c *Client) openSigned(body []byte) ([]byte, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(body); err != nil {
		return nil, fmt.Errorf("%w: decode COSE_Sign1: %v", ErrSignature, err)
	}
	if err := msg.Verify(nil, c.verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if len(msg.Payload) == 0 {
		return nil, ErrMissingPayload
	}
	return msg.Payload, nil
}

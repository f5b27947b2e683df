/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"crypto"
	"time"

	"github.com/veraison/go-cose"
	"go.uber.org/zap"
)

const (
	DefaultAddr            = ":8080"
	DefaultRootEndpoint    = "https://nftstorage.link"
	DefaultRootTimeout     = 10 * time.Second
	DefaultRootCacheSize   = 128
	DefaultCSPHeaderTTL    = 30 * time.Minute
	DefaultManifestTimeout = 45 * time.Second
	DefaultRetryInterval   = 3 * time.Second
	DefaultScriptTimeout   = 15 * time.Second
)

// ServerConfig captures the tunables required to start the verification server.
type ServerConfig struct {
	Addr         string
	Logger       *zap.SugaredLogger
	Origins      OriginTable
	RootFetch    RootFetchConfig
	CSPHeaderTTL time.Duration
	// ScriptTimeout bounds each external script fetch made for a RAW_JS
	// message carrying src.
	ScriptTimeout time.Duration
}

// RootFetchConfig describes where authoritative roots are published.
type RootFetchConfig struct {
	// Endpoint serves every trusted host without an entry in HostEndpoints.
	Endpoint      string
	HostEndpoints map[string]string
	Timeout       time.Duration
	CacheSize     int
	InsecureTLS   bool
	// VerificationKey, when set, requires the root document to arrive as a
	// COSE_Sign1 message signed with Algorithm.
	VerificationKey crypto.PublicKey
	Algorithm       cose.Algorithm
	Logger          *zap.SugaredLogger
}

// ContentConfig tunes one page session.
type ContentConfig struct {
	ManifestTimeout time.Duration
	RetryInterval   time.Duration
	// ExcludedPathnames lists pages that are never verified. An entry
	// starting with "^" is a regular expression that must match the whole
	// pathname; any other entry must equal it. Pathnames are compared with a
	// trailing slash.
	ExcludedPathnames []string
	// KnownExtensionHashes maps script hashes injected by popular browser
	// extensions to the extension name.
	KnownExtensionHashes map[string]string
	Logger               *zap.SugaredLogger
}

// EndpointFor returns the base URL holding roots for host.
func (c RootFetchConfig) EndpointFor(host string) string {
	if ep, ok := c.HostEndpoints[host]; ok && ep != "" {
		return ep
	}
	if c.Endpoint == "" {
		return DefaultRootEndpoint
	}
	return c.Endpoint
}

// LoggerOrNop never returns nil.
func LoggerOrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"strings"
	"time"

	"github.com/kentakayama/bt-verify/internal/domain/model"
)

// OriginSettings holds the per-origin trust parameters.
type OriginSettings struct {
	// Host selects the endpoint holding the authoritative root.
	Host string
	// Timeout bounds the age of a cached manifest. Zero never expires.
	Timeout time.Duration
}

type OriginTable map[model.Origin]OriginSettings

// DefaultOrigins mirrors the published deployment: company origins rotate
// manifests every 49 hours, the rest never expire.
func DefaultOrigins() OriginTable {
	return OriginTable{
		model.OriginFacebook:  {Host: "facebook.com", Timeout: 176_400_000 * time.Millisecond},
		model.OriginMessenger: {Host: "messenger.com", Timeout: 176_400_000 * time.Millisecond},
		model.OriginWhatsApp:  {Host: "whatsapp.com"},
		model.OriginKVStore:   {Host: "kvstore"},
	}
}

func (t OriginTable) Timeout(o model.Origin) time.Duration {
	return t[o].Timeout
}

func (t OriginTable) Host(o model.Origin) string {
	return t[o].Host
}

// OriginFor maps a page host to the origin whose trusted host it belongs
// to, either exactly or as a subdomain.
func (t OriginTable) OriginFor(host string) (model.Origin, bool) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, o := range model.Origins {
		h := t.Host(o)
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return o, true
		}
	}
	return "", false
}

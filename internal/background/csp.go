/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	HeaderCSP           = "content-security-policy"
	HeaderCSPReportOnly = "content-security-policy-report-only"
)

type cspHeaders struct {
	policy     string
	reportOnly string
}

// CSPHeaders remembers the main-frame CSP headers of each tab until they
// expire.
type CSPHeaders struct {
	c *cache.Cache
}

func NewCSPHeaders(ttl time.Duration) *CSPHeaders {
	if ttl <= 0 {
		return &CSPHeaders{c: cache.New(cache.NoExpiration, 0)}
	}
	return &CSPHeaders{c: cache.New(ttl, 2*ttl)}
}

// Record stores the header values seen on the tab's main-frame response.
// Missing headers are stored as empty strings.
func (h *CSPHeaders) Record(tabID int, policy, reportOnly string) {
	h.c.SetDefault(strconv.Itoa(tabID), cspHeaders{policy: policy, reportOnly: reportOnly})
}

func (h *CSPHeaders) Get(tabID int) (policy, reportOnly string) {
	v, ok := h.c.Get(strconv.Itoa(tabID))
	if !ok {
		return "", ""
	}
	e := v.(cspHeaders)
	return e.policy, e.reportOnly
}

func (h *CSPHeaders) RemoveTab(tabID int) {
	h.c.Delete(strconv.Itoa(tabID))
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/kentakayama/bt-verify/internal/domain"
	"github.com/kentakayama/bt-verify/internal/domain/model"
)

const loginCookie = "c_user"

// isPathnameExcluded matches pathname, normalized with a trailing slash,
// against the exclusion rules.
func isPathnameExcluded(pathname string, rules []string) bool {
	if !strings.HasSuffix(pathname, "/") {
		pathname += "/"
	}
	for _, rule := range rules {
		if strings.HasPrefix(rule, "^") {
			re, err := regexp.Compile(rule)
			if err != nil {
				continue
			}
			if loc := re.FindStringIndex(pathname); loc != nil && loc[0] == 0 && loc[1] == len(pathname) {
				return true
			}
			continue
		}
		if pathname == rule {
			return true
		}
	}
	return false
}

// isLoggedIn reports whether a company page belongs to a signed-in user.
// Other origins are always verified.
func isLoggedIn(origin model.Origin, cookies []*http.Cookie) bool {
	if !origin.IsCompany() {
		return true
	}
	for _, c := range cookies {
		if strings.Contains(c.Name, loginCookie) {
			return true
		}
	}
	return false
}

type listSnapshot struct {
	disallowEmpty bool
}

func (s *Session) snapshotLists(ctx context.Context) listSnapshot {
	if s.disallow == nil {
		return listSnapshot{disallowEmpty: true}
	}
	n, err := s.disallow.Count(ctx)
	if err != nil {
		s.logger.Warnf("failed to count disallow list: %v", err)
	}
	return listSnapshot{disallowEmpty: n == 0}
}

func (s *Session) allowed(ctx context.Context, key string) bool {
	if s.allow == nil || key == "" {
		return false
	}
	ok, err := s.allow.Has(ctx, key)
	if err != nil {
		s.logger.Warnf("failed to look up allow list: %v", err)
		return false
	}
	return ok
}

// failureState maps a failed script onto RISK, VALID or INVALID.
func (s *Session) failureState(ctx context.Context, rec model.ScriptRecord, hash string, snap listSnapshot) model.State {
	key := rec.Key(hash)
	allowed := s.allowed(ctx, key)
	_, knownExtension := s.cfg.KnownExtensionHashes[hash]

	switch {
	case !rec.IsExternal() && knownExtension && !allowed:
		return model.StateRisk
	case allowed && snap.disallowEmpty:
		return model.StateValid
	case allowed:
		return model.StateRisk
	default:
		return model.StateInvalid
	}
}

// recordDisallowed remembers a failing script unless it is allow-listed or
// already known.
func (s *Session) recordDisallowed(ctx context.Context, rec model.ScriptRecord, hash string) {
	key := rec.Key(hash)
	if s.disallow == nil || key == "" || s.allowed(ctx, key) {
		return
	}
	script := rec.RawJS
	if rec.IsExternal() {
		script = rec.Src
	}
	_, err := s.disallow.Add(ctx, &model.ListEntry{Key: key, Script: script})
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		s.logger.Warnf("failed to record %s in disallow list: %v", key, err)
	}
}

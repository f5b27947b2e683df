/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package matcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/manifest"
	"github.com/kentakayama/bt-verify/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reasonSourceLimit = 500

// Matcher classifies scripts against the manifest cache.
type Matcher struct {
	store  *manifest.Store
	client *http.Client
	logger *zap.SugaredLogger
}

// NewMatcher builds a Matcher. client fetches external scripts and should
// carry the page's credentials; nil uses http.DefaultClient.
func NewMatcher(store *manifest.Store, client *http.Client, logger *zap.SugaredLogger) *Matcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Matcher{
		store:  store,
		client: client,
		logger: config.LoggerOrNop(logger),
	}
}

// CheckInlineScript hashes rawSource and looks it up in the trusted leaves of
// (origin, version).
func (m *Matcher) CheckInlineScript(origin model.Origin, version, rawSource string) model.Verdict {
	hash := util.SHA256HexString(rawSource)

	found, res := m.store.Contains(origin, version, hash)
	switch res {
	case manifest.UnknownOrigin:
		return model.Invalid(model.ReasonNoMatchingOrigin)
	case manifest.UnknownVersion:
		return model.Invalid(model.ReasonNoMatchingManifest)
	}
	if found {
		return model.Valid()
	}

	m.logger.Debugf("generated hash %s not in manifest %s/%s", hash, origin, version)
	return model.Verdict{
		Valid: false,
		Hash:  hash,
		Reason: fmt.Sprintf("Error: hash does not match %s, %s, unmatched JS is %s",
			origin, version, util.Truncate(rawSource, reasonSourceLimit)),
	}
}

type packageError struct {
	verdict model.Verdict
}

func (e *packageError) Error() string {
	return e.verdict.Reason
}

// CheckExternalScript fetches sourceURL and checks every bundled package
// through CheckInlineScript. The script is valid only if all packages are;
// the first invalid package cancels the remaining checks.
func (m *Matcher) CheckExternalScript(ctx context.Context, origin model.Origin, version, sourceURL string) model.Verdict {
	text, err := FetchSource(ctx, m.client, sourceURL)
	if err != nil {
		m.logger.Warnf("cannot load script %s: %v", sourceURL, err)
		return model.Invalid(err.Error())
	}

	packages := SplitPackages(text)
	g, gctx := errgroup.WithContext(ctx)
	for _, pkg := range packages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v := m.CheckInlineScript(origin, version, pkg)
			if !v.Valid {
				return &packageError{verdict: v}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var pe *packageError
		if errors.As(err, &pe) {
			return pe.verdict
		}
		return model.Invalid(err.Error())
	}
	return model.Valid()
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"context"
	"fmt"

	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/util"
)

// Dispatch handles one message and returns its reply. Verification failures
// are reported inside the Response; an error means the message itself could
// not be handled.
func (e *Engine) Dispatch(ctx context.Context, msg Message) (Response, error) {
	if msg == nil {
		return Response{}, ErrUnknownMessage
	}
	e.metrics.messages.WithLabelValues(string(msg.Type())).Inc()

	switch m := msg.(type) {
	case LoadManifest:
		v := e.loadManifest(ctx, m)
		e.metrics.observeVerdict(m.Type(), v.Valid)
		return verdictResponse(v), nil
	case RawJS:
		v := e.rawJS(ctx, m)
		e.metrics.observeVerdict(m.Type(), v.Valid)
		return verdictResponse(v), nil
	case Debug:
		e.debug.Add(m.Sender.TabID, m.Log)
		return Response{}, nil
	case GetDebug:
		return Response{Valid: true, DebugList: e.debug.List(m.TabID)}, nil
	case UpdateState:
		if !e.tabs.Update(m.Sender, m.State) {
			e.logger.Debugf("tab %d frame %d: ignored transition to %s", m.Sender.TabID, m.Sender.FrameID, m.State)
		}
		return Response{Success: true}, nil
	case ContentScriptStart:
		e.tabs.Start(m.Sender)
		policy, report := e.csp.Get(m.Sender.TabID)
		return Response{Success: true, CSPHeader: policy, CSPReportHeader: report}, nil
	default:
		return Response{}, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

func (e *Engine) loadManifest(ctx context.Context, m LoadManifest) model.Verdict {
	if !m.Origin.Valid() {
		e.debug.Add(m.Sender.TabID, "Error: LOAD_MANIFEST had no matching origin "+string(m.Origin))
		return model.Invalid(model.ReasonNoMatchingOrigin)
	}

	if m.Origin.IsCompany() {
		if m.OtherHashes == nil || !e.verifier.VerifyCompanyManifest(m.RootHash, *m.OtherHashes, m.Leaves) {
			e.logger.Infof("manifest %s/%s rejected", m.Origin, m.Version)
			return model.Invalid(model.ReasonCompanyVerifyFailed)
		}
		e.store.RecordManifest(m.Origin, m.Version, m.RootHash, m.Leaves)
		e.metrics.manifests.Inc()
		return model.Valid()
	}

	rootHash := util.TrimHexPrefix(m.RootHash)
	leaves := make([]string, len(m.Leaves))
	for i, leaf := range m.Leaves {
		leaves[i] = util.TrimHexPrefix(leaf)
	}
	v := e.verifier.VerifyStandardManifest(ctx, rootHash, leaves, e.origins.Host(m.Origin), m.Version, m.Workaround)
	if !v.Valid {
		e.logger.Infof("manifest %s/%s rejected: %s", m.Origin, m.Version, v.Reason)
		return v
	}
	e.store.RecordManifest(m.Origin, m.Version, rootHash, leaves)
	e.metrics.manifests.Inc()
	return v
}

func (e *Engine) rawJS(ctx context.Context, m RawJS) model.Verdict {
	var v model.Verdict
	if m.Src != "" {
		v = e.matcher.CheckExternalScript(ctx, m.Origin, m.Version, m.Src)
	} else {
		v = e.matcher.CheckInlineScript(m.Origin, m.Version, m.RawJS)
	}
	if v.Valid {
		return v
	}

	switch v.Reason {
	case model.ReasonNoMatchingOrigin:
		e.debug.Add(m.Sender.TabID, "Error: RAW_JS had no matching origin "+string(m.Origin))
	case model.ReasonNoMatchingManifest:
		e.debug.Add(m.Sender.TabID, fmt.Sprintf("Error: JS with SRC had no matching manifest. origin: %s version: %s", m.Origin, m.Version))
	default:
		e.debug.Add(m.Sender.TabID, v.Reason)
	}
	return v
}

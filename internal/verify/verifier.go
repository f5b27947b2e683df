/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/infra/rootfetch"
	"github.com/kentakayama/bt-verify/internal/util"
	"go.uber.org/zap"
)

// Verifier decides whether a manifest's claimed root can be trusted.
type Verifier struct {
	source rootfetch.IRootSource
	logger *zap.SugaredLogger
}

func NewVerifier(source rootfetch.IRootSource, logger *zap.SugaredLogger) *Verifier {
	return &Verifier{
		source: source,
		logger: config.LoggerOrNop(logger),
	}
}

// VerifyStandardManifest checks rootHash against the root published for
// version on trustedHost, then recomputes the Merkle root from leaves.
// rootHash and leaves are expected without 0x prefixes. It never returns
// an error: every failure is a Verdict with a reason code.
func (v *Verifier) VerifyStandardManifest(ctx context.Context, rootHash string, leaves []string, trustedHost, version, workaroundSource string) model.Verdict {
	doc, err := v.source.FetchRoot(ctx, trustedHost, version)
	if err != nil {
		if errors.Is(err, rootfetch.ErrMissingPayload) {
			v.logger.Warnf("root endpoint for %s returned no payload for version %s", trustedHost, version)
			return model.Invalid(model.ReasonUnknownEndpoint)
		}
		v.logger.Warnf("error fetching root for %s version %s: %v", trustedHost, version, err)
		return model.Invalid(model.ReasonEndpointFailure)
	}
	if doc == nil || doc.RootHash == "" {
		return model.Invalid(model.ReasonUnknownEndpoint)
	}

	publishedRoot := doc.TrimmedRoot()
	if rootHash != publishedRoot {
		v.logger.Infof("root mismatch with endpoint: page %s, published %s", rootHash, publishedRoot)

		// secondary hash tolerates a known build/publish skew
		workaroundHash := util.SHA256HexString(workaroundSource)
		if workaroundHash != publishedRoot {
			v.logger.Infof("secondary hash %s does not match published root either", workaroundHash)
			return model.Invalid(model.ReasonRootFailThirdParty)
		}
	}

	computed, err := MerkleRootHex(leaves)
	if err != nil {
		v.logger.Warnf("cannot recompute root for version %s: %v", version, err)
		return model.Invalid(model.ReasonRootFailInPage)
	}
	if !strings.EqualFold(computed, rootHash) {
		v.logger.Infof("computed root %s does not match page root %s", computed, rootHash)
		return model.Invalid(model.ReasonRootFailInPage)
	}
	return model.Valid()
}

// VerifyCompanyManifest checks the main/longtail scheme: the hash of the
// serialized leaf list must equal one of the two partial hashes, and the
// hash of longtail+main must equal rootHash.
func (v *Verifier) VerifyCompanyManifest(rootHash string, other model.OtherHashes, leaves []string) bool {
	serialized, err := marshalLeaves(leaves)
	if err != nil {
		v.logger.Warnf("cannot serialize leaves: %v", err)
		return false
	}
	jsHash := util.SHA256Hex(serialized)
	if jsHash != other.Main && jsHash != other.Longtail {
		v.logger.Infof("leaf hash %s matches neither main nor longtail", jsHash)
		return false
	}

	combined := util.SHA256HexString(other.Longtail + other.Main)
	v.logger.Debugf("combined hash is %s, root is %s", combined, rootHash)
	return combined == rootHash
}

// marshalLeaves produces the same bytes as JSON.stringify on a string array.
func marshalLeaves(leaves []string) ([]byte, error) {
	if leaves == nil {
		leaves = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(leaves); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

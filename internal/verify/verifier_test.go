/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verify

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/infra/rootfetch"
	"github.com/kentakayama/bt-verify/internal/util"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeRootSource struct {
	doc   *rootfetch.RootDocument
	err   error
	host  string
	calls int
}

func (f *fakeRootSource) FetchRoot(_ context.Context, host, _ string) (*rootfetch.RootDocument, error) {
	f.calls++
	f.host = host
	return f.doc, f.err
}

var (
	leafA = strings.Repeat("11", 32)
	leafB = strings.Repeat("22", 32)
)

func expectedRoot() string {
	return hex.EncodeToString(pair(leaf(0x11), leaf(0x22)))
}

func newTestVerifier(t *testing.T, src rootfetch.IRootSource) *Verifier {
	return NewVerifier(src, zaptest.NewLogger(t).Sugar())
}

func TestVerifyStandardManifest_Valid(t *testing.T) {
	root := expectedRoot()
	src := &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: "0x" + root}}
	v := newTestVerifier(t, src)

	got := v.VerifyStandardManifest(context.Background(), root, []string{leafA, leafB}, "whatsapp.com", "1", "")
	assert.Equal(t, model.Verdict{Valid: true}, got)
	assert.Equal(t, "whatsapp.com", src.host)
	assert.Equal(t, 1, src.calls)
}

func TestVerifyStandardManifest_CaseInsensitiveFinalCompare(t *testing.T) {
	root := strings.ToUpper(expectedRoot())
	v := newTestVerifier(t, &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: root}})

	got := v.VerifyStandardManifest(context.Background(), root, []string{leafA, leafB}, "h", "1", "")
	assert.True(t, got.Valid)
}

func TestVerifyStandardManifest_WrongRootMatchingPublished(t *testing.T) {
	wrong := strings.Repeat("ab", 32)
	v := newTestVerifier(t, &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: wrong}})

	got := v.VerifyStandardManifest(context.Background(), wrong, []string{leafA, leafB}, "h", "1", "")
	assert.Equal(t, model.Invalid(model.ReasonRootFailInPage), got)
}

func TestVerifyStandardManifest_ThirdPartyMismatch(t *testing.T) {
	v := newTestVerifier(t, &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: strings.Repeat("cd", 32)}})

	got := v.VerifyStandardManifest(context.Background(), expectedRoot(), []string{leafA, leafB}, "h", "1", "some page text")
	assert.Equal(t, model.Invalid(model.ReasonRootFailThirdParty), got)
}

func TestVerifyStandardManifest_WorkaroundHashAccepted(t *testing.T) {
	workaround := `{"manifest": "as served"}`
	published := util.SHA256HexString(workaround)
	v := newTestVerifier(t, &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: published}})

	// primary comparison fails, the secondary hash matches, Merkle step decides
	got := v.VerifyStandardManifest(context.Background(), expectedRoot(), []string{leafA, leafB}, "h", "1", workaround)
	assert.True(t, got.Valid)

	got = v.VerifyStandardManifest(context.Background(), strings.Repeat("00", 32), []string{leafA, leafB}, "h", "1", workaround)
	assert.Equal(t, model.Invalid(model.ReasonRootFailInPage), got)
}

func TestVerifyStandardManifest_EndpointFailures(t *testing.T) {
	v := newTestVerifier(t, &fakeRootSource{err: errors.New("connection refused")})
	assert.Equal(t, model.Invalid(model.ReasonEndpointFailure),
		v.VerifyStandardManifest(context.Background(), "aa", []string{"aa"}, "h", "1", ""))

	v = newTestVerifier(t, &fakeRootSource{err: rootfetch.ErrMissingPayload})
	assert.Equal(t, model.Invalid(model.ReasonUnknownEndpoint),
		v.VerifyStandardManifest(context.Background(), "aa", []string{"aa"}, "h", "1", ""))

	v = newTestVerifier(t, &fakeRootSource{})
	assert.Equal(t, model.Invalid(model.ReasonUnknownEndpoint),
		v.VerifyStandardManifest(context.Background(), "aa", []string{"aa"}, "h", "1", ""))
}

func TestVerifyStandardManifest_SingleLeaf(t *testing.T) {
	v := newTestVerifier(t, &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: leafA}})
	assert.True(t, v.VerifyStandardManifest(context.Background(), leafA, []string{leafA}, "h", "1", "").Valid)
}

func TestVerifyStandardManifest_NoLeavesOrBadLeaf(t *testing.T) {
	v := newTestVerifier(t, &fakeRootSource{doc: &rootfetch.RootDocument{RootHash: leafA}})
	assert.Equal(t, model.Invalid(model.ReasonRootFailInPage),
		v.VerifyStandardManifest(context.Background(), leafA, nil, "h", "1", ""))
	assert.Equal(t, model.Invalid(model.ReasonRootFailInPage),
		v.VerifyStandardManifest(context.Background(), leafA, []string{"xyz"}, "h", "1", ""))
}

func companyHashes(leaves []string, matchMain bool) (string, model.OtherHashes) {
	serialized, _ := marshalLeaves(leaves)
	jsHash := util.SHA256Hex(serialized)
	other := model.OtherHashes{Main: strings.Repeat("0", 64), Longtail: strings.Repeat("f", 64)}
	if matchMain {
		other.Main = jsHash
	} else {
		other.Longtail = jsHash
	}
	return util.SHA256HexString(other.Longtail + other.Main), other
}

func TestVerifyCompanyManifest(t *testing.T) {
	v := newTestVerifier(t, nil)
	leaves := []string{"aa", "bb", "cc"}

	root, other := companyHashes(leaves, true)
	assert.True(t, v.VerifyCompanyManifest(root, other, leaves))

	root, other = companyHashes(leaves, false)
	assert.True(t, v.VerifyCompanyManifest(root, other, leaves))

	// wrong root
	assert.False(t, v.VerifyCompanyManifest(strings.Repeat("1", 64), other, leaves))

	// leaves hash matches neither
	assert.False(t, v.VerifyCompanyManifest(root, other, []string{"dd"}))
}

func TestVerifyCompanyManifest_CombinedOrderIsLongtailThenMain(t *testing.T) {
	v := newTestVerifier(t, nil)
	leaves := []string{"aa"}
	_, other := companyHashes(leaves, true)
	reversed := util.SHA256HexString(other.Main + other.Longtail)
	assert.False(t, v.VerifyCompanyManifest(reversed, other, leaves))
}

func TestMarshalLeaves_MatchesJSONStringify(t *testing.T) {
	b, err := marshalLeaves([]string{"a<b", "c"})
	assert.NoError(t, err)
	assert.Equal(t, `["a<b","c"]`, string(b))

	b, err = marshalLeaves(nil)
	assert.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"context"
	"net/http"
	"testing"

	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCSP(t *testing.T) {
	tests := []struct {
		name       string
		policy     string
		reportOnly string
		want       string
	}{
		{"enforced without eval", "default-src 'self'; script-src 'self'", "", ""},
		{"default-src without eval", "default-src 'self'", "", ""},
		{"no headers", "", "", "Missing CSP report-only header"},
		{"enforced allows eval", "script-src 'self' 'unsafe-eval'", "", "Missing CSP report-only header"},
		{"report-only blocks eval", "script-src 'unsafe-eval'", "script-src 'self'", ""},
		{"report-only allows eval", "", "default-src 'unsafe-eval'", "Missing unsafe-eval from CSP report-only header"},
		{"script-src wins over default-src", "default-src 'unsafe-eval';  script-src   'self' ", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkCSP(tt.policy, tt.reportOnly))
		})
	}
}

func TestIsPathnameExcluded(t *testing.T) {
	rules := []string{"/ajax/", "^/l\\.php.*", "^/groups/[0-9]+/"}
	assert.True(t, isPathnameExcluded("/ajax", rules))
	assert.True(t, isPathnameExcluded("/ajax/", rules))
	assert.False(t, isPathnameExcluded("/ajax/more", rules))
	assert.True(t, isPathnameExcluded("/l.php", rules))
	assert.True(t, isPathnameExcluded("/groups/42", rules))
	assert.False(t, isPathnameExcluded("/x/groups/42", rules))
	assert.False(t, isPathnameExcluded("/", nil))
	assert.False(t, isPathnameExcluded("/a", []string{"^(["}))
}

func TestIsLoggedIn(t *testing.T) {
	assert.True(t, isLoggedIn(model.OriginWhatsApp, nil))
	assert.False(t, isLoggedIn(model.OriginFacebook, nil))
	assert.False(t, isLoggedIn(model.OriginFacebook, []*http.Cookie{{Name: "datr", Value: "x"}}))
	assert.True(t, isLoggedIn(model.OriginMessenger, []*http.Cookie{{Name: "c_user", Value: "1"}}))
}

func TestFailureState_WithoutLists(t *testing.T) {
	f := newFixture(t, &fakeRoot{})
	s := NewSession(model.OriginWhatsApp, tab, nil, f.cfg)
	ctx := context.Background()

	st := s.failureState(ctx, model.ScriptRecord{RawJS: "x"}, "h", s.snapshotLists(ctx))
	assert.Equal(t, model.StateInvalid, st)

	s.cfg.KnownExtensionHashes = map[string]string{"h": "ext"}
	assert.Equal(t, model.StateRisk, s.failureState(ctx, model.ScriptRecord{RawJS: "x"}, "h", s.snapshotLists(ctx)))
	assert.Equal(t, model.StateInvalid, s.failureState(ctx, model.ScriptRecord{Src: "https://a/x.js"}, "h", s.snapshotLists(ctx)))
}

func TestRecordDisallowed_KeysExternalBySource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeRoot{})
	s := f.session(t, model.OriginWhatsApp)

	s.recordDisallowed(ctx, model.ScriptRecord{Src: "https://a/x.js"}, "")
	s.recordDisallowed(ctx, model.ScriptRecord{Src: "https://a/x.js"}, "")
	s.recordDisallowed(ctx, model.ScriptRecord{RawJS: "x"}, "")

	entries, err := f.disallow.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://a/x.js", entries[0].Key)
	assert.Equal(t, "https://a/x.js", entries[0].Script)
}

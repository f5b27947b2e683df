/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_CollectsScriptsAndManifest(t *testing.T) {
	base, err := url.Parse("https://www.facebook.com/home/")
	require.NoError(t, err)

	doc := `<html><head>
<script name="binary-transparency-manifest" type="application/json" data-manifest-type="longtail" data-manifest-rev="77">{"manifest":[],"manifest_hashes":{"main":"m","longtail":"l"}}</script>
<script type="application/json">{"not":"a script"}</script>
<script src="/static/a.js" data-btmanifest="77_main"></script>
</head><body>
<script data-binary-transparency-hash-key="k1">  run();</script>
</body></html>`

	res, err := Scan(strings.NewReader(doc), base)
	require.NoError(t, err)

	require.NotNil(t, res.Manifest)
	assert.Equal(t, "longtail", res.Manifest.Type)
	assert.Equal(t, "77", res.Manifest.Rev)
	assert.Empty(t, res.Violations)

	want := []model.ScriptRecord{
		{Src: "https://www.facebook.com/static/a.js", OtherType: "main"},
		{RawJS: "  run();", LookupKey: "k1"},
	}
	if diff := cmp.Diff(want, res.Scripts); diff != "" {
		t.Errorf("scripts mismatch (-want +got):\n%s", diff)
	}
}

func TestScan_Violations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"clean", `<a href="/x">x</a><img src="a.png">`, 0},
		{"event handler", `<div onclick="x()"></div>`, 1},
		{"two handlers", `<body onload="a()"><img onerror="b()"></body>`, 2},
		{"javascript anchor", `<a href="javascript:void(0)">x</a>`, 1},
		{"javascript iframe", `<iframe src="JAVASCRIPT:alert(1)"></iframe>`, 1},
		{"form action", `<form action="javascript:x()"></form>`, 1},
		{"blob script", `<script src="blob:https://example.com/abc"></script>`, 1},
		{"math href", `<math><mi href="javascript:x()">x</mi></math>`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Scan(strings.NewReader(tt.doc), nil)
			require.NoError(t, err)
			assert.Len(t, res.Violations, tt.want)
		})
	}
}

func TestParseManifest(t *testing.T) {
	t.Run("standard with numeric version", func(t *testing.T) {
		m, err := parseManifest(model.OriginWhatsApp, &ManifestNode{
			Text: `{"leaves":["0xaa","0xbb"],"root":"0xcc","version":1012}`,
		})
		require.NoError(t, err)
		assert.Equal(t, "1012", m.version)
		assert.Equal(t, "0xcc", m.rootHash)
		assert.Equal(t, []string{"0xaa", "0xbb"}, m.leaves)
		assert.Nil(t, m.otherHashes)
	})

	t.Run("company", func(t *testing.T) {
		m, err := parseManifest(model.OriginMessenger, &ManifestNode{
			Text: `{"manifest":["aa"],"manifest_hashes":{"main":"m","longtail":"l","combined_hash":"c"}}`,
			Type: "main",
			Rev:  "5",
		})
		require.NoError(t, err)
		assert.Equal(t, "5", m.version)
		assert.Equal(t, "c", m.rootHash)
		assert.Equal(t, "main", m.otherType)
		require.NotNil(t, m.otherHashes)
		assert.Equal(t, "l", m.otherHashes.Longtail)
	})

	for name, text := range map[string]string{
		"not json":        `{leaves`,
		"missing root":    `{"leaves":[],"version":"1"}`,
		"leaf not string": `{"leaves":[1],"root":"r","version":"1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseManifest(model.OriginWhatsApp, &ManifestNode{Text: text})
			assert.True(t, errors.Is(err, ErrInvalidManifest), "got %v", err)
		})
	}

	t.Run("company without hashes", func(t *testing.T) {
		_, err := parseManifest(model.OriginFacebook, &ManifestNode{
			Text: `{"leaves":[],"root":"r","version":"1"}`,
		})
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256Hex_KnownVector(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", SHA256HexString("abc"))
}

func TestDecodeHexLeaf(t *testing.T) {
	b, err := DecodeHexLeaf("0x0aff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, b)

	b, err = DecodeHexLeaf("0aff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, b)

	_, err = DecodeHexLeaf("zz")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", 499) + "é();"
	got := Truncate(s, 500)
	assert.Equal(t, strings.Repeat("a", 499), got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "日", Truncate("日本", 5))
	assert.Equal(t, "", Truncate("日本", 2))
}

func TestOrderedSet_KeepsFirstSeenOrder(t *testing.T) {
	s := NewOrderedSet[string]()
	assert.True(t, s.Add("b"))
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("b"))
	assert.Equal(t, []string{"b", "a"}, s.Items())
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
}

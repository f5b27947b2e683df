/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256HexString hashes the UTF-8 bytes of s.
func SHA256HexString(s string) string {
	return SHA256Hex([]byte(s))
}

// TrimHexPrefix drops a single leading "0x".
func TrimHexPrefix(s string) string {
	return strings.TrimPrefix(s, "0x")
}

// DecodeHexLeaf decodes a leaf hash, with or without the "0x" prefix.
func DecodeHexLeaf(leaf string) ([]byte, error) {
	b, err := hex.DecodeString(TrimHexPrefix(leaf))
	if err != nil {
		return nil, fmt.Errorf("decode leaf %q: %w", leaf, err)
	}
	return b, nil
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

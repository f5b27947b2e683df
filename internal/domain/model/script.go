/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// ScriptRecord is one script awaiting a verdict: either external (Src) or
// inline (RawJS).
type ScriptRecord struct {
	Src       string
	RawJS     string
	LookupKey string
	OtherType string
}

func (r ScriptRecord) IsExternal() bool {
	return r.Src != ""
}

// Key identifies the record in allow and disallow lists.
func (r ScriptRecord) Key(hash string) string {
	if r.IsExternal() {
		return r.Src
	}
	return hash
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// ListEntry is a persisted allow-list or disallow-list row. Key is a script
// URL for external scripts or the content hash for inline ones.
type ListEntry struct {
	ID        int64
	Key       string
	Script    string
	CreatedAt time.Time
}

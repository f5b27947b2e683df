/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Manifest is one verified version of a site's trusted script hashes.
type Manifest struct {
	Origin    Origin
	Version   string
	RootHash  string
	Leaves    []string
	CreatedAt time.Time
}

// OtherHashes carries the two partial roots published by company origins.
type OtherHashes struct {
	Main         string `json:"main" cbor:"main"`
	Longtail     string `json:"longtail" cbor:"longtail"`
	CombinedHash string `json:"combined_hash,omitempty" cbor:"combined_hash,omitempty"`
}

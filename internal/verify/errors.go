/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verify

import "errors"

var (
	ErrNoLeaves    = errors.New("manifest has no leaves")
	ErrInvalidLeaf = errors.New("leaf is not a hex hash")
)

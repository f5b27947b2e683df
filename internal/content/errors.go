/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import "errors"

var (
	ErrInvalidManifest = errors.New("invalid binary transparency manifest")
	ErrNoPageURL       = errors.New("page has no URL")
)

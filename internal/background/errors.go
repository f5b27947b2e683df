/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import "errors"

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrInvalidValue   = errors.New("invalid value")
)

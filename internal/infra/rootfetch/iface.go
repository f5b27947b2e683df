/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package rootfetch

import "context"

// IRootSource fetches the authoritative root published for a manifest version.
type IRootSource interface {
	FetchRoot(ctx context.Context, host, version string) (*RootDocument, error)
}

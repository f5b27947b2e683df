/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"

	"github.com/kentakayama/bt-verify/internal/domain/model"
)

// ScriptListRepository persists allow-list or disallow-list entries keyed by
// script URL or content hash.
type ScriptListRepository interface {
	Add(ctx context.Context, e *model.ListEntry) (int64, error)
	Has(ctx context.Context, key string) (bool, error)
	FindByKey(ctx context.Context, key string) (*model.ListEntry, error)
	List(ctx context.Context) ([]model.ListEntry, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, key string) error
}

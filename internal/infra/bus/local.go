/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package bus

import (
	"context"
	"net/http"

	"github.com/kentakayama/bt-verify/internal/background"
)

// Local delivers messages to an engine in the same process.
type Local struct {
	engine *background.Engine
}

func NewLocal(engine *background.Engine) *Local {
	return &Local{engine: engine}
}

func (l *Local) Send(ctx context.Context, msg background.Message) (background.Response, error) {
	return l.engine.Dispatch(ctx, msg)
}

func (l *Local) RecordHeaders(_ context.Context, tabID int, header http.Header) error {
	l.engine.RecordHeaders(tabID, header)
	return nil
}

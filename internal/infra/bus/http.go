/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package bus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/kentakayama/bt-verify/internal/background"
	"github.com/kentakayama/bt-verify/internal/config"
	"go.uber.org/zap"
)

const (
	contentTypeCBOR  = "application/cbor"
	maxResponseBytes = 1 << 20
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTP delivers messages to a remote verification server as CBOR.
type HTTP struct {
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger
}

func NewHTTP(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  config.LoggerOrNop(logger),
	}
}

func (b *HTTP) Send(ctx context.Context, msg background.Message) (background.Response, error) {
	var resp background.Response

	body, err := background.EncodeCBOR(msg)
	if err != nil {
		return resp, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	raw, err := b.do(ctx, http.MethodPost, "/message", body)
	if err != nil {
		return resp, fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	if len(raw) == 0 {
		return resp, nil
	}
	if err := cbor.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("decode %s response: %w", msg.Type(), err)
	}
	return resp, nil
}

func (b *HTTP) RecordHeaders(ctx context.Context, tabID int, header http.Header) error {
	body, err := cbor.Marshal(map[string]string{
		"cspHeader":       header.Get(background.HeaderCSP),
		"cspReportHeader": header.Get(background.HeaderCSPReportOnly),
	})
	if err != nil {
		return err
	}
	_, err = b.do(ctx, http.MethodPut, "/tabs/"+strconv.Itoa(tabID)+"/headers", body)
	return err
}

func (b *HTTP) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeCBOR)
	req.Header.Set("Accept", contentTypeCBOR)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.logger.Debugf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(raw))
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return raw, nil
}

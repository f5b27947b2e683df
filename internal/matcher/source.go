/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package matcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode"
)

const (
	// PackageDelimiter separates packages bundled into one script response.
	PackageDelimiter = "/*FB_PKG_DELIM*/\n"

	inlinedScriptPrefix = "data:application/x-javascript"
	sourceURLComment    = "//# sourceURL="
	sourceMapComment    = "//# sourceMappingURL="
	maxScriptSize       = 32 << 20
)

var (
	ErrInvalidSourceURL = errors.New("invalid sourceURL in inlined data script")
	ErrMalformedDataURL = errors.New("malformed data URL")
)

// FetchSource returns the script text behind src, ready to be split into
// packages. data: URLs are decoded locally, everything else is fetched with
// client, which should carry the page's cookies.
func FetchSource(ctx context.Context, client *http.Client, src string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var text string
	if strings.HasPrefix(src, "data:") {
		body, err := decodeDataURL(src)
		if err != nil {
			return "", err
		}
		text = string(body)
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("fetch %s: unexpected status %s", src, resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", src, err)
		}
		text = string(body)
	}
	return sourceText(src, text)
}

// sourceText strips trailing sourceURL and sourceMappingURL comments from
// inlined data scripts. The comments are only honoured at the very end of
// the script: anything after a sourceURL comment would execute in the page
// yet be hashed away here, so a sourceURL must be the last line and must
// point at an http(s) location.
func sourceText(src, text string) (string, error) {
	if !strings.HasPrefix(src, inlinedScriptPrefix) {
		return text, nil
	}

	lines := strings.Split(strings.TrimRightFunc(text, unicode.IsSpace), "\n")
	if last := lines[len(lines)-1]; strings.HasPrefix(last, sourceURLComment) {
		lines = lines[:len(lines)-1]
		sourceURL := strings.TrimPrefix(last, sourceURLComment)
		if !strings.HasPrefix(sourceURL, "http") {
			return "", fmt.Errorf("%w: %q", ErrInvalidSourceURL, sourceURL)
		}
	}
	for len(lines) > 0 {
		last := lines[len(lines)-1]
		if last != "" && !strings.HasPrefix(last, sourceMapComment) {
			break
		}
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// SplitPackages splits a bundled script into its packages, each with leading
// whitespace removed as the page loader does.
func SplitPackages(text string) []string {
	packages := strings.Split(text, PackageDelimiter)
	for i, pkg := range packages {
		packages[i] = strings.TrimLeftFunc(pkg, unicode.IsSpace)
	}
	return packages
}

// decodeDataURL decodes an RFC 2397 data URL.
func decodeDataURL(src string) ([]byte, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, ErrMalformedDataURL
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return []byte(s), nil
}

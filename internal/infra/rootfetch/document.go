/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package rootfetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingPayload means the endpoint answered but published no root.
	ErrMissingPayload = errors.New("root document has no payload")
	ErrSignature      = errors.New("root document signature invalid")
)

// RootDocument is the published form {"<version>": {"<path>": "<hash>"}, "root_hash": "<hex>"}.
type RootDocument struct {
	Version  string
	RootHash string
	Files    map[string]string

	// FilesErr is set when the per-file listing could not be decoded.
	// The listing is informational, so the document stays usable.
	FilesErr error
}

// TrimmedRoot returns the root hash without its optional 0x prefix.
func (d *RootDocument) TrimmedRoot() string {
	return strings.TrimPrefix(d.RootHash, "0x")
}

// ParseRootDocument decodes the JSON root document for version.
func ParseRootDocument(data []byte, version string) (*RootDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode root document: %w", err)
	}
	if raw == nil {
		return nil, ErrMissingPayload
	}

	doc := &RootDocument{Version: version}
	if rh, ok := raw["root_hash"]; ok {
		if err := json.Unmarshal(rh, &doc.RootHash); err != nil {
			return nil, fmt.Errorf("decode root_hash: %w", err)
		}
	}
	if doc.RootHash == "" {
		return nil, ErrMissingPayload
	}
	if files, ok := raw[version]; ok {
		if err := json.Unmarshal(files, &doc.Files); err != nil {
			doc.Files = nil
			doc.FilesErr = fmt.Errorf("decode file listing: %w", err)
		}
	}
	return doc, nil
}

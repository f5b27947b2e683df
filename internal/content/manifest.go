/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const manifestSchemaURL = "manifest.schema.json"

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

var manifestSchema = mustCompileManifestSchema()

func mustCompileManifestSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(manifestSchemaJSON)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(manifestSchemaURL)
}

// rawManifest is the JSON carried by the manifest script node. Company
// pages use Manifest and ManifestHashes, the others Leaves and Root.
type rawManifest struct {
	Leaves         []string           `json:"leaves"`
	Root           string             `json:"root"`
	Version        manifestVersion    `json:"version"`
	Manifest       []string           `json:"manifest"`
	ManifestHashes *model.OtherHashes `json:"manifest_hashes"`
}

// manifestVersion accepts both JSON strings and numbers.
type manifestVersion string

func (v *manifestVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = manifestVersion(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = manifestVersion(n.String())
	return nil
}

// ManifestNode is the manifest script element found in a page.
type ManifestNode struct {
	Text string
	// Type and Rev come from data-manifest-type and data-manifest-rev.
	Type string
	Rev  string
}

// parsedManifest holds what a LOAD_MANIFEST needs.
type parsedManifest struct {
	version     string
	rootHash    string
	leaves      []string
	otherHashes *model.OtherHashes
	otherType   string
}

func parseManifest(origin model.Origin, node *ManifestNode) (*parsedManifest, error) {
	var doc any
	dec := json.NewDecoder(strings.NewReader(node.Text))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var raw rawManifest
	if err := json.Unmarshal([]byte(node.Text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if origin.IsCompany() {
		if raw.ManifestHashes == nil {
			return nil, fmt.Errorf("%w: missing manifest_hashes", ErrInvalidManifest)
		}
		return &parsedManifest{
			version:     node.Rev,
			rootHash:    raw.ManifestHashes.CombinedHash,
			leaves:      raw.Manifest,
			otherHashes: raw.ManifestHashes,
			otherType:   node.Type,
		}, nil
	}
	return &parsedManifest{
		version:  string(raw.Version),
		rootHash: raw.Root,
		leaves:   raw.Leaves,
	}, nil
}

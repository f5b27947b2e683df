/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kentakayama/bt-verify/internal/util"
)

// MerkleRoot reduces leaves to a single hash. Adjacent nodes are paired left
// to right and hashed as SHA-256(left || right); an unpaired last node is
// carried into the next layer as is, never duplicated or padded. A single
// leaf is its own root.
func MerkleRoot(leaves [][]byte) ([]byte, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	layer := leaves
	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i+1 < len(layer); i += 2 {
			h := sha256.New()
			h.Write(layer[i])
			h.Write(layer[i+1])
			next = append(next, h.Sum(nil))
		}
		if len(layer)%2 == 1 {
			next = append(next, layer[len(layer)-1])
		}
		layer = next
	}
	return layer[0], nil
}

// MerkleRootHex decodes hex leaves (optionally 0x-prefixed) and returns the
// hex-encoded root.
func MerkleRootHex(leaves []string) (string, error) {
	decoded := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		b, err := util.DecodeHexLeaf(leaf)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidLeaf, err)
		}
		decoded[i] = b
	}
	root, err := MerkleRoot(decoded)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(root), nil
}

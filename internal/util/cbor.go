/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBORToJSON decodes one CBOR item and renders it as indented JSON. Byte
// strings become h'..' literals and tags become {"tag": n, "content": ...}
// so that bus messages and signed root documents can be inspected.
func CBORToJSON(data []byte) (string, error) {
	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode cbor: %w", err)
	}
	out, err := json.MarshalIndent(jsonable(decoded), "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// jsonable rewrites the values cbor produces for an untyped target into
// values encoding/json accepts. Map keys end up sorted by json itself.
func jsonable(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = jsonable(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[cborKey(k)] = jsonable(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = jsonable(elem)
		}
		return out
	case []byte:
		return fmt.Sprintf("h'%x'", v)
	case cbor.Tag:
		return map[string]any{"tag": v.Number, "content": jsonable(v.Content)}
	default:
		return v
	}
}

func cborKey(k any) string {
	switch k := k.(type) {
	case string:
		return k
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	default:
		return fmt.Sprint(k)
	}
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

func DecodeJSON(data []byte) (Message, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return e.Message()
}

func DecodeCBOR(data []byte) (Message, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return e.Message()
}

func EncodeJSON(m Message) ([]byte, error) {
	return json.Marshal(Wrap(m))
}

func EncodeCBOR(m Message) ([]byte, error) {
	return cbor.Marshal(Wrap(m))
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// Origin identifies a protected site family.
type Origin string

const (
	OriginFacebook  Origin = "FACEBOOK"
	OriginMessenger Origin = "MESSENGER"
	OriginWhatsApp  Origin = "WHATSAPP"
	OriginKVStore   Origin = "KVSTORE"
)

// Origins lists every supported site family.
var Origins = []Origin{OriginFacebook, OriginMessenger, OriginWhatsApp, OriginKVStore}

func (o Origin) Valid() bool {
	for _, known := range Origins {
		if o == known {
			return true
		}
	}
	return false
}

// IsCompany reports whether the origin publishes main/longtail hashes
// instead of a Merkle root anchored at an external endpoint.
func (o Origin) IsCompany() bool {
	return o == OriginFacebook || o == OriginMessenger
}

func (o Origin) String() string {
	return string(o)
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// Reason codes carried by a Verdict. The misspelling of VERIFY is part of
// the wire format.
const (
	ReasonEndpointFailure     = "ENDPOINT_FAILURE"
	ReasonUnknownEndpoint     = "UNKNOWN_ENDPOINT_ISSUE"
	ReasonRootFailThirdParty  = "ROOT_HASH_VERFIY_FAIL_3RD_PARTY"
	ReasonRootFailInPage      = "ROOT_HASH_VERFIY_FAIL_IN_PAGE"
	ReasonNoMatchingOrigin    = "no matching origin"
	ReasonNoMatchingManifest  = "no matching manifest"
	ReasonCompanyVerifyFailed = "COMPANY_MANIFEST_VERIFY_FAIL"
)

// Verdict is the only result type returned over the message channel.
type Verdict struct {
	Valid  bool   `json:"valid" cbor:"valid"`
	Hash   string `json:"hash,omitempty" cbor:"hash,omitempty"`
	Reason string `json:"reason,omitempty" cbor:"reason,omitempty"`
}

func Valid() Verdict {
	return Verdict{Valid: true}
}

func Invalid(reason string) Verdict {
	return Verdict{Valid: false, Reason: reason}
}

// IsEndpointFailure reports whether the verdict failed because the
// authoritative root could not be fetched.
func (v Verdict) IsEndpointFailure() bool {
	return !v.Valid && (v.Reason == ReasonEndpointFailure || v.Reason == ReasonUnknownEndpoint)
}

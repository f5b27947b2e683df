/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"fmt"

	"github.com/kentakayama/bt-verify/internal/domain/model"
)

type MessageType string

const (
	TypeLoadManifest       MessageType = "LOAD_MANIFEST"
	TypeRawJS              MessageType = "RAW_JS"
	TypeDebug              MessageType = "DEBUG"
	TypeGetDebug           MessageType = "GET_DEBUG"
	TypeUpdateState        MessageType = "UPDATE_STATE"
	TypeContentScriptStart MessageType = "CONTENT_SCRIPT_START"
)

// Sender identifies the page frame a message came from.
type Sender struct {
	TabID   int `json:"tabId" cbor:"tabId"`
	FrameID int `json:"frameId" cbor:"frameId"`
}

// Message is implemented only by the variants in this file.
type Message interface {
	Type() MessageType
	From() Sender
	isMessage()
}

type LoadManifest struct {
	Sender      Sender
	Origin      model.Origin
	Version     string
	RootHash    string
	Leaves      []string
	OtherHashes *model.OtherHashes
	Workaround  string
}

type RawJS struct {
	Sender    Sender
	Origin    model.Origin
	Version   string
	RawJS     string
	Src       string
	LookupKey string
}

type Debug struct {
	Sender Sender
	Log    string
}

type GetDebug struct {
	Sender Sender
	TabID  int
}

type UpdateState struct {
	Sender Sender
	State  model.State
	Origin model.Origin
}

type ContentScriptStart struct {
	Sender Sender
	Origin model.Origin
}

func (LoadManifest) Type() MessageType       { return TypeLoadManifest }
func (RawJS) Type() MessageType              { return TypeRawJS }
func (Debug) Type() MessageType              { return TypeDebug }
func (GetDebug) Type() MessageType           { return TypeGetDebug }
func (UpdateState) Type() MessageType        { return TypeUpdateState }
func (ContentScriptStart) Type() MessageType { return TypeContentScriptStart }

func (m LoadManifest) From() Sender       { return m.Sender }
func (m RawJS) From() Sender              { return m.Sender }
func (m Debug) From() Sender              { return m.Sender }
func (m GetDebug) From() Sender           { return m.Sender }
func (m UpdateState) From() Sender        { return m.Sender }
func (m ContentScriptStart) From() Sender { return m.Sender }

func (LoadManifest) isMessage()       {}
func (RawJS) isMessage()              {}
func (Debug) isMessage()              {}
func (GetDebug) isMessage()           {}
func (UpdateState) isMessage()        {}
func (ContentScriptStart) isMessage() {}

// Envelope is the wire form shared by every message: a type tag plus the
// union of all payload fields.
type Envelope struct {
	Type        MessageType        `json:"type" cbor:"type"`
	Sender      Sender             `json:"sender" cbor:"sender"`
	Origin      model.Origin       `json:"origin,omitempty" cbor:"origin,omitempty"`
	Version     string             `json:"version,omitempty" cbor:"version,omitempty"`
	RootHash    string             `json:"rootHash,omitempty" cbor:"rootHash,omitempty"`
	Leaves      []string           `json:"leaves,omitempty" cbor:"leaves,omitempty"`
	OtherHashes *model.OtherHashes `json:"otherHashes,omitempty" cbor:"otherHashes,omitempty"`
	Workaround  string             `json:"workaround,omitempty" cbor:"workaround,omitempty"`
	RawJS       string             `json:"rawjs,omitempty" cbor:"rawjs,omitempty"`
	Src         string             `json:"src,omitempty" cbor:"src,omitempty"`
	LookupKey   string             `json:"lookupKey,omitempty" cbor:"lookupKey,omitempty"`
	Log         string             `json:"log,omitempty" cbor:"log,omitempty"`
	TabID       int                `json:"tabId,omitempty" cbor:"tabId,omitempty"`
	State       model.State        `json:"state,omitempty" cbor:"state,omitempty"`
}

// Wrap converts a message into its wire form.
func Wrap(m Message) Envelope {
	e := Envelope{Type: m.Type(), Sender: m.From()}
	switch m := m.(type) {
	case LoadManifest:
		e.Origin = m.Origin
		e.Version = m.Version
		e.RootHash = m.RootHash
		e.Leaves = m.Leaves
		e.OtherHashes = m.OtherHashes
		e.Workaround = m.Workaround
	case RawJS:
		e.Origin = m.Origin
		e.Version = m.Version
		e.RawJS = m.RawJS
		e.Src = m.Src
		e.LookupKey = m.LookupKey
	case Debug:
		e.Log = m.Log
	case GetDebug:
		e.TabID = m.TabID
	case UpdateState:
		e.State = m.State
		e.Origin = m.Origin
	case ContentScriptStart:
		e.Origin = m.Origin
	}
	return e
}

// Message decodes the envelope into its variant.
func (e Envelope) Message() (Message, error) {
	switch e.Type {
	case TypeLoadManifest:
		return LoadManifest{
			Sender:      e.Sender,
			Origin:      e.Origin,
			Version:     e.Version,
			RootHash:    e.RootHash,
			Leaves:      e.Leaves,
			OtherHashes: e.OtherHashes,
			Workaround:  e.Workaround,
		}, nil
	case TypeRawJS:
		return RawJS{
			Sender:    e.Sender,
			Origin:    e.Origin,
			Version:   e.Version,
			RawJS:     e.RawJS,
			Src:       e.Src,
			LookupKey: e.LookupKey,
		}, nil
	case TypeDebug:
		return Debug{Sender: e.Sender, Log: e.Log}, nil
	case TypeGetDebug:
		return GetDebug{Sender: e.Sender, TabID: e.TabID}, nil
	case TypeUpdateState:
		if !e.State.Valid() {
			return nil, fmt.Errorf("%w: state %q", ErrInvalidValue, e.State)
		}
		return UpdateState{Sender: e.Sender, State: e.State, Origin: e.Origin}, nil
	case TypeContentScriptStart:
		return ContentScriptStart{Sender: e.Sender, Origin: e.Origin}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, e.Type)
	}
}

// Response is the union of every reply payload. Fields a message does not
// answer with stay empty.
type Response struct {
	Valid           bool     `json:"valid,omitempty" cbor:"valid,omitempty"`
	Hash            string   `json:"hash,omitempty" cbor:"hash,omitempty"`
	Reason          string   `json:"reason,omitempty" cbor:"reason,omitempty"`
	Success         bool     `json:"success,omitempty" cbor:"success,omitempty"`
	DebugList       []string `json:"debugList,omitempty" cbor:"debugList,omitempty"`
	CSPHeader       string   `json:"cspHeader,omitempty" cbor:"cspHeader,omitempty"`
	CSPReportHeader string   `json:"cspReportHeader,omitempty" cbor:"cspReportHeader,omitempty"`
}

// verdictReply answers LOAD_MANIFEST and RAW_JS.
type verdictReply struct {
	Valid  bool   `json:"valid" cbor:"valid"`
	Hash   string `json:"hash,omitempty" cbor:"hash,omitempty"`
	Reason string `json:"reason,omitempty" cbor:"reason,omitempty"`
}

type debugReply struct {
	Valid     bool     `json:"valid" cbor:"valid"`
	DebugList []string `json:"debugList" cbor:"debugList"`
}

type successReply struct {
	Success bool `json:"success" cbor:"success"`
}

type startReply struct {
	Success         bool   `json:"success" cbor:"success"`
	CSPHeader       string `json:"cspHeader,omitempty" cbor:"cspHeader,omitempty"`
	CSPReportHeader string `json:"cspReportHeader,omitempty" cbor:"cspReportHeader,omitempty"`
}

// Reply returns the wire shape answering a message of type t. Mandatory
// fields such as valid are always present there, unlike in Response.
func (r Response) Reply(t MessageType) any {
	switch t {
	case TypeLoadManifest, TypeRawJS:
		return verdictReply{Valid: r.Valid, Hash: r.Hash, Reason: r.Reason}
	case TypeGetDebug:
		list := r.DebugList
		if list == nil {
			list = []string{}
		}
		return debugReply{Valid: r.Valid, DebugList: list}
	case TypeUpdateState:
		return successReply{Success: r.Success}
	case TypeContentScriptStart:
		return startReply{Success: r.Success, CSPHeader: r.CSPHeader, CSPReportHeader: r.CSPReportHeader}
	default:
		return r
	}
}

func verdictResponse(v model.Verdict) Response {
	return Response{Valid: v.Valid, Hash: v.Hash, Reason: v.Reason}
}

// Verdict extracts the verification result of a LOAD_MANIFEST or RAW_JS reply.
func (r Response) Verdict() model.Verdict {
	return model.Verdict{Valid: r.Valid, Hash: r.Hash, Reason: r.Reason}
}

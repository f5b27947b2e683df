/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// State is the trust level of a page or frame.
type State string

const (
	StateStart      State = "START"
	StateProcessing State = "PROCESSING"
	StateIgnore     State = "IGNORE"
	StateValid      State = "VALID"
	StateInvalid    State = "INVALID"
	StateRisk       State = "RISK"
	StateTimeout    State = "TIMEOUT"
)

var severity = map[State]int{
	StateIgnore:     0,
	StateValid:      1,
	StateStart:      2,
	StateProcessing: 3,
	StateTimeout:    4,
	StateRisk:       5,
	StateInvalid:    6,
}

func (s State) Valid() bool {
	_, ok := severity[s]
	return ok
}

// Severity orders states so that the most severe frame decides a tab.
func (s State) Severity() int {
	return severity[s]
}

// Terminal states never transition again within a page load.
func (s State) Terminal() bool {
	return s == StateInvalid || s == StateIgnore
}

// PopupState maps a state onto the indicator shown to users.
func (s State) PopupState() string {
	switch s {
	case StateStart, StateProcessing, StateIgnore:
		return "loading"
	case StateInvalid:
		return "error"
	case StateRisk:
		return "warning_risk"
	case StateValid:
		return "valid"
	case StateTimeout:
		return "warning_timeout"
	default:
		return string(s)
	}
}

// CanTransition reports whether a frame in state s may move to next.
// INVALID and IGNORE are final, and RISK may only escalate to INVALID.
func (s State) CanTransition(next State) bool {
	if !next.Valid() {
		return false
	}
	switch {
	case s.Terminal():
		return false
	case s == StateRisk:
		return next == StateRisk || next == StateInvalid
	default:
		return true
	}
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"sync"

	"github.com/kentakayama/bt-verify/internal/domain/model"
)

// TabStates tracks the trust state of every frame of every tab. A tab shows
// the most severe state among its frames.
type TabStates struct {
	mu   sync.Mutex
	tabs map[int]map[int]model.State
}

func NewTabStates() *TabStates {
	return &TabStates{tabs: make(map[int]map[int]model.State)}
}

// Start resets the sender's frame to START. A new top frame discards the
// states of the previous page.
func (t *TabStates) Start(s Sender) {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames, ok := t.tabs[s.TabID]
	if !ok || s.FrameID == 0 {
		frames = make(map[int]model.State)
		t.tabs[s.TabID] = frames
	}
	frames[s.FrameID] = model.StateStart
}

// Update moves the sender's frame to next if the transition is allowed and
// reports whether it was applied.
func (t *TabStates) Update(s Sender, next model.State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames, ok := t.tabs[s.TabID]
	if !ok {
		frames = make(map[int]model.State)
		t.tabs[s.TabID] = frames
	}
	cur, ok := frames[s.FrameID]
	if !ok {
		cur = model.StateStart
	}
	if !cur.CanTransition(next) {
		return false
	}
	frames[s.FrameID] = next
	return true
}

// State returns the aggregated state of a tab.
func (t *TabStates) State(tabID int) (model.State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames, ok := t.tabs[tabID]
	if !ok || len(frames) == 0 {
		return "", false
	}
	var worst model.State
	first := true
	for _, st := range frames {
		if first || st.Severity() > worst.Severity() {
			worst = st
			first = false
		}
	}
	return worst, true
}

func (t *TabStates) RemoveTab(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tabs, tabID)
}

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import "sync"

// DebugLog keeps an append-only list of diagnostics per tab.
type DebugLog struct {
	mu   sync.Mutex
	tabs map[int][]string
}

func NewDebugLog() *DebugLog {
	return &DebugLog{tabs: make(map[int][]string)}
}

func (d *DebugLog) Add(tabID int, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs[tabID] = append(d.tabs[tabID], msg)
}

// List returns a copy of the tab's messages, empty for an unknown tab.
func (d *DebugLog) List(tabID int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.tabs[tabID]))
	copy(out, d.tabs[tabID])
	return out
}

func (d *DebugLog) RemoveTab(tabID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tabs, tabID)
}

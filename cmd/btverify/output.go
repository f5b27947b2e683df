/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/util"
	"github.com/olekukonko/tablewriter"
)

const scriptPreview = 60

var stateColors = map[model.State]*color.Color{
	model.StateValid:   color.New(color.FgGreen),
	model.StateInvalid: color.New(color.FgRed, color.Bold),
	model.StateRisk:    color.New(color.FgYellow),
	model.StateTimeout: color.New(color.FgYellow),
	model.StateIgnore:  color.New(color.FgHiBlack),
}

func colorState(s model.State) string {
	if c, ok := stateColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func printReport(w io.Writer, r *report) {
	table := newTable(w, "FIELD", "VALUE")
	table.AppendBulk([][]string{
		{"url", r.URL},
		{"origin", r.Origin.String()},
		{"session", r.Session},
		{"version", r.Version},
		{"state", colorState(r.State)},
		{"popup", r.State.PopupState()},
	})
	table.Render()

	if len(r.Debug) == 0 {
		return
	}
	fmt.Fprintln(w)
	debug := newTable(w, "#", "DEBUG")
	for i, line := range r.Debug {
		debug.Append([]string{fmt.Sprint(i + 1), line})
	}
	debug.Render()
}

func printEntries(w io.Writer, entries []model.ListEntry) {
	table := newTable(w, "KEY", "SCRIPT", "ADDED")
	for _, e := range entries {
		script := strings.Join(strings.Fields(e.Script), " ")
		table.Append([]string{e.Key, util.Truncate(script, scriptPreview), e.CreatedAt.Format(time.RFC3339)})
	}
	table.Render()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return data, nil
}

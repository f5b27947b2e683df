/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/domain/service"
	"github.com/kentakayama/bt-verify/internal/infra/sqlite"
	"github.com/kentakayama/bt-verify/internal/util"
	"github.com/spf13/cobra"
)

type listRepoFactory func(*sql.DB) *sqlite.ScriptListRepository

func init() {
	rootCmd.AddCommand(
		newListCmd("allow", "Scripts trusted even when they fail verification", sqlite.NewAllowListRepository),
		newListCmd("disallow", "Scripts that failed verification", sqlite.NewDisallowListRepository),
	)
}

func newListCmd(name, short string, factory listRepoFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
	}

	withRepo := func(run func(context.Context, service.ScriptListRepository, []string, io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			db, err := sqlite.InitDB(ctx, cfg.GetString("db"))
			if err != nil {
				return err
			}
			defer func() { _ = sqlite.CloseDB(db) }()
			return run(ctx, factory(db), args, cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <script-file-or-url> [key]",
			Short: "Add an external script URL or an inline script file",
			Long: `An argument starting with http:// or https:// is an external script keyed by
its URL. Anything else is read as an inline script keyed by its SHA-256 hash
unless a key is given.`,
			Args: cobra.RangeArgs(1, 2),
			RunE: withRepo(addEntry),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List entries",
			Args:  cobra.NoArgs,
			RunE:  withRepo(listEntries),
		},
		&cobra.Command{
			Use:   "remove <key>",
			Short: "Remove an entry",
			Args:  cobra.ExactArgs(1),
			RunE: withRepo(func(ctx context.Context, repo service.ScriptListRepository, args []string, _ io.Writer) error {
				return repo.Delete(ctx, args[0])
			}),
		},
	)
	return cmd
}

func addEntry(ctx context.Context, repo service.ScriptListRepository, args []string, w io.Writer) error {
	entry, err := newEntry(args)
	if err != nil {
		return err
	}
	if _, err := repo.Add(ctx, entry); err != nil {
		return err
	}
	fmt.Fprintln(w, entry.Key)
	return nil
}

func newEntry(args []string) (*model.ListEntry, error) {
	src := args[0]
	if isURL(src) {
		return &model.ListEntry{Key: src, Script: src}, nil
	}
	data, err := readFile(src)
	if err != nil {
		return nil, err
	}
	e := &model.ListEntry{Key: util.SHA256Hex(data), Script: string(data)}
	if len(args) > 1 {
		e.Key = args[1]
	}
	return e, nil
}

func listEntries(ctx context.Context, repo service.ScriptListRepository, _ []string, w io.Writer) error {
	entries, err := repo.List(ctx)
	if err != nil {
		return err
	}
	printEntries(w, entries)
	return nil
}

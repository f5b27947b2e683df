/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kentakayama/bt-verify/internal/domain"
	"github.com/kentakayama/bt-verify/internal/domain/model"
)

const (
	allowListTable    = "allowlist"
	disallowListTable = "disallowlist"
)

// ScriptListRepository handles allow-list or disallow-list persistence.
// Both lists share one table layout.
type ScriptListRepository struct {
	db    *sql.DB
	table string
}

func NewAllowListRepository(db *sql.DB) *ScriptListRepository {
	return &ScriptListRepository{db: db, table: allowListTable}
}

func NewDisallowListRepository(db *sql.DB) *ScriptListRepository {
	return &ScriptListRepository{db: db, table: disallowListTable}
}

// Add inserts a new entry and returns the inserted id. Adding a key twice
// returns domain.ErrAlreadyExists.
func (r *ScriptListRepository) Add(ctx context.Context, e *model.ListEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	q := `INSERT INTO ` + r.table + ` (key, script, created_at) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.Key, e.Script, e.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, domain.ErrAlreadyExists
		}
		return 0, fmt.Errorf("insert %s entry: %w", r.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// Has reports whether key is listed.
func (r *ScriptListRepository) Has(ctx context.Context, key string) (bool, error) {
	q := `SELECT 1 FROM ` + r.table + ` WHERE key = ? LIMIT 1`
	var one int
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query %s: %w", r.table, err)
	}
	return true, nil
}

// FindByKey returns the entry for key or domain.ErrNotFound.
func (r *ScriptListRepository) FindByKey(ctx context.Context, key string) (*model.ListEntry, error) {
	q := `
		SELECT id, key, script, created_at
		FROM ` + r.table + `
		WHERE key = ?
		LIMIT 1
	`
	var e model.ListEntry
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&e.ID, &e.Key, &e.Script, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s entry: %w", r.table, err)
	}
	return &e, nil
}

// List returns every entry ordered by insertion.
func (r *ScriptListRepository) List(ctx context.Context) ([]model.ListEntry, error) {
	q := `SELECT id, key, script, created_at FROM ` + r.table + ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var entries []model.ListEntry
	for rows.Next() {
		var e model.ListEntry
		if err := rows.Scan(&e.ID, &e.Key, &e.Script, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s entry: %w", r.table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of listed keys.
func (r *ScriptListRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+r.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

// Delete removes key. Deleting an unknown key returns domain.ErrNotFound.
func (r *ScriptListRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s entry: %w", r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all brigade tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		admin_email TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS dishes (
		id           TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name         TEXT NOT NULL,
		prep_minutes INTEGER NOT NULL,
		ingredients  TEXT NOT NULL DEFAULT '[]'
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		dish_id      TEXT NOT NULL DEFAULT '',
		dish_name    TEXT NOT NULL DEFAULT '',
		table_number INTEGER NOT NULL DEFAULT 0,
		quantity     INTEGER NOT NULL DEFAULT 0,
		is_vip       INTEGER NOT NULL DEFAULT 0,
		state        TEXT NOT NULL DEFAULT 'ACTIVE',
		placed_at    TEXT NOT NULL,
		prep_minutes INTEGER NOT NULL DEFAULT 0,
		start_at     TEXT NOT NULL,
		allergies    TEXT NOT NULL DEFAULT '[]',
		seq          INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_dishes_workspace_id ON dishes(workspace_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_workspace_id ON tasks(workspace_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(workspace_id, state)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "dishes",
		column:   "image_url",
		alterSQL: "ALTER TABLE dishes ADD COLUMN image_url TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Execute ALTER TABLE statements idempotently.
	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

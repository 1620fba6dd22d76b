// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package duckdbx

import (
	"context"
	"fmt"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/idgen"
)

// StagingName returns a fresh name for loading into before publishing to
// table.
func StagingName(table string) string {
	return table + "_stage_" + idgen.ShortID()
}

// PublishTable moves the rows of stage into table in one transaction and
// drops stage. With replace set, table is replaced outright; otherwise the
// rows are appended to it, creating it when missing.
func PublishTable(ctx context.Context, db *DB, stage, table string, replace bool) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	qStage, qTable := coltype.QuoteName(stage), coltype.QuoteName(table)
	exists := false
	if !replace {
		row := tx.QueryRowContext(ctx,
			"SELECT count(*) > 0 FROM duckdb_tables() WHERE table_name = ?", table)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("look up table: %w", err)
		}
	}

	var stmts []string
	if exists {
		stmts = []string{
			"INSERT INTO " + qTable + " BY NAME SELECT * FROM " + qStage,
			"DROP TABLE " + qStage,
		}
	} else {
		stmts = []string{
			"DROP TABLE IF EXISTS " + qTable,
			"ALTER TABLE " + qStage + " RENAME TO " + qTable,
		}
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("publish %s: %w (SQL: %s)", table, err, s)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DropTable removes table if it exists.
func DropTable(ctx context.Context, db *DB, table string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+coltype.QuoteName(table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	return nil
}

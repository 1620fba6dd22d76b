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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execAll(t *testing.T, db *DB, stmts ...string) {
	t.Helper()
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	for _, s := range stmts {
		_, err := conn.ExecContext(context.Background(), s)
		require.NoError(t, err, s)
	}
}

func queryInt(t *testing.T, db *DB, q string) int64 {
	t.Helper()
	rows, conn, err := db.QueryContext(context.Background(), q)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	return n
}

func TestStagingName(t *testing.T) {
	a, b := StagingName("events"), StagingName("events")
	assert.True(t, strings.HasPrefix(a, "events_stage_"))
	assert.NotEqual(t, a, b)
}

func TestPublishTableCreatesAndAppends(t *testing.T) {
	ctx := context.Background()
	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	execAll(t, db, "CREATE TABLE s1 (a BIGINT)", "INSERT INTO s1 VALUES (1), (2)")
	require.NoError(t, PublishTable(ctx, db, "s1", "events", false))
	assert.Equal(t, int64(2), queryInt(t, db, "SELECT count(*) FROM events"))

	execAll(t, db, "CREATE TABLE s2 (a BIGINT)", "INSERT INTO s2 VALUES (3)")
	require.NoError(t, PublishTable(ctx, db, "s2", "events", false))
	assert.Equal(t, int64(3), queryInt(t, db, "SELECT count(*) FROM events"))
	assert.Equal(t, int64(0), queryInt(t, db, "SELECT count(*) FROM duckdb_tables() WHERE table_name LIKE 's%'"))
}

func TestPublishTableReplaces(t *testing.T) {
	ctx := context.Background()
	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	execAll(t, db,
		"CREATE TABLE events (old VARCHAR)", "INSERT INTO events VALUES ('x'), ('y')",
		"CREATE TABLE s (a BIGINT)", "INSERT INTO s VALUES (7)")
	require.NoError(t, PublishTable(ctx, db, "s", "events", true))
	assert.Equal(t, int64(7), queryInt(t, db, "SELECT max(a) FROM events"))

	require.NoError(t, DropTable(ctx, db, "events"))
	assert.Equal(t, int64(0), queryInt(t, db, "SELECT count(*) FROM duckdb_tables()"))
}

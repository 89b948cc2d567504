package database_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/internal/testutil"
	"github.com/Ramsey-B/heather/pkg/database"
)

func countNotes(t *testing.T, ctx context.Context, db database.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.Conn(ctx, db).GetContext(ctx, &n, "SELECT COUNT(*) FROM notes"))
	return n
}

func newNotesDB(t *testing.T) database.DB {
	db := testutil.NewDB(t)
	_, err := db.ExecContext(context.Background(), "CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL)")
	require.NoError(t, err)
	return db
}

func insertNote(t *testing.T, ctx context.Context, db database.DB, id, body string) {
	t.Helper()
	ib := database.NewInsertBuilder(db.Flavor()).InsertInto("notes").Cols("id", "body").Values(id, body)
	ib.OnConflictDoUpdate([]string{"id"}, database.Excluded("body"))
	query, args := ib.Build()
	_, err := database.Conn(ctx, db).ExecContext(ctx, query, args...)
	require.NoError(t, err)
}

func TestGetTxJoinsOpenTransaction(t *testing.T) {
	db := newNotesDB(t)
	logger := testutil.Logger()

	ctx, outer, err := database.GetTx(context.Background(), logger, db, nil)
	require.NoError(t, err)
	assert.True(t, outer.Owner())

	joinedCtx, inner, err := database.GetTx(ctx, logger, db, nil)
	require.NoError(t, err)
	assert.False(t, inner.Owner())

	insertNote(t, joinedCtx, db, "n1", "first")
	require.NoError(t, inner.Commit(joinedCtx))
	assert.Equal(t, 1, countNotes(t, ctx, db))

	require.NoError(t, outer.Rollback(ctx))
	assert.False(t, outer.IsOpen())
	assert.Equal(t, 0, countNotes(t, context.Background(), db))
}

func TestCommitClosesTransaction(t *testing.T) {
	db := newNotesDB(t)
	logger := testutil.Logger()

	ctx, tx, err := database.GetTx(context.Background(), logger, db, nil)
	require.NoError(t, err)
	insertNote(t, ctx, db, "n1", "first")
	insertNote(t, ctx, db, "n1", "second")
	require.NoError(t, tx.Commit(ctx))

	assert.Error(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))

	var body string
	require.NoError(t, db.GetContext(context.Background(), &body, "SELECT body FROM notes WHERE id = 'n1'"))
	assert.Equal(t, "second", body)
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, sqlbuilder.SQLite, database.FlavorFor("sqlite"))
	assert.Equal(t, sqlbuilder.PostgreSQL, database.FlavorFor("postgres"))
}

func TestToAny(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, database.ToAny([]string{"a", "b"}))
}

func TestLatestVersion(t *testing.T) {
	migrations := fstest.MapFS{
		"000002_items.up.sql":      {Data: []byte("SELECT 1")},
		"000002_items.down.sql":    {Data: []byte("SELECT 1")},
		"000010_ledgers.up.sql":    {Data: []byte("SELECT 1")},
		"000001_identities.up.sql": {Data: []byte("SELECT 1")},
		"README.md":                {Data: []byte("notes")},
	}
	version, err := database.LatestVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, 10, version)

	_, err = database.LatestVersion(fstest.MapFS{})
	assert.Error(t, err)
}

func TestApplySchemaRunsStatementsInOrder(t *testing.T) {
	db := testutil.NewDB(t)
	migrations := fstest.MapFS{
		"000002_seed.up.sql":   {Data: []byte("INSERT INTO widgets (id) VALUES ('w1');\nINSERT INTO widgets (id) VALUES ('w2');")},
		"000001_create.up.sql": {Data: []byte("CREATE TABLE IF NOT EXISTS widgets (id TEXT PRIMARY KEY);")},
	}
	require.NoError(t, database.ApplySchema(context.Background(), db, migrations))

	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM widgets"))
	assert.Equal(t, 2, n)
}

package database

import (
	"context"
	"path/filepath"
	"testing"

	"learnapp/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_CreatesSchema(t *testing.T) {
	dm := NewManager(observability.NewNopLogger())
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := dm.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)`, "k", "v", 1)
	require.NoError(t, err)

	var value string
	require.NoError(t, db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, "k").Scan(&value))
	assert.Equal(t, "v", value)

	// Re-applying the schema is a no-op.
	require.NoError(t, dm.RunMigrations(context.Background(), db))
}

func TestOpenSQLite_Reopen(t *testing.T) {
	dm := NewManager(observability.NewNopLogger())
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := dm.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO kv_store (key, value, updated_at) VALUES ('a', 'b', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = dm.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv_store`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	dm := NewManager(observability.NewNopLogger())
	_, err := dm.OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}

func TestParseSchemaStatements(t *testing.T) {
	schema := `
-- leading comment
/* block
   comment */
CREATE TABLE a (id INTEGER); -- trailing
/* one-line block */
CREATE INDEX idx ON a (id);
`
	statements := ParseSchemaStatements(schema)
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx ON a (id)"}, statements)

	assert.Len(t, ParseSchemaStatements(schemaSQL), 2)
}

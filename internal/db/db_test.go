package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blog.db")
	conn, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"users", "posts", "comments", "sessions"} {
		var name string
		err := conn.Get(&name, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	var fk int
	require.NoError(t, conn.Get(&fk, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, fk)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog.db")
	first, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	first.Close()

	second, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	second.Close()
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "blog.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", sqliteDSN("blog.db"))
	assert.Equal(t, "blog.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", sqliteDSN("blog.db?cache=shared"))
	assert.Equal(t, "blog.db?_fk=1&_busy_timeout=10&_txlock=deferred", sqliteDSN("blog.db?_fk=1&_busy_timeout=10&_txlock=deferred"))
}

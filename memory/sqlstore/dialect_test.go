package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for driver, want := range map[string]string{
		"sqlite":   "sqlite",
		"sqlite3":  "sqlite",
		"postgres": "postgres",
		"mysql":    "mysql",
	} {
		d, err := dialectFor(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want, d.name, driver)
	}

	for _, driver := range []string{"mssql", "pgx"} {
		_, err := dialectFor(driver)
		assert.Error(t, err, driver)
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT 1 FROM t WHERE a = ? AND b = ?`
	assert.Equal(t, `SELECT 1 FROM t WHERE a = $1 AND b = $2`, dialect{name: "postgres"}.rebind(q))
	assert.Equal(t, q, dialect{name: "mysql"}.rebind(q))
	assert.Equal(t, q, dialect{name: "sqlite"}.rebind(q))
}

func TestDialect_Upsert(t *testing.T) {
	assert.Contains(t, dialect{name: "postgres"}.upsert("s"), "ON CONFLICT (session_id)")
	assert.Contains(t, dialect{name: "postgres"}.upsert("s"), "$4")
	assert.Contains(t, dialect{name: "sqlite"}.upsert("s"), "excluded.history")
	assert.Contains(t, dialect{name: "mysql"}.upsert("s"), "ON DUPLICATE KEY UPDATE")
}

func TestDialect_SelectForUpdate(t *testing.T) {
	assert.NotContains(t, dialect{name: "sqlite"}.selectHistoryForUpdate("s"), "FOR UPDATE")
	assert.Contains(t, dialect{name: "postgres"}.selectHistoryForUpdate("s"), "FOR UPDATE")
	assert.Contains(t, dialect{name: "mysql"}.selectHistoryForUpdate("s"), "FOR UPDATE")
}

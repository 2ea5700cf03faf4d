package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := (&Loader{}).Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Runner.MaxTurns)
	assert.Equal(t, 10*time.Second, cfg.Runner.PersistTimeout)
	assert.Equal(t, "sqlite", cfg.Memory.Backend)
	assert.Equal(t, ":memory:", cfg.Memory.Database.Database)
	assert.Equal(t, "sqlite3", cfg.Memory.Database.DriverName())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
runner:
  max_turns: 4
  persist_timeout: 3s
memory:
  backend: sqlite
  database:
    driver: sqlite
    database: `+filepath.Join(dir, "sessions.db")+`
logging:
  level: debug
`), 0o600))

	t.Setenv("AGENTLOOP_RUNNER_MAX_PARALLEL_TOOLS", "3")

	cfg, err := (&Loader{ConfigPath: path}).Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Runner.MaxTurns)
	assert.Equal(t, 3, cfg.Runner.MaxParallelTools)
	assert.Equal(t, 3*time.Second, cfg.Runner.PersistTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, "sessions.db"), cfg.Memory.Database.DSN())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGENTLOOP_MEMORY_BACKEND=inmemory\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGENTLOOP_MEMORY_BACKEND") })

	cfg, err := (&Loader{EnvFiles: []string{envFile, filepath.Join(dir, "missing.env")}}).Load()
	require.NoError(t, err)
	assert.Equal(t, "inmemory", cfg.Memory.Backend)
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("AGENTLOOP_MEMORY_BACKEND", "redis")
	_, err := (&Loader{}).Load()
	assert.ErrorContains(t, err, "unknown memory.backend")
}

func TestDatabaseConfig(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Database: "agents", Username: "u", Password: "p"}
	pg.SetDefaults()
	require.NoError(t, pg.Validate())
	assert.Equal(t, "host=db port=5432 dbname=agents user=u password=p sslmode=disable", pg.DSN())
	assert.Equal(t, "postgres", pg.Dialect())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Database: "agents", Username: "u", Password: "p"}
	my.SetDefaults()
	require.NoError(t, my.Validate())
	assert.Equal(t, "u:p@tcp(db:3306)/agents?parseTime=true", my.DSN())

	bad := DatabaseConfig{Driver: "postgres", Database: "agents"}
	assert.ErrorContains(t, bad.Validate(), "host is required")

	badTable := DatabaseConfig{Driver: "sqlite", Database: "x.db", Table: "drop table;"}
	assert.Error(t, badTable.Validate())

	unknown := DatabaseConfig{Driver: "oracle", Database: "x"}
	assert.ErrorContains(t, unknown.Validate(), "invalid driver")
}

func TestDatabaseConfig_DSNQuoting(t *testing.T) {
	const password = `two words 'n \ more`

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Database: "agents", Username: "u", Password: password}
	pg.SetDefaults()
	assert.Equal(t, `host=db port=5432 dbname=agents user=u password='two words \'n \\ more' sslmode=disable`, pg.DSN())
	_, err := pq.NewConnector(pg.DSN())
	require.NoError(t, err)

	my := DatabaseConfig{Driver: "mysql", Host: "db", Database: "agents", Username: "u", Password: "p@ss:w/rd"}
	my.SetDefaults()
	parsed, err := mysql.ParseDSN(my.DSN())
	require.NoError(t, err)
	assert.Equal(t, "u", parsed.User)
	assert.Equal(t, "p@ss:w/rd", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "agents", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

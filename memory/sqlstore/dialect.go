package sqlstore

import (
	"fmt"
	"strings"
)

// dialect captures the SQL differences between the supported engines.
type dialect struct {
	name string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return dialect{name: "sqlite"}, nil
	case "postgres":
		return dialect{name: "postgres"}, nil
	case "mysql":
		return dialect{name: "mysql"}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// schema returns the statements creating the session table. They are executed
// one by one since not every driver accepts multi-statement strings.
func (d dialect) schema(table string) []string {
	switch d.name {
	case "postgres":
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				session_id TEXT PRIMARY KEY,
				history TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_updated ON %s(updated_at)`, table, table),
		}
	case "mysql":
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				session_id VARCHAR(255) NOT NULL PRIMARY KEY,
				history LONGTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				INDEX idx_%s_updated (updated_at)
			)`, table, table),
		}
	default:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				session_id TEXT PRIMARY KEY,
				history TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_updated ON %s(updated_at)`, table, table),
		}
	}
}

// upsert inserts a session record or replaces history and updated_at of an
// existing one. created_at of an existing record is left untouched.
func (d dialect) upsert(table string) string {
	switch d.name {
	case "mysql":
		return fmt.Sprintf(`INSERT INTO %s (session_id, history, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE history = VALUES(history), updated_at = VALUES(updated_at)`, table)
	default:
		return d.rebind(fmt.Sprintf(`INSERT INTO %s (session_id, history, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET history = excluded.history, updated_at = excluded.updated_at`, table))
	}
}

// selectHistoryForUpdate reads the history row inside the append transaction,
// locking it where the engine supports row locks.
func (d dialect) selectHistoryForUpdate(table string) string {
	q := fmt.Sprintf(`SELECT history FROM %s WHERE session_id = ?`, table)
	if d.name != "sqlite" {
		q += " FOR UPDATE"
	}
	return d.rebind(q)
}

// rebind converts ? placeholders to $n for postgres.
func (d dialect) rebind(query string) string {
	if d.name != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

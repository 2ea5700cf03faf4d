package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// DatabaseConfig describes the SQL database behind the session memory backend.
type DatabaseConfig struct {
	// Driver specifies the database driver: "sqlite", "postgres" or "mysql".
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`

	// Host is the database server hostname (not required for SQLite).
	Host string `mapstructure:"host" yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the database server port (not required for SQLite).
	Port int `mapstructure:"port" yaml:"port,omitempty" json:"port,omitempty"`

	// Database is the database name, or the file path for SQLite (":memory:" for a
	// process local database).
	Database string `mapstructure:"database" yaml:"database" json:"database"`

	Username string `mapstructure:"username" yaml:"username,omitempty" json:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode for PostgreSQL connections.
	SSLMode string `mapstructure:"ssl_mode" yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	// Table holds the session records.
	Table string `mapstructure:"table" yaml:"table,omitempty" json:"table,omitempty"`

	MaxConns int `mapstructure:"max_conns" yaml:"max_conns,omitempty" json:"max_conns,omitempty"`
	MaxIdle  int `mapstructure:"max_idle" yaml:"max_idle,omitempty" json:"max_idle,omitempty"`
}

// SetDefaults fills unset fields with driver specific defaults.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.Table == "" {
		c.Table = "sessions"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}

	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}

	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}

	if c.Dialect() == "sqlite" && c.Database == "" {
		c.Database = ":memory:"
	}
}

// Validate checks the configuration for consistency.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres", "mysql", "sqlite", "sqlite3":
	case "":
		return fmt.Errorf("driver is required")
	default:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}

	if c.Database == "" {
		return fmt.Errorf("database is required")
	}

	if c.Dialect() != "sqlite" && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}

	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must be non-negative")
	}

	if c.MaxIdle < 0 {
		return fmt.Errorf("max_idle must be non-negative")
	}

	if c.Table != "" && !validIdentifier(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}

	return nil
}

// DSN builds the driver specific data source name.
func (c *DatabaseConfig) DSN() string {
	switch c.Dialect() {
	case "postgres":
		kv := []string{
			"host=" + pgValue(c.Host),
			"port=" + strconv.Itoa(c.Port),
			"dbname=" + pgValue(c.Database),
		}
		if c.Username != "" {
			kv = append(kv, "user="+pgValue(c.Username))
		}
		if c.Password != "" {
			kv = append(kv, "password="+pgValue(c.Password))
		}
		if c.SSLMode != "" {
			kv = append(kv, "sslmode="+pgValue(c.SSLMode))
		}
		return strings.Join(kv, " ")
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		// timestamps are scanned into time.Time
		mc.ParseTime = true
		return mc.FormatDSN()
	case "sqlite":
		return c.Database
	default:
		return ""
	}
}

var pgEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pgValue quotes a libpq keyword value when it is empty or contains
// whitespace, quotes or backslashes.
func pgValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r'\\") {
		return v
	}
	return "'" + pgEscaper.Replace(v) + "'"
}

// DriverName returns the database/sql driver name.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect returns the SQL dialect: "sqlite", "postgres" or "mysql".
func (c *DatabaseConfig) Dialect() string {
	if c.Driver == "sqlite3" {
		return "sqlite"
	}
	return c.Driver
}

func validIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return !strings.HasPrefix(s, "sqlite_")
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory/sqlstore"
)

// Factory constructs a SessionMemory.
type Factory func(ctx context.Context) (core.SessionMemory, error)

var (
	defaultMu      sync.Mutex
	defaultBackend core.SessionMemory
	defaultFactory Factory = newDefaultSQLite
)

func newDefaultSQLite(context.Context) (core.SessionMemory, error) {
	return sqlstore.New(func(o *sqlstore.Options) {
		o.Driver = "sqlite3"
		o.DSN = ":memory:"
	})
}

// Default returns the process-wide default backend, constructing it with the
// registered factory on first use. Unless replaced through SetDefaultFactory
// it is a SQLite database held in process memory.
func Default(ctx context.Context) (core.SessionMemory, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBackend != nil {
		return defaultBackend, nil
	}
	b, err := defaultFactory(ctx)
	if err != nil {
		return nil, core.NewStorageError("", "init", fmt.Errorf("default backend: %w", err))
	}
	defaultBackend = b
	return b, nil
}

// SetDefaultFactory replaces the factory used for the default backend. An
// already constructed default backend is cleaned up so that the next use picks
// up the new factory. A nil factory restores the built-in SQLite one.
func SetDefaultFactory(ctx context.Context, f Factory) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if f == nil {
		f = newDefaultSQLite
	}
	defaultFactory = f
	return cleanupDefaultLocked(ctx)
}

// CleanupDefault tears down the default backend if it was constructed. It is
// safe to call repeatedly; a later Default call builds a fresh instance.
func CleanupDefault(ctx context.Context) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return cleanupDefaultLocked(ctx)
}

func cleanupDefaultLocked(ctx context.Context) error {
	if defaultBackend == nil {
		return nil
	}
	b := defaultBackend
	defaultBackend = nil
	return b.Cleanup(ctx)
}

// FromConfig builds the backend selected by cfg.
func FromConfig(cfg config.MemoryConfig, optFns ...func(o *sqlstore.Options)) (core.SessionMemory, error) {
	if cfg.Backend == "inmemory" {
		return NewInMemory(), nil
	}
	return sqlstore.OpenConfig(cfg.Database, optFns...)
}

// UseConfig registers cfg as the source of the default backend.
func UseConfig(ctx context.Context, cfg config.MemoryConfig) error {
	return SetDefaultFactory(ctx, func(context.Context) (core.SessionMemory, error) {
		return FromConfig(cfg)
	})
}

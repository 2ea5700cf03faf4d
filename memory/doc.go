// Package memory contains SessionMemory implementations and the per-agent
// memory policy. The SessionMemory interface resides in the core package;
// depend on core.SessionMemory in your code and select an implementation at
// wiring time:
//
//   - InMemory: volatile, process local, for tests and demos
//   - sqlstore.Store: the durable SQL reference backend (SQLite, PostgreSQL, MySQL)
//
// Agents choose between no memory, the shared default backend and an
// explicit backend through Policy. The default backend is constructed lazily
// on first use and torn down by CleanupDefault.
package memory

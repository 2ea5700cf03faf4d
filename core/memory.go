package core

import "context"

// SessionMemory persists ordered conversation history per session id. The
// runner depends only on this interface; any backend satisfying it can be
// plugged into an agent.
//
// Contract:
//   - LoadSession returns the stored items in append order, or an empty slice
//     (never an error) if the session does not exist
//   - AppendToSession adds items atomically to the end of the session, creating
//     it if needed; concurrent readers never observe a partial append. The
//     stored copies are renumbered so ordinals continue from the stored length
//   - SaveSession replaces the whole stored sequence, numbered from 0
//   - ClearSession removes a session and is idempotent
//   - Cleanup releases held resources, is idempotent, and invalidates the
//     instance for further use
//
// I/O failures are reported as *StorageError.
type SessionMemory interface {
	LoadSession(ctx context.Context, sessionID string) ([]Item, error)
	AppendToSession(ctx context.Context, sessionID string, items []Item) error
	SaveSession(ctx context.Context, sessionID string, items []Item) error
	ClearSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]string, error)
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	Cleanup(ctx context.Context) error
}

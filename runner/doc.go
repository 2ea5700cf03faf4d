// Package runner drives agents through the execution loop.
//
// A run is a state machine:
//
//	START -> INVOKE_MODEL -> {HANDLE_TOOLS, HANDLE_TRANSFER, DONE}
//	HANDLE_TOOLS -> INVOKE_MODEL
//	HANDLE_TRANSFER -> INVOKE_MODEL
//
// with FAILED as the second terminal state. Each step works on a snapshot of
// the history and its items only become part of the run once the step has
// completed, so an aborted step leaves nothing behind.
//
// Persistence happens once, when the run exits: the new input plus every item
// generated during the run is appended to the session memory of the agent
// that is active at that point. Prior history is read from the memory of the
// starting agent.
//
// Tool calls of one turn execute concurrently; their results are appended in
// the order the model requested them.
package runner

// Package core provides the foundational domain types and interfaces used by
// agentloop. It defines:
//
//   - Items (the immutable, ordered unit of conversation history)
//   - Content and its closed set of Parts, with a lossless JSON codec
//   - SessionMemory (the storage agnostic persistence contract)
//   - RunContext / ToolContext (scoped views handed to instructions and tools)
//   - The error taxonomy shared by the runner and its collaborators
//
// Implementation concerns (storage engines, model providers, the loop
// itself) live in other packages and depend on these small interfaces.
package core

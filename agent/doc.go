// Package agent describes the participants of a run.
//
// An Agent bundles a model with its instructions (static text, a template or
// a function of the run context), the tools it may call, the agents it may
// transfer control to, an optional structured output shape and a memory
// policy. Agents are immutable after New; derive variants with Clone.
//
// Cyclic transfer graphs cannot be expressed with immutable values. Build the
// leaves first and let the entry agent point at them.
package agent

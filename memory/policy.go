package memory

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentloop/core"
)

// PolicyKind tags the variant of a memory Policy.
type PolicyKind int

const (
	// PolicyDisabled means the agent never loads or persists history.
	PolicyDisabled PolicyKind = iota
	// PolicyDefault uses the process-wide default backend.
	PolicyDefault
	// PolicyExplicit uses a caller supplied backend.
	PolicyExplicit
)

// String returns the policy name.
func (k PolicyKind) String() string {
	switch k {
	case PolicyDisabled:
		return "disabled"
	case PolicyDefault:
		return "default"
	case PolicyExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
}

// Policy selects where an agent's conversation history lives. The zero value
// is Disabled.
type Policy struct {
	kind    PolicyKind
	backend core.SessionMemory
}

// Disabled returns a policy without memory.
func Disabled() Policy { return Policy{kind: PolicyDisabled} }

// DefaultBackend returns a policy using the shared default backend.
func DefaultBackend() Policy { return Policy{kind: PolicyDefault} }

// Explicit returns a policy bound to backend. A nil backend yields Disabled.
func Explicit(backend core.SessionMemory) Policy {
	if backend == nil {
		return Disabled()
	}
	return Policy{kind: PolicyExplicit, backend: backend}
}

// Kind returns the policy variant.
func (p Policy) Kind() PolicyKind { return p.kind }

// Enabled reports whether the policy stores history.
func (p Policy) Enabled() bool { return p.kind != PolicyDisabled }

// Backend returns the explicit backend, nil for the other variants.
func (p Policy) Backend() core.SessionMemory { return p.backend }

// Resolve returns the backend the policy points to, or nil when disabled. The
// default backend is constructed on first use.
func (p Policy) Resolve(ctx context.Context) (core.SessionMemory, error) {
	switch p.kind {
	case PolicyExplicit:
		return p.backend, nil
	case PolicyDefault:
		return Default(ctx)
	default:
		return nil, nil
	}
}

func (p Policy) String() string { return p.kind.String() }

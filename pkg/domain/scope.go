package domain

// Scope is the accounting bucket a daily quota applies to: a specific
// identity, or the reserved global bucket that aggregates all callers.
type Scope string

// GlobalScope is the reserved sentinel for account-wide accounting. The
// underscores keep it out of the identity namespace.
const GlobalScope Scope = "__global__"

// ScopeFor returns the per-identity scope for id, or GlobalScope when the
// identity is empty.
func ScopeFor(id Identity) Scope {
	if id.IsEmpty() {
		return GlobalScope
	}
	return Scope(id)
}

// IsGlobal reports whether this is the reserved global bucket.
func (s Scope) IsGlobal() bool { return s == GlobalScope }

func (s Scope) String() string { return string(s) }

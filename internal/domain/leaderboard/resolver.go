package leaderboard

import "strings"

// Identity is the resolved form of a free-form employee identifier.
type Identity struct {
	CanonicalName string
	Excluded      bool
}

// Resolver maps a badge id, username or email to a canonical identity.
type Resolver interface {
	Resolve(identity string) Identity
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(identity string) Identity

// Resolve calls f(identity).
func (f ResolverFunc) Resolve(identity string) Identity { return f(identity) }

// Passthrough resolves every identity to its trimmed self.
var Passthrough Resolver = ResolverFunc(func(identity string) Identity {
	return Identity{CanonicalName: strings.TrimSpace(identity)}
})

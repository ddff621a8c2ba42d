// Package reasoner holds the configuration shared by the forward-chaining,
// oriented-rewriting, universal-instantiation, and backward-chaining
// plugins (each in its own subpackage).
package reasoner

// Config bounds how aggressively the forward-reasoning plugins derive new
// assertions.
type Config struct {
	// MaxDerivedWeight rejects any derived conclusion heavier than this.
	MaxDerivedWeight int
	// MaxDerivationDepth rejects any derived conclusion deeper than this.
	// 10 comfortably exceeds the backward-chaining default of 8 while still
	// bounding runaway forward/rewrite/instantiation chains.
	MaxDerivationDepth int
	// MaxBackwardDepth is prove()'s default recursion bound, overridable
	// per query via parameters.maxDepth.
	MaxBackwardDepth int
}

// DefaultConfig returns the reasoner's default bounds.
func DefaultConfig() Config {
	return Config{
		MaxDerivedWeight:   150,
		MaxDerivationDepth: 10,
		MaxBackwardDepth:   8,
	}
}

// Package obslog builds the single zap.Logger every cmd/wordcpu binary
// logs through. It carries no mycelium-style context-scoped wrapper;
// callers hold the *zap.Logger and call it directly.
package obslog

import "go.uber.org/zap"

// New returns a development logger (human-readable, stack traces on
// Warn+) when verbose is set, otherwise a production logger (JSON,
// sampled, Info+).
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

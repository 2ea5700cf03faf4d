// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the runner, tools and memory backends use. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZerologAdapter and New(Config) for zerolog based setups
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "debug", Console: true, Pretty: true})
//	r := runner.New(agent, func(o *runner.Options) { o.Logger = logger })
package logging

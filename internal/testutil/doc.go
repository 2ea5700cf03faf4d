// Package testutil contains fakes and builders shared by tests: a scripted
// model, stub tools, a recording tracer and a fluent history builder. They are
// not intended for production usage.
package testutil

// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// A Request carries the active agent's instructions, the ordered conversation
// items and the advertised tools; a Model streams Responses back. Provider
// adapters (model/openai, model/anthropic) translate items into vendor
// messages and back, and model/retry adds backoff around any Model. The
// runner never retries a failed call itself.
package model

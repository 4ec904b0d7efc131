// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the memory store, embedding provider,
// LLM variants, reasoner process launcher, and notifier.
package driven

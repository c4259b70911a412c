// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the document store, blob store, search
// index, LLM service, and the upstream eCFR HTTP APIs.
package driven

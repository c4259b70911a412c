// Package driving provides interfaces for the operations the engine
// exposes to its entry points (primary/inbound ports).
package driving

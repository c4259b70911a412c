// Package memory provides in-memory implementations of the driven
// store ports. They mirror the MongoDB adapter's semantics (unique
// keys, unordered batch inserts, ascending-id streams) and back the
// service tests.
package memory

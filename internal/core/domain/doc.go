// Package domain contains the core entities for the eCFR ingest and
// analytics engine: regulation titles, the parsed document tree,
// per-title metrics, version timelines, LLM section analyses, and the
// progress records that make long-running jobs resumable.
//
// Domain types carry bson tags because the document store is the only
// persistence layer; no other storage mapping exists.
package domain

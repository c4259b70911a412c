// Package parser converts eCFR bulk XML for one title into the typed
// document tree persisted by the refresher. Parsing is pure: oversized
// fields are returned as spill requests for the caller to write to the
// blob store.
package parser

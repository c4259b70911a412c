// Package connectors groups the upstream data-source clients. The only
// source today is the eCFR bulk data service under connectors/ecfr.
package connectors

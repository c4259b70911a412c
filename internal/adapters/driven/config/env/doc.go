// Package env loads engine configuration from environment variables,
// with an optional prompts.toml override for the analysis prompts.
package env

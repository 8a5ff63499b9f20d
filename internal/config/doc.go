// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional YAML file. Settings are
// grouped into server, executor and session sections and validated with
// struct tags before use.
package config

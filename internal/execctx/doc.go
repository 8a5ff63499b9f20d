// Package execctx owns background execution contexts: it spawns them
// through a Host, sends each its single input message, receives its single
// result and terminates it. A Manager keeps at most one context live and
// drops results from any context but the most recent one.
package execctx

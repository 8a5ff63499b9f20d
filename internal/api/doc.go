// Package api exposes consumer sessions over HTTP. A remote consumer
// creates a session, attaches a function and input on every update, reads
// the current value (optionally waiting for it to settle) and deletes the
// session when done, which releases its background context.
package api

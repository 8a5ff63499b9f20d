// Package events provides lifecycle instrumentation for background
// execution contexts.
//
// The execution context manager emits a LifecycleEvent for every spawn,
// termination and result it sees. Handlers registered with an emitter can
// count, log or record them without the manager knowing who listens.
//
// The primary components are:
// - LifecycleEvent: One lifecycle step of one execution context handle
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
// - Counter, Recorder: Handlers that tally or keep the events they see
package events

// Package task describes the unit of background work: a function addressed
// by a stable name in a Registry, and the input it runs on. A Serializer
// turns a Descriptor into the Program a fresh execution context loads.
package task

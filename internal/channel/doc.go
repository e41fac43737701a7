// Package channel owns the raw sockets a trace protocol needs and
// exposes them through the narrow Channel interface. RawChannel is the
// production implementation; MemChannel is an in-memory stub used by
// internal/tracer's tests so the round-driving logic can be exercised
// without raw-socket privilege.
package channel

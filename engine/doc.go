// Package engine sequences compile jobs over a single-owner runtime heap.
//
// The engine runs one main loop goroutine that owns the runtime: every
// heap-touching job phase executes there, in order, one job at a time.
// Only the parse phase may leave the loop, and only when the unit's source
// resource declares itself background-safe and the admission gate agrees;
// a background parse hands the job back to the main loop for finalisation.
//
// Around that core the engine wires the ambient machinery: a middleware
// chain (panic recovery, tracing, metrics, logging) around every phase,
// extension lifecycle events, an optional compilation cache consulted
// before parsing and filled after a successful compile, and retry with
// backoff for internal (non-source) failures.
package engine

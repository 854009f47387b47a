// Package queue is the admission gate in front of the engine's background
// parse pool.
//
// A compile job's source resource decides whether its Parse step MAY run
// off the main loop; the gate decides whether it DOES, bounding how many
// background parses run at once and how fast new ones start. A refused
// job is not failed or delayed, it simply parses on the main loop.
//
// [Manager] combines a token-bucket rate limiter (golang.org/x/time/rate)
// with an active-count concurrency cap:
//
//	m := queue.NewManager(queue.Config{MaxConcurrency: 4, RateLimit: 100})
//	if m.Acquire() {
//	    defer m.Release()
//	    // parse on a background goroutine
//	}
package queue

// Package rar tracks in-flight loads and detects load-load ordering
// violations caused by cache-line releases.
//
// # The hazard
//
// In an out-of-order core, a younger load can read a cache line before an
// older load to the same line has executed. If the line is then
// invalidated (released), the older load's eventual read may observe a
// fresher value than the younger load did, which is inconsistent with
// program order. The queue watches for exactly this pattern and answers
// with a replay-from-fetch signal for the older load.
//
// # Quick start
//
//	q := rar.NewDefault()
//
//	for { // one iteration per machine step
//		out := q.Step(rar.Input{
//			Requests: requests,  // one candidate load per lane
//			Release:  release,   // this step's cache-line release, if any
//			Frontier: frontier,  // retirement frontier tag
//			Flush:    flush,     // this step's flush scope, if any
//		})
//		// out.Lanes[i].Ready:     lane i's load is now tracked
//		// out.Lanes[i].Violation: lane i's PREVIOUS request must replay
//	}
//
// # Step discipline
//
// Everything is lock-step. Admission answers arrive in the same step;
// violation answers one step later; a revoke may follow an admission by
// exactly one step; slots freed by retirement, flush or revoke are
// reusable from the next step. There are no blocking operations and no
// internal locking: one goroutine owns a queue and Step is its only entry
// point.
//
// # Backpressure
//
// Admission refusal is not an error. When the queue reports Full (fewer
// free slots than lanes) or a lane's Ready comes back false, the caller
// decides whether to stall or drop the candidate; the queue never retries
// on its own.
package rar

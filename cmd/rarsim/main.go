// Package main implements the rarsim CLI tool.
//
// rarsim drives the load-load ordering-violation queue with recorded or
// synthetic traffic:
//
//	rarsim gen trace.json             # emit a synthetic trace
//	rarsim run trace.json             # replay it and print a summary
//	rarsim run trace.json --record s.db   # also record per-step stats
//
// Traces are JSON documents describing per-step lane loads, cache-line
// releases, the retirement frontier, flushes and revokes.
package main

func main() {
	execute()
}

// Package rar provides the public API for the load-load ordering-violation
// tracker.
//
// See doc.go for detailed documentation and examples.
package rar

import (
	"github.com/isaac2077/XiangShan/internal/lsq/ordertag"
	lsq "github.com/isaac2077/XiangShan/internal/lsq/rar"
)

// Tag identifies a load's position in program order. Tags wrap around a
// bounded window; compare them only with IsOlder and IsNewer.
type Tag = ordertag.Tag

// FlushScope describes which in-flight tags a pipeline flush discards.
type FlushScope = ordertag.FlushScope

// TagFromSequence converts a monotonically increasing sequence number
// into a circular tag.
func TagFromSequence(seq uint64) Tag {
	return ordertag.FromSequence(seq)
}

// IsOlder reports whether a comes strictly before b in program order.
func IsOlder(a, b Tag) bool {
	return ordertag.IsOlder(a, b)
}

// IsNewer reports whether a comes strictly after b in program order.
func IsNewer(a, b Tag) bool {
	return ordertag.IsNewer(a, b)
}

// Config sizes a queue: slot count and requesting lane count.
type Config = lsq.Config

// Request is one lane's candidate load for a step.
type Request = lsq.Request

// Release is a cache-line release event.
type Release = lsq.Release

// Input carries one step's stimuli.
type Input = lsq.Input

// LaneResult is one lane's admission answer and (one step delayed)
// violation answer.
type LaneResult = lsq.LaneResult

// Output carries one step's results.
type Output = lsq.Output

// Queue is the ordering-violation tracker. Create one with New and drive
// it with Step; a queue belongs to a single goroutine.
type Queue = lsq.Queue

// Pipeline depths of the queue's staged signals, re-exported for callers
// that schedule around them.
const (
	QueryLatency = lsq.QueryLatency
	RevokeWindow = lsq.RevokeWindow
)

// New creates a queue from the configuration.
func New(cfg Config) (*Queue, error) {
	return lsq.New(cfg)
}

// NewDefault creates a queue with the default sizing (32 entries, 2 lanes).
func NewDefault() *Queue {
	q, err := lsq.New(lsq.DefaultConfig())
	if err != nil {
		// The default configuration is always valid.
		panic(err)
	}
	return q
}

// DefaultConfig returns the default queue sizing.
func DefaultConfig() Config {
	return lsq.DefaultConfig()
}

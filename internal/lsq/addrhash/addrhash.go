// Package addrhash implements the compact per-slot address store used for
// associative matching of in-flight loads.
//
// Physical addresses are never stored whole. Each slot holds a fixed-width
// fold (Code) of the load's cache-line address, and lookups compare folds
// instead of full addresses. Folding may alias two different lines onto the
// same code; that is safe, merely conservative, because a hash match only
// widens the set of candidate slots. Equal addresses always produce equal
// codes, so a real match is never missed.
//
// The table models a pipelined write port: a code written at step t becomes
// matchable only after WriteLatency steps. Callers that need the just
// written address for an in-flight check during that window must compare
// raw addresses themselves.
package addrhash

import (
	"fmt"
	"math/bits"
)

// Code is a fixed-width fold of a physical cache-line address.
type Code uint8

const (
	// LineShift is the number of low address bits inside a cache line
	// (64-byte lines). Those bits never participate in matching.
	LineShift = 6

	// WriteLatency is the number of steps between Write(slot, addr) and
	// the slot becoming visible to Match.
	WriteLatency = 2

	// MaxSlots is the largest table the slot bitset can represent.
	MaxSlots = 64
)

// Fold reduces a physical address to its line-granular Code by XOR-folding
// the line address one byte at a time. Equal addresses fold equal; nothing
// else is promised.
func Fold(addr uint64) Code {
	line := addr >> LineShift
	var c Code
	for line != 0 {
		c ^= Code(line)
		line >>= 8
	}
	return c
}

// SameLine reports whether two physical addresses fall on the same cache
// line. This is the raw comparison used during the write-latency window,
// where the folded code is not yet visible in the table.
func SameLine(a, b uint64) bool {
	return a>>LineShift == b>>LineShift
}

// Bitset is a fixed-width set of slot indices.
type Bitset uint64

// Has reports whether slot i is in the set.
func (b Bitset) Has(i int) bool { return b>>uint(i)&1 != 0 }

// Set returns the set with slot i added.
func (b Bitset) Set(i int) Bitset { return b | 1<<uint(i) }

// Clear returns the set with slot i removed.
func (b Bitset) Clear(i int) Bitset { return b &^ 1 << uint(i) }

// Any reports whether the set is non-empty.
func (b Bitset) Any() bool { return b != 0 }

// Count returns the number of slots in the set.
func (b Bitset) Count() int { return bits.OnesCount64(uint64(b)) }

// pendingWrite is one write sitting in the table's write pipeline.
type pendingWrite struct {
	slot int
	code Code
}

// Table stores one Code per slot with a staged write port.
//
// A Table is owned by a single step-driven caller; it is not safe for
// concurrent use. All mutation is resolved at Step boundaries.
type Table struct {
	codes []Code
	valid Bitset

	// pipe holds in-flight writes. pipe[0] received this step's writes;
	// entries landing from pipe[WriteLatency-1] become matchable.
	pipe [WriteLatency][]pendingWrite
}

// NewTable creates a table with the given number of slots (at most MaxSlots).
func NewTable(slots int) *Table {
	if slots <= 0 || slots > MaxSlots {
		panic(fmt.Sprintf("addrhash: slot count %d out of range (1-%d)", slots, MaxSlots))
	}
	return &Table{codes: make([]Code, slots)}
}

// Slots returns the table's slot count.
func (t *Table) Slots() int { return len(t.codes) }

// Write enqueues the fold of addr for the given slot. The code becomes
// visible to Match after WriteLatency calls to Step.
func (t *Table) Write(slot int, addr uint64) {
	t.pipe[0] = append(t.pipe[0], pendingWrite{slot: slot, code: Fold(addr)})
}

// Clear drops the slot's code immediately and scrubs any write still in
// flight for it. Used when a slot is freed or its admission is revoked
// before the write has landed.
func (t *Table) Clear(slot int) {
	t.valid = t.valid.Clear(slot)
	for s := range t.pipe {
		stage := t.pipe[s][:0]
		for _, w := range t.pipe[s] {
			if w.slot != slot {
				stage = append(stage, w)
			}
		}
		t.pipe[s] = stage
	}
}

// Match returns the set of slots whose landed code equals the fold of addr.
// Writes still in the pipeline do not participate.
func (t *Table) Match(addr uint64) Bitset {
	code := Fold(addr)
	var m Bitset
	for i, c := range t.codes {
		if t.valid.Has(i) && c == code {
			m = m.Set(i)
		}
	}
	return m
}

// Step advances the write pipeline by one step: the oldest stage lands in
// the table, younger stages shift up.
func (t *Table) Step() {
	for _, w := range t.pipe[WriteLatency-1] {
		t.codes[w.slot] = w.code
		t.valid = t.valid.Set(w.slot)
	}
	for s := WriteLatency - 1; s > 0; s-- {
		t.pipe[s] = t.pipe[s-1]
	}
	t.pipe[0] = nil
}

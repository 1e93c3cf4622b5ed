// Package freelist manages the pool of unused slot indices for a
// fixed-capacity tracking queue.
//
// The allocator is step-driven: within one step it can hand out several
// distinct slots (one per requesting lane, resolved in lane priority
// order) and accept a bitmask of slots to free. Freed slots are staged and
// only become allocatable at the next step, so a slot freed and requested
// in the same step is never reused while downstream state for it is still
// being torn down.
//
// Integrity rules are enforced with panics, not errors: freeing a slot
// that is already free, or allocating with nothing available after a
// successful CanAccept, indicates a defect in the caller, and the
// allocator fails loudly rather than corrupting its bitmaps.
package freelist

import (
	"fmt"
	"math/bits"
)

// MaxSlots is the largest pool the free bitmask can represent.
const MaxSlots = 64

// FreeList tracks which of a fixed pool of slot indices are unused.
//
// A FreeList is owned by a single step-driven caller; it is not safe for
// concurrent use.
type FreeList struct {
	slots    int
	lowWater int

	// free has bit i set when slot i is allocatable.
	free uint64

	// pendingFree holds slots freed this step; they merge into free at
	// the next Step boundary.
	pendingFree uint64

	// stepFree is the allocatable count captured at the last Step
	// boundary. CanAccept answers against this snapshot so that all
	// lanes of one step see a consistent view regardless of how many
	// grants have already committed.
	stepFree int
}

// New creates a free list covering slot indices [0, slots). The low-water
// mark is the free count below which Full reports backpressure, typically
// the number of requesting lanes.
func New(slots, lowWater int) *FreeList {
	if slots <= 0 || slots > MaxSlots {
		panic(fmt.Sprintf("freelist: slot count %d out of range (1-%d)", slots, MaxSlots))
	}
	if lowWater < 0 || lowWater > slots {
		panic(fmt.Sprintf("freelist: low-water mark %d out of range (0-%d)", lowWater, slots))
	}
	var all uint64
	if slots == MaxSlots {
		all = ^uint64(0)
	} else {
		all = 1<<uint(slots) - 1
	}
	return &FreeList{
		slots:    slots,
		lowWater: lowWater,
		free:     all,
		stepFree: slots,
	}
}

// Slots returns the pool size.
func (f *FreeList) Slots() int { return f.slots }

// CanAccept reports whether the request at the given priority offset can
// be satisfied this step: offset earlier grants plus this one must fit in
// the step-initial free count. Lane k of a step asks CanAccept(g) where g
// is the number of grants already made this step.
func (f *FreeList) CanAccept(offset int) bool {
	return f.stepFree > offset
}

// Alloc removes and returns the lowest free slot index. ok is false when
// nothing is free; callers gate allocation on CanAccept, so an exhausted
// Alloc is a refusal signal, never a fault.
func (f *FreeList) Alloc() (slot int, ok bool) {
	if f.free == 0 {
		return 0, false
	}
	slot = bits.TrailingZeros64(f.free)
	f.free &^= 1 << uint(slot)
	return slot, true
}

// Free stages a bitmask of slots for release. The slots become
// allocatable at the next Step boundary. Freeing a slot that is already
// free or already staged is a caller defect and panics.
func (f *FreeList) Free(mask uint64) {
	if mask == 0 {
		return
	}
	if f.slots < MaxSlots && mask>>uint(f.slots) != 0 {
		panic(fmt.Sprintf("freelist: free mask %#x has bits beyond slot count %d", mask, f.slots))
	}
	if stale := mask & (f.free | f.pendingFree); stale != 0 {
		panic(fmt.Sprintf("freelist: double free of slots %#x", stale))
	}
	f.pendingFree |= mask
}

// Step commits this step's staged frees and snapshots the free count the
// next step's CanAccept answers against.
func (f *FreeList) Step() {
	f.free |= f.pendingFree
	f.pendingFree = 0
	f.stepFree = bits.OnesCount64(f.free)
}

// FreeCount returns the number of currently allocatable slots. Staged
// frees do not count until the next step.
func (f *FreeList) FreeCount() int {
	return bits.OnesCount64(f.free)
}

// Count returns the number of slots currently handed out, staged frees
// included: a slot stays occupied until its release commits.
func (f *FreeList) Count() int {
	return f.slots - f.FreeCount()
}

// Full reports whether the allocatable count has dropped below the
// low-water mark, the signal for upstream admission to throttle.
func (f *FreeList) Full() bool {
	return f.FreeCount() < f.lowWater
}

// FreeMask returns the current allocatable bitmask. Used by integrity
// checks that verify the free set and the caller's allocated set
// partition the index space.
func (f *FreeList) FreeMask() uint64 {
	return f.free
}

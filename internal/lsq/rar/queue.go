// Package rar implements the load-load ordering-violation tracker: a
// fixed-capacity associative queue that watches in-flight loads and
// detects when a cache-line release races two loads to the same address.
//
// The hazard it guards against is read-after-read ordering: a younger load
// has already read a cache line, the line is then invalidated, and an
// older load to the same line is still in flight. The older load's
// eventual read can no longer be guaranteed consistent with program
// order, so it must be discarded and replayed from fetch.
//
// Execution is synchronous and lock-step. All lanes' admission decisions,
// violation probes, deallocations and the release-tracker update are
// logically simultaneous within one Step call; results become visible to
// dependent logic only in subsequent steps. Every cross-step hand-off is
// an explicit fixed-depth delay buffer rather than incidental execution
// order: the address write takes addrhash.WriteLatency steps to land, a
// probe answers QueryLatency steps later, a revoke looks back RevokeWindow
// steps, and release events stay relevant for ReleaseBufferDepth extra
// steps.
//
// A Queue is owned by one goroutine; a step is the only coordination
// point, and there is no locking anywhere in the structure.
package rar

import (
	"fmt"
	"strings"

	"github.com/isaac2077/XiangShan/internal/lsq/addrhash"
	"github.com/isaac2077/XiangShan/internal/lsq/freelist"
	"github.com/isaac2077/XiangShan/internal/lsq/ordertag"
)

const (
	// QueryLatency is the number of steps between a violation probe and
	// its response.
	QueryLatency = 1

	// RevokeWindow is how many steps after an accepted admission the
	// owning lane may still revoke it.
	RevokeWindow = 1

	// ReleaseBufferDepth is how many extra steps a release event is held
	// beyond the step it arrives in. It covers the address table's write
	// latency: an entry whose code has not landed yet would miss a
	// table-matched release without the replayed, buffered event.
	ReleaseBufferDepth = 1
)

// Config sizes a Queue.
type Config struct {
	// Entries is the slot count of the tracking queue.
	Entries int

	// Lanes is the number of load lanes that present requests each step.
	// It doubles as the allocator's low-water mark: the queue reports
	// full once fewer than Lanes slots are free.
	Lanes int
}

// DefaultConfig returns the sizing used by the simulator: a 32-entry
// queue fed by 2 load lanes.
func DefaultConfig() Config {
	return Config{Entries: 32, Lanes: 2}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.Entries <= 0 || c.Entries > addrhash.MaxSlots {
		return fmt.Errorf("rar: entries %d out of range (1-%d)", c.Entries, addrhash.MaxSlots)
	}
	if c.Lanes <= 0 || c.Lanes > c.Entries {
		return fmt.Errorf("rar: lanes %d out of range (1-%d)", c.Lanes, c.Entries)
	}
	return nil
}

// Request is one lane's candidate load for a step. The same request is
// both an admission attempt and a violation probe, keyed together: the
// admission answer comes back in this step's LaneResult, the probe answer
// in the next step's.
type Request struct {
	Valid bool

	// Addr is the load's physical address.
	Addr uint64

	// Tag is the load's program-order identifier.
	Tag ordertag.Tag

	// Exempt marks a load kind that cannot participate in the ordering
	// hazard (an uncached access). Exempt entries are admitted preset to
	// released and never trigger a violation themselves.
	Exempt bool
}

// Release is a cache-line release event: the line holding Addr has been
// invalidated or evicted and is no longer a valid cached copy.
type Release struct {
	Valid bool
	Addr  uint64
}

// Input carries everything the queue consumes in one step.
type Input struct {
	// Requests holds one entry per lane (length must equal Config.Lanes).
	Requests []Request

	// Revokes holds one flag per lane, referring to that lane's admission
	// in the previous step. May be nil when no lane revokes.
	Revokes []bool

	// Release is this step's cache-line release event, if any.
	Release Release

	// Frontier is the retirement frontier: every tag at or before it has
	// completed and needs no tracking.
	Frontier ordertag.Tag

	// Flush describes which in-flight tags this step's pipeline flush
	// discards, if any.
	Flush ordertag.FlushScope
}

// LaneResult is one lane's per-step answer.
type LaneResult struct {
	// Ready reports whether this step's request was admitted.
	Ready bool

	// Violation is the answer to the probe the lane issued in the
	// previous step: the replay-from-fetch signal.
	Violation bool
}

// Output carries everything the queue produces in one step.
type Output struct {
	Lanes []LaneResult

	// Count is the occupancy at the step boundary.
	Count int

	// Full reports backpressure: fewer than Lanes slots free.
	Full bool
}

// entry is one slot of the tracking queue. The slot's address code lives
// in the hashed-address table, not here.
type entry struct {
	allocated bool
	tag       ordertag.Tag
	released  bool
	exempt    bool
}

// admission remembers one lane's previous-step grant for the revoke window.
type admission struct {
	ok   bool
	slot int
}

// Queue is the ordering-violation tracker.
type Queue struct {
	cfg     Config
	entries []entry
	table   *addrhash.Table
	free    *freelist.FreeList

	// violationPipe delays probe answers by QueryLatency steps.
	violationPipe [QueryLatency][]bool

	// releasePipe replays release events for ReleaseBufferDepth extra
	// steps past their arrival.
	releasePipe [ReleaseBufferDepth]Release

	// admitPipe remembers per-lane grants for the revoke lookback.
	admitPipe [RevokeWindow][]admission

	step uint64
}

// New creates a queue from the configuration.
func New(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	q := &Queue{
		cfg:     cfg,
		entries: make([]entry, cfg.Entries),
		table:   addrhash.NewTable(cfg.Entries),
		free:    freelist.New(cfg.Entries, cfg.Lanes),
	}
	for i := range q.violationPipe {
		q.violationPipe[i] = make([]bool, cfg.Lanes)
	}
	for i := range q.admitPipe {
		q.admitPipe[i] = make([]admission, cfg.Lanes)
	}
	return q, nil
}

// Count returns the current occupancy.
func (q *Queue) Count() int { return q.free.Count() }

// Full reports whether fewer than Lanes slots are free.
func (q *Queue) Full() bool { return q.free.Full() }

// Step advances the queue by one step.
//
// The per-step resolution order is fixed and is the only serialization
// the structure needs:
//
//  1. Violation probes answer against the step-start state, so a release
//     arriving this step or an entry admitted this step can never affect
//     this step's probes.
//  2. The release tracker marks matching live entries released, replaying
//     the buffered previous event for codes that landed late.
//  3. Deallocation frees every entry the retirement frontier has passed
//     or the flush covers, against the step-start occupancy.
//  4. Revokes free the slots granted RevokeWindow steps ago.
//  5. Admissions claim slots in lane priority order (lower lane wins).
//  6. The staging pipelines drain: freed slots become allocatable next
//     step, address writes move one stage closer to landing.
func (q *Queue) Step(in Input) Output {
	if len(in.Requests) != q.cfg.Lanes {
		panic(fmt.Sprintf("rar: %d requests for %d lanes", len(in.Requests), q.cfg.Lanes))
	}
	if in.Revokes != nil && len(in.Revokes) != q.cfg.Lanes {
		panic(fmt.Sprintf("rar: %d revokes for %d lanes", len(in.Revokes), q.cfg.Lanes))
	}

	out := Output{Lanes: make([]LaneResult, q.cfg.Lanes)}

	// 1. Answer last step's probes, launch this step's.
	for lane := range out.Lanes {
		out.Lanes[lane].Violation = q.violationPipe[QueryLatency-1][lane]
	}
	probes := make([]bool, q.cfg.Lanes)
	for lane, req := range in.Requests {
		if req.Valid {
			probes[lane] = q.probe(req)
		}
	}

	// 2. Release tracking.
	q.applyRelease(in.Release)
	q.applyRelease(q.releasePipe[ReleaseBufferDepth-1])

	// 3. Deallocation on retirement or flush.
	var freed uint64
	for slot := range q.entries {
		e := &q.entries[slot]
		if !e.allocated {
			continue
		}
		if ordertag.Retired(e.tag, in.Frontier) || in.Flush.Covers(e.tag) {
			q.clearSlot(slot)
			freed |= 1 << uint(slot)
		}
	}

	// 4. Revokes against the previous step's grants.
	for lane := range in.Revokes {
		grant := q.admitPipe[RevokeWindow-1][lane]
		if !in.Revokes[lane] || !grant.ok {
			continue
		}
		// The slot may already be gone if a flush beat the revoke.
		if q.entries[grant.slot].allocated {
			q.clearSlot(grant.slot)
			freed |= 1 << uint(grant.slot)
		}
	}

	// 5. Admissions in lane priority order.
	grants := make([]admission, q.cfg.Lanes)
	granted := 0
	for lane, req := range in.Requests {
		if !q.admissible(req, in) || !q.free.CanAccept(granted) {
			continue
		}
		slot, ok := q.free.Alloc()
		if !ok {
			continue
		}
		granted++
		q.entries[slot] = entry{
			allocated: true,
			tag:       req.Tag,
			released:  req.Exempt || q.releasedInWindow(req.Addr, in.Release),
			exempt:    req.Exempt,
		}
		q.table.Write(slot, req.Addr)
		grants[lane] = admission{ok: true, slot: slot}
		out.Lanes[lane].Ready = true
	}

	// 6. Drain the staging pipelines.
	q.free.Free(freed)
	q.free.Step()
	q.table.Step()
	for i := QueryLatency - 1; i > 0; i-- {
		q.violationPipe[i] = q.violationPipe[i-1]
	}
	q.violationPipe[0] = probes
	for i := ReleaseBufferDepth - 1; i > 0; i-- {
		q.releasePipe[i] = q.releasePipe[i-1]
	}
	q.releasePipe[0] = in.Release
	for i := RevokeWindow - 1; i > 0; i-- {
		q.admitPipe[i] = q.admitPipe[i-1]
	}
	q.admitPipe[0] = grants
	q.step++

	q.checkPartition()

	out.Count = q.Count()
	out.Full = q.Full()
	return out
}

// probe performs one lane's associative violation check: is there a live
// entry to the same line, owned by a strictly younger tag, whose line has
// been released? Exempt entries never trigger; they cannot participate in
// the hazard.
func (q *Queue) probe(req Request) bool {
	match := q.table.Match(req.Addr)
	if !match.Any() {
		return false
	}
	for slot := range q.entries {
		e := &q.entries[slot]
		if e.allocated && !e.exempt && e.released &&
			match.Has(slot) && ordertag.IsNewer(e.tag, req.Tag) {
			return true
		}
	}
	return false
}

// admissible applies the per-lane admission test: valid, not yet retired,
// and not being discarded by this step's flush.
func (q *Queue) admissible(req Request, in Input) bool {
	return req.Valid &&
		ordertag.IsNewer(req.Tag, in.Frontier) &&
		!in.Flush.Covers(req.Tag)
}

// applyRelease marks every live entry whose landed code matches the
// released line. The released flag is monotonic for an entry's lifetime.
func (q *Queue) applyRelease(rel Release) {
	if !rel.Valid {
		return
	}
	match := q.table.Match(rel.Addr)
	if !match.Any() {
		return
	}
	for slot := range q.entries {
		if q.entries[slot].allocated && match.Has(slot) {
			q.entries[slot].released = true
		}
	}
}

// releasedInWindow is the raw-address release check used at admission: the
// entry's code will not land in the table for addrhash.WriteLatency steps,
// so releases from the current and immediately preceding step must be
// compared against the raw input address instead.
func (q *Queue) releasedInWindow(addr uint64, cur Release) bool {
	if cur.Valid && addrhash.SameLine(cur.Addr, addr) {
		return true
	}
	for _, rel := range q.releasePipe {
		if rel.Valid && addrhash.SameLine(rel.Addr, addr) {
			return true
		}
	}
	return false
}

// clearSlot tears down one entry: the slot's code is dropped (scrubbing
// any write still in flight) and the entry zeroed. The free list learns
// about the slot separately, staged to the next step.
func (q *Queue) clearSlot(slot int) {
	q.entries[slot] = entry{}
	q.table.Clear(slot)
}

// checkPartition asserts the allocator invariant at the step boundary:
// the allocated set and the free set partition the slot space exactly.
// A violation is a defect in the queue itself and fails loudly.
func (q *Queue) checkPartition() {
	var allocated uint64
	for slot := range q.entries {
		if q.entries[slot].allocated {
			allocated |= 1 << uint(slot)
		}
	}
	free := q.free.FreeMask()
	var all uint64
	if q.cfg.Entries == 64 {
		all = ^uint64(0)
	} else {
		all = 1<<uint(q.cfg.Entries) - 1
	}
	if allocated&free != 0 || allocated|free != all {
		panic(fmt.Sprintf("rar: step %d: allocated %#x and free %#x do not partition %#x",
			q.step, allocated, free, all))
	}
}

// Dump returns a human-readable snapshot of the live entries. Debug only.
func (q *Queue) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rar queue: %d/%d entries, full=%v\n", q.Count(), q.cfg.Entries, q.Full())
	for slot := range q.entries {
		e := &q.entries[slot]
		if !e.allocated {
			continue
		}
		fmt.Fprintf(&b, "  [%2d] tag=%s released=%v exempt=%v\n", slot, e.tag, e.released, e.exempt)
	}
	return b.String()
}

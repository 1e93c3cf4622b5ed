// Package ordertag implements circular program-order tags for in-flight loads.
//
// A Tag identifies an instruction's position in program order inside a
// bounded reorder window. Because the window index wraps around, plain
// integer comparison of two tags is wrong: after a wrap, a numerically
// smaller index can be younger than a larger one. Tags therefore carry a
// wrap flag alongside the index, and all ordering decisions go through
// IsOlder/IsNewer, which account for the wraparound.
//
// The encoding is a compact 16-bit value:
//   - Bit 8: wrap flag (toggles every time the window index wraps)
//   - Bits 0-7: window index (0-255)
//
// Two live tags never collide as long as no more than WindowSize
// instructions are in flight at once, which the reorder window guarantees
// by construction.
package ordertag

// Tag is a compact program-order identifier.
// Layout: [flag:1][index:8].
type Tag uint16

const (
	// IndexBits is the number of bits allocated for the window index.
	IndexBits = 8

	// WindowSize is the number of distinct window positions (256).
	WindowSize = 1 << IndexBits

	// IndexMask extracts the window index from a Tag.
	IndexMask = WindowSize - 1

	// flagBit is the position of the wrap flag inside a Tag.
	flagBit = Tag(1) << IndexBits
)

// New creates a tag from a wrap flag and a window index.
// Index values beyond IndexBits are truncated.
func New(flag bool, index uint16) Tag {
	t := Tag(index & IndexMask)
	if flag {
		t |= flagBit
	}
	return t
}

// FromSequence converts a monotonically increasing instruction sequence
// number into a tag. The wrap flag toggles every WindowSize instructions,
// mirroring what a reorder buffer's head/tail pointers do in hardware.
//
// This is the conversion used by trace files and tests, which speak in
// plain sequence numbers.
func FromSequence(seq uint64) Tag {
	return New(seq/WindowSize%2 == 1, uint16(seq&IndexMask))
}

// Decode extracts the wrap flag and window index from a tag.
func (t Tag) Decode() (flag bool, index uint16) {
	return t&flagBit != 0, uint16(t & IndexMask)
}

// IsOlder reports whether a comes strictly before b in program order.
//
// With equal wrap flags the two tags are in the same lap of the window and
// the smaller index is older. With different flags, b has wrapped past a's
// lap, so the comparison inverts: the *larger* index is the older one.
func IsOlder(a, b Tag) bool {
	aFlag, aIdx := a.Decode()
	bFlag, bIdx := b.Decode()
	if aFlag == bFlag {
		return aIdx < bIdx
	}
	return aIdx > bIdx
}

// IsNewer reports whether a comes strictly after b in program order.
func IsNewer(a, b Tag) bool {
	return IsOlder(b, a)
}

// Retired reports whether a tag is at or before the retirement frontier,
// meaning the instruction has completed and needs no further tracking.
func Retired(t, frontier Tag) bool {
	return !IsNewer(t, frontier)
}

// Next returns the tag immediately following t in program order,
// toggling the wrap flag when the index wraps around.
func (t Tag) Next() Tag {
	flag, idx := t.Decode()
	if idx == IndexMask {
		return New(!flag, 0)
	}
	return New(flag, idx+1)
}

// String returns a human-readable representation of the tag.
//
// Format: "<index>" for flag 0 and "<index>'" for flag 1 (the prime marks
// the odd lap). Debug only, not on any per-step path.
func (t Tag) String() string {
	flag, idx := t.Decode()
	s := itoa(uint32(idx))
	if flag {
		return s + "'"
	}
	return s
}

// FlushScope describes which in-flight instructions a pipeline flush
// discards: everything at or after Head in program order. The zero value
// (Valid false) covers nothing.
type FlushScope struct {
	Valid bool
	Head  Tag
}

// Covers reports whether the flush discards the instruction tagged t.
func (s FlushScope) Covers(t Tag) bool {
	return s.Valid && !IsOlder(t, s.Head)
}

// itoa converts an integer to string without an fmt import.
// Simple implementation for debugging output only.
func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	tmp := n
	digits := 0
	for tmp > 0 {
		digits++
		tmp /= 10
	}
	buf := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf)
}

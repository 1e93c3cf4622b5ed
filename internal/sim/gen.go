package sim

import (
	"math/rand"
)

// GenConfig controls the synthetic traffic generator. All rates are
// percentages (0-100) evaluated independently per step or per lane.
type GenConfig struct {
	Entries int
	Lanes   int
	Steps   int

	// Lines is the number of distinct cache lines the generator draws
	// addresses from. A small pool makes same-line collisions, and
	// therefore violations, common.
	Lines int

	// LoadRate is the chance a lane issues a load in a step.
	LoadRate int

	// ExemptRate is the chance an issued load is an uncached kind.
	ExemptRate int

	// ReleaseRate is the chance a step carries a release event.
	ReleaseRate int

	// FlushRate is the chance a step flushes the in-flight window.
	FlushRate int

	// RevokeRate is the chance a lane revokes last step's admission.
	RevokeRate int

	// Window is how far the retirement frontier trails the youngest
	// issued sequence number.
	Window int

	Seed int64
}

// DefaultGenConfig returns traffic that keeps a 32-entry, 2-lane queue
// busy with regular same-line races.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Entries:     32,
		Lanes:       2,
		Steps:       1000,
		Lines:       24,
		LoadRate:    70,
		ExemptRate:  5,
		ReleaseRate: 15,
		FlushRate:   2,
		RevokeRate:  3,
		Window:      48,
		Seed:        1,
	}
}

// Generate produces a synthetic trace. The same configuration always
// yields the same trace.
func Generate(cfg GenConfig) *Trace {
	r := rand.New(rand.NewSource(cfg.Seed))
	tr := &Trace{
		Entries: cfg.Entries,
		Lanes:   cfg.Lanes,
		Steps:   make([]TraceStep, 0, cfg.Steps),
	}

	const lineBase = uint64(0x8000_0000)
	line := func() uint64 {
		return lineBase + uint64(r.Intn(cfg.Lines))<<6
	}
	chance := func(pct int) bool {
		return r.Intn(100) < pct
	}

	seq := uint64(1)
	frontier := uint64(0)
	issuedLast := make([]bool, cfg.Lanes)
	for s := 0; s < cfg.Steps; s++ {
		var step TraceStep

		// Revokes refer to the previous step's admissions.
		for lane := 0; lane < cfg.Lanes; lane++ {
			if issuedLast[lane] && chance(cfg.RevokeRate) {
				step.Revokes = append(step.Revokes, lane)
			}
		}

		issued := make([]bool, cfg.Lanes)
		step.Loads = make([]*TraceRequest, cfg.Lanes)
		for lane := 0; lane < cfg.Lanes; lane++ {
			if !chance(cfg.LoadRate) {
				continue
			}
			step.Loads[lane] = &TraceRequest{
				Addr:   line() + uint64(r.Intn(8))*8,
				Seq:    seq,
				Exempt: chance(cfg.ExemptRate),
			}
			seq++
			issued[lane] = true
		}
		issuedLast = issued

		if chance(cfg.ReleaseRate) {
			step.Release = &TraceRelease{Addr: line()}
		}

		// The frontier trails the youngest issue by the window depth and
		// never moves backwards, even across flushes.
		if seq > uint64(cfg.Window) && seq-uint64(cfg.Window) > frontier {
			frontier = seq - uint64(cfg.Window)
		}
		step.Frontier = frontier

		// A flush discards the younger half of the in-flight window and
		// re-fetches from the flush head, so sequence numbering resumes
		// there.
		if chance(cfg.FlushRate) && seq > frontier+2 {
			head := frontier + (seq-frontier)/2
			step.Flush = &head
			seq = head
			issuedLast = make([]bool, cfg.Lanes)
		}

		tr.Steps = append(tr.Steps, step)
	}
	return tr
}

package sim

import (
	"fmt"

	"github.com/isaac2077/XiangShan/internal/lsq/ordertag"
	"github.com/isaac2077/XiangShan/internal/lsq/rar"
)

// StepStats is what one queue step produced.
type StepStats struct {
	Step       int
	Admits     int
	Refusals   int
	Violations int
	Count      int
	Full       bool
}

// Stats summarizes a whole run.
type Stats struct {
	Steps        int
	Admits       int
	Refusals     int
	Violations   int
	Releases     int
	Flushes      int
	MaxOccupancy int
	FullSteps    int
}

// Recorder receives per-step statistics during a run. Implementations may
// persist them; the runner only requires that RecordStep tolerate being
// called once per step in order.
type Recorder interface {
	RecordStep(StepStats) error
	Close() error
}

// Run feeds the trace through the queue step by step and returns the
// aggregate statistics. rec may be nil. After the last trace step the
// runner issues enough idle steps to drain the probe-response pipeline, so
// a violation launched by the final step is still counted.
func Run(q *rar.Queue, tr *Trace, rec Recorder) (Stats, error) {
	var stats Stats

	record := func(s StepStats) error {
		stats.Steps++
		stats.Admits += s.Admits
		stats.Refusals += s.Refusals
		stats.Violations += s.Violations
		if s.Count > stats.MaxOccupancy {
			stats.MaxOccupancy = s.Count
		}
		if s.Full {
			stats.FullSteps++
		}
		if rec != nil {
			if err := rec.RecordStep(s); err != nil {
				return fmt.Errorf("sim: recording step %d: %w", s.Step, err)
			}
		}
		return nil
	}

	for i, step := range tr.Steps {
		in := stepInput(tr.Lanes, step)
		if step.Release != nil {
			stats.Releases++
		}
		if step.Flush != nil {
			stats.Flushes++
		}

		out := q.Step(in)
		if err := record(tally(i, in, out)); err != nil {
			return stats, err
		}
	}

	// Drain pending probe responses.
	for i := 0; i < rar.QueryLatency; i++ {
		in := rar.Input{Requests: make([]rar.Request, tr.Lanes)}
		if len(tr.Steps) > 0 {
			in.Frontier = ordertag.FromSequence(tr.Steps[len(tr.Steps)-1].Frontier)
		}
		out := q.Step(in)
		if err := record(tally(len(tr.Steps)+i, in, out)); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// stepInput translates one trace step into queue inputs.
func stepInput(lanes int, step TraceStep) rar.Input {
	in := rar.Input{
		Requests: make([]rar.Request, lanes),
		Frontier: ordertag.FromSequence(step.Frontier),
	}
	for lane, ld := range step.Loads {
		if ld == nil {
			continue
		}
		in.Requests[lane] = rar.Request{
			Valid:  true,
			Addr:   ld.Addr,
			Tag:    ordertag.FromSequence(ld.Seq),
			Exempt: ld.Exempt,
		}
	}
	if len(step.Revokes) > 0 {
		in.Revokes = make([]bool, lanes)
		for _, lane := range step.Revokes {
			in.Revokes[lane] = true
		}
	}
	if step.Release != nil {
		in.Release = rar.Release{Valid: true, Addr: step.Release.Addr}
	}
	if step.Flush != nil {
		in.Flush = ordertag.FlushScope{Valid: true, Head: ordertag.FromSequence(*step.Flush)}
	}
	return in
}

// tally folds one step's input and output into per-step statistics.
func tally(step int, in rar.Input, out rar.Output) StepStats {
	s := StepStats{Step: step, Count: out.Count, Full: out.Full}
	for lane, req := range in.Requests {
		if !req.Valid {
			continue
		}
		if out.Lanes[lane].Ready {
			s.Admits++
		} else {
			s.Refusals++
		}
	}
	for _, lr := range out.Lanes {
		if lr.Violation {
			s.Violations++
		}
	}
	return s
}

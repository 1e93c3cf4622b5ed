// Package sim runs recorded load traffic through the ordering-violation
// queue, one trace step per queue step.
//
// A trace is a JSON document describing per-step lane requests, cache-line
// release events, the advancing retirement frontier, pipeline flushes and
// revokes. Instruction order is given as plain sequence numbers; the
// runner converts them to circular tags. Traces come from files (Load) or
// from the built-in synthetic generator (Generate).
package sim

import (
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"github.com/isaac2077/XiangShan/internal/lsq/rar"
)

// TraceRequest is one lane's load in one trace step.
type TraceRequest struct {
	// Addr is the load's physical address.
	Addr uint64 `json:"addr"`

	// Seq is the load's program-order sequence number.
	Seq uint64 `json:"seq"`

	// Exempt marks an uncached load kind.
	Exempt bool `json:"exempt,omitempty"`
}

// TraceRelease is a cache-line release event in one trace step.
type TraceRelease struct {
	Addr uint64 `json:"addr"`
}

// TraceStep is one step of recorded traffic.
type TraceStep struct {
	// Loads holds at most one request per lane; a nil slot is an idle
	// lane. Shorter slices leave the remaining lanes idle.
	Loads []*TraceRequest `json:"loads,omitempty"`

	// Revokes lists lanes revoking their previous-step admission.
	Revokes []int `json:"revokes,omitempty"`

	// Release is this step's cache-line release event, if any.
	Release *TraceRelease `json:"release,omitempty"`

	// Frontier is the retirement frontier as a sequence number.
	Frontier uint64 `json:"frontier"`

	// Flush, when present, discards every load at or after this
	// sequence number.
	Flush *uint64 `json:"flush,omitempty"`
}

// Trace is a complete recorded run.
type Trace struct {
	// Entries and Lanes size the queue the trace was recorded against.
	Entries int `json:"entries"`
	Lanes   int `json:"lanes"`

	Steps []TraceStep `json:"steps"`
}

// Config returns the queue configuration the trace expects.
func (t *Trace) Config() rar.Config {
	return rar.Config{Entries: t.Entries, Lanes: t.Lanes}
}

// Validate checks the trace against its own sizing.
func (t *Trace) Validate() error {
	if err := t.Config().Validate(); err != nil {
		return err
	}
	for i, step := range t.Steps {
		if len(step.Loads) > t.Lanes {
			return fmt.Errorf("sim: step %d has %d loads for %d lanes", i, len(step.Loads), t.Lanes)
		}
		for _, lane := range step.Revokes {
			if lane < 0 || lane >= t.Lanes {
				return fmt.Errorf("sim: step %d revokes lane %d of %d", i, lane, t.Lanes)
			}
		}
	}
	return nil
}

// Load reads and validates a JSON trace file.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: reading trace: %w", err)
	}
	var tr Trace
	if err := sonnet.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("sim: decoding trace %s: %w", path, err)
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Save writes a trace as indented JSON.
func Save(path string, tr *Trace) error {
	data, err := sonnet.MarshalIndent(tr, "", "  ")
	if err != nil {
		return fmt.Errorf("sim: encoding trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sim: writing trace: %w", err)
	}
	return nil
}

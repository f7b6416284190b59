// Package tseries provides an ordered time series of unit-tagged values.
//
// Components use series for two things: externally supplied inputs
// (emissions set through the message protocol) and state checkpoints
// (one entry per completed step, consumed by reset). Both uses require
// deterministic iteration order, so entries are kept sorted by date.
package tseries

import (
	"fmt"
	"sort"

	"github.com/roach88/tellus/internal/unit"
)

// Series is a sorted date -> unit.Value mapping.
//
// Series is not safe for concurrent use; a series is owned by exactly
// one component, which is owned by exactly one engine.
type Series struct {
	dates  []float64
	values []unit.Value
	u      unit.Unit
}

// New creates an empty series whose entries must carry the given unit.
func New(u unit.Unit) *Series {
	return &Series{u: u}
}

// Unit returns the unit every entry is stored in.
func (s *Series) Unit() unit.Unit {
	return s.u
}

// Len returns the number of entries.
func (s *Series) Len() int {
	return len(s.dates)
}

// Set inserts or replaces the entry at date. The value is converted
// into the series unit; incompatible units fail with UNIT_MISMATCH.
func (s *Series) Set(date float64, v unit.Value) error {
	cv, err := v.ConvertTo(s.u)
	if err != nil {
		return fmt.Errorf("series set at %g: %w", date, err)
	}

	i := sort.SearchFloat64s(s.dates, date)
	if i < len(s.dates) && s.dates[i] == date {
		s.values[i] = cv
		return nil
	}

	s.dates = append(s.dates, 0)
	s.values = append(s.values, unit.Value{})
	copy(s.dates[i+1:], s.dates[i:])
	copy(s.values[i+1:], s.values[i:])
	s.dates[i] = date
	s.values[i] = cv
	return nil
}

// Get returns the exact entry at date.
func (s *Series) Get(date float64) (unit.Value, bool) {
	i := sort.SearchFloat64s(s.dates, date)
	if i < len(s.dates) && s.dates[i] == date {
		return s.values[i], true
	}
	return unit.Value{}, false
}

// Interp returns the value at date, linearly interpolating between the
// two nearest entries. Dates outside the covered range clamp to the
// first or last entry. An empty series returns false.
func (s *Series) Interp(date float64) (unit.Value, bool) {
	n := len(s.dates)
	if n == 0 {
		return unit.Value{}, false
	}

	i := sort.SearchFloat64s(s.dates, date)
	switch {
	case i < n && s.dates[i] == date:
		return s.values[i], true
	case i == 0:
		return s.values[0], true
	case i == n:
		return s.values[n-1], true
	}

	lo, hi := i-1, i
	span := s.dates[hi] - s.dates[lo]
	frac := (date - s.dates[lo]) / span
	m := s.values[lo].Magnitude() + frac*(s.values[hi].Magnitude()-s.values[lo].Magnitude())
	return unit.New(m, s.u), true
}

// LastAtOrBefore returns the latest entry whose date is <= date.
func (s *Series) LastAtOrBefore(date float64) (float64, unit.Value, bool) {
	i := sort.SearchFloat64s(s.dates, date)
	if i < len(s.dates) && s.dates[i] == date {
		return s.dates[i], s.values[i], true
	}
	if i == 0 {
		return 0, unit.Value{}, false
	}
	return s.dates[i-1], s.values[i-1], true
}

// TruncateAfter removes every entry with a date strictly greater than
// date. Reset uses this to discard state recorded past the checkpoint.
func (s *Series) TruncateAfter(date float64) {
	i := sort.SearchFloat64s(s.dates, date)
	if i < len(s.dates) && s.dates[i] == date {
		i++
	}
	s.dates = s.dates[:i]
	s.values = s.values[:i]
}

// FirstDate returns the earliest entry date, or ok=false when empty.
func (s *Series) FirstDate() (float64, bool) {
	if len(s.dates) == 0 {
		return 0, false
	}
	return s.dates[0], true
}

// LastDate returns the latest entry date, or ok=false when empty.
func (s *Series) LastDate() (float64, bool) {
	if len(s.dates) == 0 {
		return 0, false
	}
	return s.dates[len(s.dates)-1], true
}

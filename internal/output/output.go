// Package output provides run observers: CSV streams for sampled
// capability values and pool provenance, and a SQLite-backed recorder.
// Observers never mutate the core; they read through the same dispatch
// surface as any component.
package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/unit"
)

// StreamVisitor writes one CSV row per observed step per configured
// capability: year, run name, variable, value, units. Spin-up steps
// are not observed.
type StreamVisitor struct {
	w            *csv.Writer
	runName      string
	capabilities []string
	wroteHeader  bool
}

// NewStreamVisitor creates a stream observer sampling the given
// capabilities after each step.
func NewStreamVisitor(w io.Writer, runName string, capabilities []string) *StreamVisitor {
	return &StreamVisitor{
		w:            csv.NewWriter(w),
		runName:      runName,
		capabilities: capabilities,
	}
}

// ShouldVisit implements engine.Visitor.
func (s *StreamVisitor) ShouldVisit(inSpinup bool, date float64) bool {
	return !inSpinup
}

// VisitCore implements engine.Visitor: sample every configured
// capability through dispatch and append the rows.
func (s *StreamVisitor) VisitCore(c *engine.Core) error {
	if !s.wroteHeader {
		if err := s.w.Write([]string{"year", "run_name", "variable", "value", "units"}); err != nil {
			return fmt.Errorf("write stream header: %w", err)
		}
		s.wroteHeader = true
	}

	year := unit.FormatMagnitude(c.CurrentDate())
	for _, capability := range s.capabilities {
		v, err := c.SendMessage(engine.GetData, capability, engine.CurrentValue())
		if err != nil {
			return fmt.Errorf("sample %s: %w", capability, err)
		}
		row := []string{
			year,
			s.runName,
			capability,
			unit.FormatMagnitude(v.Magnitude()),
			v.Unit().String(),
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("write stream row: %w", err)
		}
	}
	s.w.Flush()
	return s.w.Error()
}

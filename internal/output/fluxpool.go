package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/pool"
	"github.com/roach88/tellus/internal/unit"
)

// FluxPoolVisitor writes pool provenance as CSV: one row per tracked
// pool per source, with the source's fraction of the pool's contents.
// Untracked pools and spin-up steps produce no rows.
type FluxPoolVisitor struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewFluxPoolVisitor creates a provenance observer writing to w.
func NewFluxPoolVisitor(w io.Writer) *FluxPoolVisitor {
	return &FluxPoolVisitor{w: csv.NewWriter(w)}
}

// ShouldVisit implements engine.Visitor.
func (f *FluxPoolVisitor) ShouldVisit(inSpinup bool, date float64) bool {
	return !inSpinup
}

// VisitCore implements engine.Visitor. Provenance comes from the
// components themselves via VisitPools, not from the core.
func (f *FluxPoolVisitor) VisitCore(c *engine.Core) error { return nil }

// VisitPools implements component.PoolVisitor.
func (f *FluxPoolVisitor) VisitPools(date float64, pools []pool.Pool) error {
	if !f.wroteHeader {
		header := []string{"year", "pool_name", "pool_value", "pool_units", "source_name", "source_fraction"}
		if err := f.w.Write(header); err != nil {
			return fmt.Errorf("write provenance header: %w", err)
		}
		f.wroteHeader = true
	}

	year := unit.FormatMagnitude(date)
	for _, p := range pools {
		if !p.Tracking() {
			continue
		}
		value := unit.FormatMagnitude(p.Value().Magnitude())
		units := p.Value().Unit().String()

		sources := p.Sources()
		if len(sources) == 0 {
			// A pool whose tracking just began has no recorded
			// sources yet; it is still visible in the output.
			if err := f.w.Write([]string{year, p.Name(), value, units, "", ""}); err != nil {
				return fmt.Errorf("write provenance row: %w", err)
			}
			continue
		}
		for _, source := range sources {
			row := []string{year, p.Name(), value, units, source, unit.FormatMagnitude(p.Fraction(source))}
			if err := f.w.Write(row); err != nil {
				return fmt.Errorf("write provenance row: %w", err)
			}
		}
	}
	f.w.Flush()
	return f.w.Error()
}

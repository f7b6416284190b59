package output

import (
	"context"
	"fmt"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/pool"
	"github.com/roach88/tellus/internal/store"
)

// StoreVisitor records sampled capability values and pool provenance
// into a run store after each observed step.
type StoreVisitor struct {
	// ctx bounds the database writes for the whole run; the visit
	// interface carries no context of its own.
	ctx context.Context

	st           *store.Store
	runID        int64
	capabilities []string
}

// NewStoreVisitor creates a store-backed observer for an open run.
func NewStoreVisitor(ctx context.Context, st *store.Store, runID int64, capabilities []string) *StoreVisitor {
	return &StoreVisitor{
		ctx:          ctx,
		st:           st,
		runID:        runID,
		capabilities: capabilities,
	}
}

// ShouldVisit implements engine.Visitor.
func (s *StoreVisitor) ShouldVisit(inSpinup bool, date float64) bool {
	return !inSpinup
}

// VisitCore implements engine.Visitor.
func (s *StoreVisitor) VisitCore(c *engine.Core) error {
	date := c.CurrentDate()
	for _, capability := range s.capabilities {
		v, err := c.SendMessage(engine.GetData, capability, engine.CurrentValue())
		if err != nil {
			return fmt.Errorf("sample %s: %w", capability, err)
		}
		if err := s.st.WriteSample(s.ctx, s.runID, date, capability, v); err != nil {
			return err
		}
	}
	return nil
}

// VisitPools implements component.PoolVisitor.
func (s *StoreVisitor) VisitPools(date float64, pools []pool.Pool) error {
	for _, p := range pools {
		if err := s.st.WriteProvenance(s.ctx, s.runID, date, p); err != nil {
			return err
		}
	}
	return nil
}

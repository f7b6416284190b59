package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tellus/internal/unit"
)

// recordRun drives the core through the given run targets and records
// the stock after every completed Run via dispatch, the only way any
// caller reads state.
func recordRun(t *testing.T, c *Core, targets []float64) []float64 {
	t.Helper()
	var out []float64
	for _, target := range targets {
		require.NoError(t, c.Run(target))
		v, err := c.SendMessage(GetData, "box_stock", CurrentValue())
		require.NoError(t, err)
		out = append(out, v.Magnitude())
	}
	return out
}

func feedInflows(t *testing.T, c *Core) {
	t.Helper()
	for date, rate := range map[float64]float64{
		2001: 1.25, 2003: 2.5, 2005: 0.75, 2008: 3.125,
	} {
		_, err := c.SendMessage(SetData, "box_inflow", DatedValue(date, unit.New(rate, unit.PgCYr)))
		require.NoError(t, err)
	}
}

func TestReset_DeterminismFromStart(t *testing.T) {
	// reset(0) reruns spinup and replaying the same run sequence must
	// reproduce bit-identical dispatch results at every step.
	c := newPreparedCore(t)
	feedInflows(t, c)

	targets := []float64{2002, 2005, 2009}
	first := recordRun(t, c, targets)

	require.NoError(t, c.Reset(0))
	assert.Equal(t, 2000.0, c.CurrentDate())

	second := recordRun(t, c, targets)
	require.Len(t, second, len(first))
	for i := range first {
		bitsA := math.Float64bits(first[i])
		bitsB := math.Float64bits(second[i])
		assert.Equal(t, bitsA, bitsB, "replay diverged at target %g", targets[i])
	}
}

func TestReset_DeterminismFromMidCheckpoint(t *testing.T) {
	c := newPreparedCore(t)
	feedInflows(t, c)

	require.NoError(t, c.Run(2004))
	first := recordRun(t, c, []float64{2006, 2009})

	require.NoError(t, c.Reset(2004))
	assert.Equal(t, 2004.0, c.CurrentDate())

	second := recordRun(t, c, []float64{2006, 2009})
	assert.Equal(t, first, second)
}

func TestReset_RestoresCheckpointState(t *testing.T) {
	c := newPreparedCore(t)
	feedInflows(t, c)

	require.NoError(t, c.Run(2003))
	at2003, err := c.SendMessage(GetData, "box_stock", CurrentValue())
	require.NoError(t, err)

	require.NoError(t, c.Run(2009))
	require.NoError(t, c.Reset(2003))

	restored, err := c.SendMessage(GetData, "box_stock", CurrentValue())
	require.NoError(t, err)
	assert.Equal(t, at2003.Magnitude(), restored.Magnitude())
}

func TestReset_BeforeStartRerunsSpinup(t *testing.T) {
	box := newBoxComponent("box", 100, 3)
	c := newPreparedCore(t, box)
	spy := &visitSpy{}
	c.AddVisitor(spy)

	require.NoError(t, c.Run(2002))
	firstSpinup := spy.spinupSteps
	require.Equal(t, 3, firstSpinup)

	// Reset to a date before the start date: spinup runs again.
	require.NoError(t, c.Reset(1850))
	require.NoError(t, c.Run(2002))
	assert.Equal(t, 6, spy.spinupSteps)

	// Reset to a mid-run date: no respin.
	require.NoError(t, c.Reset(2001))
	require.NoError(t, c.Run(2002))
	assert.Equal(t, 6, spy.spinupSteps)
}

func TestReset_ToExactStartDateKeepsSpinup(t *testing.T) {
	box := newBoxComponent("box", 100, 3)
	c := newPreparedCore(t, box)
	spy := &visitSpy{}
	c.AddVisitor(spy)

	require.NoError(t, c.Run(2002))
	require.Equal(t, 3, spy.spinupSteps)

	// Resetting to the exact start date restores the start
	// checkpoint but leaves the model spun up.
	require.NoError(t, c.Reset(2000))
	assert.Equal(t, 2000.0, c.CurrentDate())
	require.NoError(t, c.Run(2002))
	assert.Equal(t, 3, spy.spinupSteps, "reset to the start date must not rerun spinup")

	// The 0 sentinel still forces a respin.
	require.NoError(t, c.Reset(0))
	require.NoError(t, c.Run(2002))
	assert.Equal(t, 6, spy.spinupSteps)
}

func TestReset_CleanDirtyFlag(t *testing.T) {
	c := newPreparedCore(t)
	assert.False(t, c.Dirty())

	require.NoError(t, c.Run(2004))
	assert.True(t, c.Dirty())

	// Resetting to a later date than the last reset leaves the core
	// dirty relative to that earlier checkpoint.
	require.NoError(t, c.Reset(2002))
	assert.True(t, c.Dirty())

	// Resetting to (or before) the last reset date clears the flag.
	require.NoError(t, c.Reset(0))
	assert.False(t, c.Dirty())

	require.NoError(t, c.Run(2003))
	assert.True(t, c.Dirty())
	require.NoError(t, c.Reset(2000))
	assert.False(t, c.Dirty())
}

func TestReset_TargetClampedToCurrentDate(t *testing.T) {
	c := newPreparedCore(t)
	require.NoError(t, c.Run(2003))

	// Resetting to a future date restores the newest checkpoint
	// instead of inventing state past the clock.
	require.NoError(t, c.Reset(2050))
	assert.Equal(t, 2003.0, c.CurrentDate())
}

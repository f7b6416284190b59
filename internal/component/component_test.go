package component

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/pool"
	"github.com/roach88/tellus/internal/unit"
)

// newStandardCore wires the three standard components into a prepared
// core, the same assembly the CLI driver performs.
func newStandardCore(t *testing.T, opts ...engine.CoreOption) *engine.Core {
	t.Helper()
	opts = append([]engine.CoreOption{engine.WithDates(2000, 2100)}, opts...)
	c := engine.New("component-test", opts...)
	require.NoError(t, c.AddComponent(NewCarbonCycle()))
	require.NoError(t, c.AddComponent(NewCO2Forcing()))
	require.NoError(t, c.AddComponent(NewTemperature()))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())
	return c
}

func getMag(t *testing.T, c *engine.Core, capability string) float64 {
	t.Helper()
	v, err := c.SendMessage(engine.GetData, capability, engine.CurrentValue())
	require.NoError(t, err)
	return v.Magnitude()
}

func TestCarbonCycle_EmissionsMoveMassBetweenPools(t *testing.T) {
	c := newStandardCore(t)

	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.DatedValue(2001, unit.New(10, unit.PgCYr)))
	require.NoError(t, err)

	atmosBefore := getMag(t, c, CapAtmosCarbon)
	earthBefore := getMag(t, c, CapEarthCarbon)

	require.NoError(t, c.Run(2001))

	assert.InDelta(t, atmosBefore+10, getMag(t, c, CapAtmosCarbon), 1e-9)
	assert.InDelta(t, earthBefore-10, getMag(t, c, CapEarthCarbon), 1e-9)

	// Mass is conserved across the transfer.
	total := getMag(t, c, CapAtmosCarbon) + getMag(t, c, CapEarthCarbon)
	assert.InDelta(t, atmosBefore+earthBefore, total, 1e-9)
}

func TestCarbonCycle_NegativeEmissionsAreUptake(t *testing.T) {
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.DatedValue(2001, unit.New(-5, unit.PgCYr)))
	require.NoError(t, err)

	atmosBefore := getMag(t, c, CapAtmosCarbon)
	require.NoError(t, c.Run(2001))
	assert.InDelta(t, atmosBefore-5, getMag(t, c, CapAtmosCarbon), 1e-9)
}

func TestCarbonCycle_ConcentrationTracksAtmosphere(t *testing.T) {
	c := newStandardCore(t)
	atmos := getMag(t, c, CapAtmosCarbon)
	conc := getMag(t, c, CapCO2Conc)
	assert.InDelta(t, atmos/2.13, conc, 1e-9)
}

func TestCarbonCycle_ConstantEmissionsParameter(t *testing.T) {
	// A SET with an undefined date configures a time-invariant
	// emissions rate rather than failing.
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(2, unit.PgCYr)))
	require.NoError(t, err)

	atmosBefore := getMag(t, c, CapAtmosCarbon)
	require.NoError(t, c.Run(2003))
	assert.InDelta(t, atmosBefore+3*2, getMag(t, c, CapAtmosCarbon), 1e-9)
}

func TestCarbonCycle_SetWithWrongUnitFails(t *testing.T) {
	c := newStandardCore(t)
	before := getMag(t, c, CapAtmosCarbon)

	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.DatedValue(2001, unit.New(10, unit.DegC)))
	require.Error(t, err)
	assert.True(t, unit.IsMismatch(err))
	assert.Equal(t, before, getMag(t, c, CapAtmosCarbon))
}

func TestCarbonCycle_TrackingBeginsAtTrackingDate(t *testing.T) {
	cc := NewCarbonCycle()
	c := engine.New("tracking-test",
		engine.WithDates(2000, 2100),
		engine.WithTrackingDate(2003),
	)
	require.NoError(t, c.AddComponent(cc))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())

	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(1, unit.PgCYr)))
	require.NoError(t, err)

	require.NoError(t, c.Run(2002))
	for _, p := range cc.TrackedPools() {
		assert.False(t, p.Tracking(), "no provenance before the tracking date")
	}

	require.NoError(t, c.Run(2005))
	atmos := cc.TrackedPools()[0]
	require.True(t, atmos.Tracking())
	assert.Contains(t, atmos.Sources(), "ffi")
	assert.Contains(t, atmos.Sources(), CapAtmosCarbon)

	// Fractions form a distribution and the ffi share matches the
	// mass emitted since tracking began (3 years of 1 PgC/yr).
	total := 0.0
	for _, s := range atmos.Sources() {
		total += atmos.Fraction(s)
	}
	assert.InDelta(t, 1.0, total, 1e-12)
	assert.InDelta(t, 3/atmos.Value().Magnitude(), atmos.Fraction("ffi"), 1e-12)
}

func TestCarbonCycle_DefaultBiome(t *testing.T) {
	cc := NewCarbonCycle()
	assert.Equal(t, []string{DefaultBiome}, cc.Biomes())

	pools := cc.TrackedPools()
	require.Len(t, pools, 2)
	assert.Equal(t, CapEarthCarbon, pools[1].Name(), "the default biome keeps the bare pool name")
}

func TestCarbonCycle_CreateBiomeSplitsStock(t *testing.T) {
	cc := NewCarbonCycle()
	require.NoError(t, cc.CreateBiome("permafrost", 0.25))

	assert.Equal(t, []string{DefaultBiome, "permafrost"}, cc.Biomes())

	pools := cc.TrackedPools()
	require.Len(t, pools, 3)
	assert.Equal(t, CapEarthCarbon, pools[1].Name())
	assert.Equal(t, "permafrost.earth_c", pools[2].Name())
	assert.InDelta(t, 0.75*defaultEarthCarbon, pools[1].Value().Magnitude(), 1e-9)
	assert.InDelta(t, 0.25*defaultEarthCarbon, pools[2].Value().Magnitude(), 1e-9)

	// The split reapportions; the reservoir total is unchanged.
	v, err := cc.GetData(CapEarthCarbon, engine.UndefinedDate)
	require.NoError(t, err)
	assert.InDelta(t, defaultEarthCarbon, v.Magnitude(), 1e-9)
}

func TestCarbonCycle_CreateBiomeValidation(t *testing.T) {
	cc := NewCarbonCycle()
	require.NoError(t, cc.CreateBiome("permafrost", 0.25))

	assert.Error(t, cc.CreateBiome("permafrost", 0.1), "duplicate name")
	assert.Error(t, cc.CreateBiome("", 0.1), "empty name")
	assert.Error(t, cc.CreateBiome("ocean", 1), "fraction must stay below 1")
	assert.Error(t, cc.CreateBiome("ocean", -0.1), "negative fraction")
	assert.Equal(t, []string{DefaultBiome, "permafrost"}, cc.Biomes(),
		"rejected calls must not change the partition")
}

func TestCarbonCycle_EmissionsDrawFromBiomesByShare(t *testing.T) {
	cc := NewCarbonCycle()
	require.NoError(t, cc.CreateBiome("permafrost", 0.25))

	c := engine.New("biome-run-test", engine.WithDates(2000, 2100))
	require.NoError(t, c.AddComponent(cc))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())

	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.DatedValue(2001, unit.New(10, unit.PgCYr)))
	require.NoError(t, err)
	require.NoError(t, c.Run(2001))

	pools := cc.TrackedPools()
	assert.InDelta(t, 0.75*defaultEarthCarbon-7.5, pools[1].Value().Magnitude(), 1e-9)
	assert.InDelta(t, 0.25*defaultEarthCarbon-2.5, pools[2].Value().Magnitude(), 1e-9)
	assert.InDelta(t, defaultAtmosCarbon+10, getMag(t, c, CapAtmosCarbon), 1e-9)
}

func TestCarbonCycle_CreateBiomeMovesProvenance(t *testing.T) {
	cc := NewCarbonCycle()
	c := engine.New("biome-track-test",
		engine.WithDates(2000, 2100),
		engine.WithTrackingDate(2000),
	)
	require.NoError(t, c.AddComponent(cc))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())
	require.NoError(t, c.Run(2001))

	require.NoError(t, cc.CreateBiome("permafrost", 0.25))

	moved := cc.TrackedPools()[2]
	require.True(t, moved.Tracking())
	assert.Equal(t, []string{CapEarthCarbon}, moved.Sources(),
		"mass leaving the default biome keeps its origin label")
	assert.InDelta(t, 1.0, moved.Fraction(CapEarthCarbon), 1e-12)
}

func TestCarbonCycle_DeleteBiomeMergesIntoFirst(t *testing.T) {
	cc := NewCarbonCycle()
	require.NoError(t, cc.CreateBiome("permafrost", 0.25))
	require.NoError(t, cc.DeleteBiome("permafrost"))

	assert.Equal(t, []string{DefaultBiome}, cc.Biomes())
	pools := cc.TrackedPools()
	require.Len(t, pools, 2)
	assert.InDelta(t, defaultEarthCarbon, pools[1].Value().Magnitude(), 1e-9)

	assert.Error(t, cc.DeleteBiome("permafrost"), "unknown name")
	assert.Error(t, cc.DeleteBiome(DefaultBiome), "the last biome must survive")
}

func TestCarbonCycle_RenameBiomePreservesProvenance(t *testing.T) {
	cc := NewCarbonCycle()
	c := engine.New("biome-rename-test",
		engine.WithDates(2000, 2100),
		engine.WithTrackingDate(2000),
	)
	require.NoError(t, c.AddComponent(cc))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())
	require.NoError(t, c.Run(2001))
	require.NoError(t, cc.CreateBiome("permafrost", 0.25))

	require.NoError(t, cc.RenameBiome("permafrost", "tundra"))

	assert.Equal(t, []string{DefaultBiome, "tundra"}, cc.Biomes())
	renamed := cc.TrackedPools()[2]
	assert.Equal(t, "tundra.earth_c", renamed.Name())
	assert.Equal(t, []string{CapEarthCarbon}, renamed.Sources(),
		"recorded origins survive the rename")

	assert.Error(t, cc.RenameBiome("missing", "x"), "unknown name")
	assert.Error(t, cc.RenameBiome("tundra", DefaultBiome), "name collision")
	assert.Error(t, cc.RenameBiome("tundra", ""), "empty name")
}

func TestCarbonCycle_ResetRestoresBiomePartition(t *testing.T) {
	cc := NewCarbonCycle()
	require.NoError(t, cc.CreateBiome("permafrost", 0.25))

	c := engine.New("biome-reset-test", engine.WithDates(2000, 2100))
	require.NoError(t, c.AddComponent(cc))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())

	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(4, unit.PgCYr)))
	require.NoError(t, err)
	require.NoError(t, c.Run(2005))

	require.NoError(t, c.Reset(2002))
	pools := cc.TrackedPools()
	require.Len(t, pools, 3)
	assert.InDelta(t, 0.75*(defaultEarthCarbon-8), pools[1].Value().Magnitude(), 1e-9)
	assert.InDelta(t, 0.25*(defaultEarthCarbon-8), pools[2].Value().Magnitude(), 1e-9)
}

func TestCO2Forcing_LogLaw(t *testing.T) {
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(10, unit.PgCYr)))
	require.NoError(t, err)

	require.NoError(t, c.Run(2010))

	conc := getMag(t, c, CapCO2Conc)
	rf := getMag(t, c, CapRFTotal)
	assert.InDelta(t, 5.35*math.Log(conc/defaultPreindustCO2), rf, 1e-9)

	// RF_CO2 and RF_tot coincide with a single forcing agent.
	assert.Equal(t, getMag(t, c, CapRFCO2), rf)
}

func TestCO2Forcing_PreindustrialParameter(t *testing.T) {
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapPreindustCO2,
		engine.TimeInvariant(unit.New(280, unit.PpmvCO2)))
	require.NoError(t, err)
	assert.Equal(t, 280.0, getMag(t, c, CapPreindustCO2))
}

func TestCO2Forcing_MissingDependencyFailsAtPrepare(t *testing.T) {
	c := engine.New("no-carbon", engine.WithDates(2000, 2100))
	require.NoError(t, c.AddComponent(NewCO2Forcing()))
	require.NoError(t, c.Init())

	err := c.PrepareToRun()
	require.Error(t, err)
	assert.True(t, engine.IsUnknownCapability(err))
	assert.Contains(t, err.Error(), CapCO2Conc)
}

func TestTemperature_LinearInForcing(t *testing.T) {
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(10, unit.PgCYr)))
	require.NoError(t, err)

	require.NoError(t, c.Run(2010))

	rf := getMag(t, c, CapRFTotal)
	tas := getMag(t, c, CapGlobalTemp)
	assert.InDelta(t, defaultLambda*rf, tas, 1e-9)
}

func TestTemperature_LambdaParameter(t *testing.T) {
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapLambda,
		engine.TimeInvariant(unit.New(1.2, unit.DegC)))
	require.NoError(t, err)

	_, err = c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(10, unit.PgCYr)))
	require.NoError(t, err)

	require.NoError(t, c.Run(2005))
	assert.InDelta(t, 1.2*getMag(t, c, CapRFTotal), getMag(t, c, CapGlobalTemp), 1e-9)
}

func TestStandardCore_ResetDeterminism(t *testing.T) {
	// The full three-component assembly must replay bit-identically.
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(8, unit.PgCYr)))
	require.NoError(t, err)

	capture := func() map[string]uint64 {
		out := make(map[string]uint64)
		for _, capability := range []string{CapAtmosCarbon, CapCO2Conc, CapRFTotal, CapGlobalTemp} {
			out[capability] = math.Float64bits(getMag(t, c, capability))
		}
		return out
	}

	require.NoError(t, c.Run(2050))
	first := capture()

	require.NoError(t, c.Reset(0))
	require.NoError(t, c.Run(2050))
	assert.Equal(t, first, capture())
}

func TestCarbonCycle_DatedGetReadsCheckpoint(t *testing.T) {
	c := newStandardCore(t)
	_, err := c.SendMessage(engine.SetData, CapFFIEmissions,
		engine.TimeInvariant(unit.New(5, unit.PgCYr)))
	require.NoError(t, err)

	require.NoError(t, c.Run(2010))

	v, err := c.SendMessage(engine.GetData, CapAtmosCarbon, engine.MessageData{Date: 2003})
	require.NoError(t, err)
	assert.InDelta(t, defaultAtmosCarbon+3*5, v.Magnitude(), 1e-9)
}

func TestCarbonCycle_AcceptOffersPoolsToPoolVisitors(t *testing.T) {
	cc := NewCarbonCycle()
	c := engine.New("visit-test",
		engine.WithDates(2000, 2100),
		engine.WithTrackingDate(2000),
	)
	require.NoError(t, c.AddComponent(cc))
	require.NoError(t, c.Init())
	require.NoError(t, c.PrepareToRun())

	pv := &poolRecorder{}
	c.AddVisitor(pv)
	require.NoError(t, c.Run(2002))

	require.Len(t, pv.visits, 2, "one pool visit per completed step")
	assert.Equal(t, []float64{2001, 2002}, pv.dates)
	require.Len(t, pv.visits[0], 2)
	assert.Equal(t, CapAtmosCarbon, pv.visits[0][0].Name())
	assert.Equal(t, CapEarthCarbon, pv.visits[0][1].Name())
}

// poolRecorder implements engine.Visitor and component.PoolVisitor.
type poolRecorder struct {
	dates  []float64
	visits [][]pool.Pool
}

func (p *poolRecorder) ShouldVisit(inSpinup bool, date float64) bool { return !inSpinup }
func (p *poolRecorder) VisitCore(c *engine.Core) error               { return nil }

func (p *poolRecorder) VisitPools(date float64, pools []pool.Pool) error {
	p.dates = append(p.dates, date)
	p.visits = append(p.visits, pools)
	return nil
}

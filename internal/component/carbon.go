// Package component provides the standard subsystem components wired
// into a Tellus core: a two-box carbon cycle, CO2 radiative forcing,
// and global mean temperature.
//
// The physics here is deliberately minimal. The components exist to
// own capabilities, exchange tracked mass, and exercise the dispatch,
// checkpoint, and observer machinery; a richer model plugs in behind
// the same Component interface without touching the core.
package component

import (
	"fmt"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/pool"
	"github.com/roach88/tellus/internal/tseries"
	"github.com/roach88/tellus/internal/unit"
)

// Capability names owned by the standard components. The core routes
// on these strings and nothing else.
const (
	CapAtmosCarbon  = "atmos_c"           // PgC, carbon cycle
	CapEarthCarbon  = "earth_c"           // PgC, carbon cycle
	CapCO2Conc      = "CO2_concentration" // ppmv CO2, carbon cycle
	CapFFIEmissions = "ffi_emissions"     // PgC/yr, carbon cycle
	CapRFCO2        = "RF_CO2"            // W/m2, forcing
	CapRFTotal      = "RF_tot"            // W/m2, forcing
	CapGlobalTemp   = "global_tas"        // degC, temperature
	CapPreindustCO2 = "preindustrial_CO2" // ppmv CO2, forcing parameter
	CapLambda       = "lambda"            // degC per W/m2, temperature parameter
)

// pgcPerPpmv converts atmospheric carbon mass to CO2 concentration:
// one ppmv of CO2 corresponds to 2.13 PgC in the atmosphere.
const pgcPerPpmv = 2.13

// Default initial stocks, PgC.
const (
	defaultAtmosCarbon = 588.071
	defaultEarthCarbon = 5500
)

// ffiSource labels fossil-fuel mass entering the tracked pools.
const ffiSource = "ffi"

// DefaultBiome names the single partition every carbon cycle starts
// with. Its earth pool keeps the unqualified capability name so a
// model that never partitions sees no naming change.
const DefaultBiome = "global"

// biome is one named partition of the earth reservoir. Partitions own
// no capabilities; the cycle aggregates them when answering earth_c.
type biome struct {
	name string
	init float64
	pool pool.Pool
}

// earthPoolName returns the pool name for a biome's share of the earth
// reservoir. The default biome keeps the bare capability name; every
// other biome is qualified as "<biome>.earth_c".
func earthPoolName(name string) string {
	if name == DefaultBiome {
		return CapEarthCarbon
	}
	return name + "." + CapEarthCarbon
}

// carbonCheckpoint captures the full carbon state for one date.
// Pools are immutable values, so storing them captures provenance too.
type carbonCheckpoint struct {
	date   float64
	atmos  pool.Pool
	biomes []biome
}

// CarbonCycle is a two-box carbon component: an atmosphere pool and an
// earth (fossil) reservoir partitioned into named biomes. Fossil-fuel
// emissions withdraw from the earth partitions in proportion to their
// mass and deposit into the atmosphere, tagged with the emissions
// source label once tracking begins.
type CarbonCycle struct {
	core *engine.Core

	initAtmos float64

	atmos  pool.Pool
	biomes []biome

	emissions   *tseries.Series
	constantFFI *unit.Value

	checkpoints []carbonCheckpoint
}

// NewCarbonCycle creates the carbon component with default stocks and
// a single default biome holding the whole earth reservoir.
func NewCarbonCycle() *CarbonCycle {
	c := &CarbonCycle{
		initAtmos: defaultAtmosCarbon,
		emissions: tseries.New(unit.PgCYr),
		biomes: []biome{
			{name: DefaultBiome, init: defaultEarthCarbon},
		},
	}
	c.restoreInitial()
	return c
}

// restoreInitial rebuilds every pool from its initial stock. The biome
// partition itself survives: names and per-biome initial shares are
// configuration, not run state.
func (c *CarbonCycle) restoreInitial() {
	c.atmos = pool.New(CapAtmosCarbon, unit.New(c.initAtmos, unit.PgC))
	for i := range c.biomes {
		b := &c.biomes[i]
		b.pool = pool.New(earthPoolName(b.name), unit.New(b.init, unit.PgC))
	}
}

// copyBiomes snapshots the partition slice. Pools are immutable
// values, so a shallow copy of the structs is a full snapshot.
func copyBiomes(biomes []biome) []biome {
	return append([]biome(nil), biomes...)
}

// Name implements engine.Component.
func (c *CarbonCycle) Name() string { return "carbon-cycle" }

// Capabilities implements engine.Component.
func (c *CarbonCycle) Capabilities() []string {
	return []string{CapAtmosCarbon, CapEarthCarbon, CapCO2Conc, CapFFIEmissions}
}

// Init implements engine.Component.
func (c *CarbonCycle) Init(core *engine.Core) error {
	c.core = core
	return nil
}

// PrepareToRun implements engine.Component. The carbon cycle reads
// nothing from other components.
func (c *CarbonCycle) PrepareToRun() error { return nil }

// RunSpinup implements engine.Component. The two-box system starts at
// its baseline, so a single settling step suffices.
func (c *CarbonCycle) RunSpinup(step int) (bool, error) {
	c.restoreInitial()
	return true, nil
}

// Run implements engine.Component: move this year's emissions between
// the earth partitions and the atmosphere, then checkpoint.
func (c *CarbonCycle) Run(date float64) error {
	c.applyTracking(date)

	// One step is one year, so PgC/yr integrates to PgC.
	ffi := c.emissionsAt(date).Magnitude()
	switch {
	case ffi > 0:
		if err := c.emit(date, ffi); err != nil {
			return err
		}
	case ffi < 0:
		if err := c.uptake(date, -ffi); err != nil {
			return err
		}
	}

	c.checkpoints = append(c.checkpoints, carbonCheckpoint{
		date:   date,
		atmos:  c.atmos,
		biomes: copyBiomes(c.biomes),
	})
	return nil
}

// emit withdraws ffi PgC from the earth partitions, each contributing
// in proportion to its current mass, and deposits the total into the
// atmosphere. Fossil mass leaving the ground is relabeled: downstream
// pools see it as "ffi", not as generic earth carbon.
func (c *CarbonCycle) emit(date, ffi float64) error {
	biomes := copyBiomes(c.biomes)
	extracted := 0.0
	for i := range biomes {
		b := &biomes[i]
		amount := unit.New(ffi*c.biomeShare(i), unit.PgC)
		if amount.Magnitude() == 0 {
			continue
		}
		_, remainder, err := b.pool.Extract(amount)
		if err != nil {
			return fmt.Errorf("extract ffi flux from %s at %g: %w", b.name, date, err)
		}
		b.pool = remainder
		extracted += amount.Magnitude()
	}
	merged, err := c.atmos.Deposit(unit.New(extracted, unit.PgC), ffiSource)
	if err != nil {
		return fmt.Errorf("deposit ffi flux at %g: %w", date, err)
	}
	c.biomes = biomes
	c.atmos = merged
	return nil
}

// uptake withdraws mass from the atmosphere and returns it to the
// earth partitions, each receiving its mass share. The flux carries
// the atmosphere's current composition into every partition.
func (c *CarbonCycle) uptake(date, amount float64) error {
	flux, remainder, err := c.atmos.Extract(unit.New(amount, unit.PgC))
	if err != nil {
		return fmt.Errorf("extract uptake flux at %g: %w", date, err)
	}

	biomes := copyBiomes(c.biomes)
	for i := range biomes {
		b := &biomes[i]
		part := flux
		if i < len(biomes)-1 {
			slice, rest, err := flux.Extract(unit.New(amount*c.biomeShare(i), unit.PgC))
			if err != nil {
				return fmt.Errorf("split uptake flux for %s at %g: %w", b.name, date, err)
			}
			part, flux = slice, rest
		}
		// The last partition takes the remainder so the split
		// conserves mass exactly.
		merged, err := b.pool.Merge(part)
		if err != nil {
			return fmt.Errorf("deposit uptake flux into %s at %g: %w", b.name, date, err)
		}
		b.pool = merged
	}
	c.atmos = remainder
	c.biomes = biomes
	return nil
}

// biomeShare returns biome i's fraction of the total earth mass. When
// the reservoir is empty the first biome takes the whole share, so an
// overdraw surfaces as an extract error rather than silently vanishing.
func (c *CarbonCycle) biomeShare(i int) float64 {
	total := 0.0
	for _, b := range c.biomes {
		total += b.pool.Value().Magnitude()
	}
	if total == 0 {
		if i == 0 {
			return 1
		}
		return 0
	}
	return c.biomes[i].pool.Value().Magnitude() / total
}

// applyTracking enables provenance on every pool once the configured
// tracking date is reached. Before it no provenance is recorded.
func (c *CarbonCycle) applyTracking(date float64) {
	td := c.core.TrackingDate()
	if td == engine.UndefinedDate {
		return
	}
	shouldTrack := date >= td
	if shouldTrack != c.atmos.Tracking() {
		c.atmos = c.atmos.WithTracking(shouldTrack)
		for i := range c.biomes {
			c.biomes[i].pool = c.biomes[i].pool.WithTracking(shouldTrack)
		}
	}
}

func (c *CarbonCycle) emissionsAt(date float64) unit.Value {
	if v, ok := c.emissions.Interp(date); ok {
		return v
	}
	if c.constantFFI != nil {
		return *c.constantFFI
	}
	return unit.New(0, unit.PgCYr)
}

// Reset implements engine.Component: restore the newest checkpoint at
// or before date and discard everything later. Emission inputs are not
// state; they survive a reset so a replay re-integrates them.
func (c *CarbonCycle) Reset(date float64) error {
	i := len(c.checkpoints)
	for i > 0 && c.checkpoints[i-1].date > date {
		i--
	}
	c.checkpoints = c.checkpoints[:i]

	if i == 0 {
		c.restoreInitial()
		return nil
	}
	cp := c.checkpoints[i-1]
	c.atmos = cp.atmos
	c.biomes = copyBiomes(cp.biomes)
	return nil
}

// GetData implements engine.Component.
func (c *CarbonCycle) GetData(capability string, date float64) (unit.Value, error) {
	atmos, biomes := c.atmos, c.biomes
	if date != engine.UndefinedDate {
		if cp, ok := c.checkpointAt(date); ok {
			atmos, biomes = cp.atmos, cp.biomes
		}
	}

	switch capability {
	case CapAtmosCarbon:
		return atmos.Value(), nil
	case CapEarthCarbon:
		total := 0.0
		for _, b := range biomes {
			total += b.pool.Value().Magnitude()
		}
		return unit.New(total, unit.PgC), nil
	case CapCO2Conc:
		return unit.New(atmos.Value().Magnitude()/pgcPerPpmv, unit.PpmvCO2), nil
	case CapFFIEmissions:
		if date == engine.UndefinedDate {
			return c.emissionsAt(c.core.CurrentDate()), nil
		}
		return c.emissionsAt(date), nil
	default:
		return unit.Value{}, fmt.Errorf("carbon cycle cannot answer %s", capability)
	}
}

func (c *CarbonCycle) checkpointAt(date float64) (carbonCheckpoint, bool) {
	for i := len(c.checkpoints) - 1; i >= 0; i-- {
		if c.checkpoints[i].date <= date {
			return c.checkpoints[i], true
		}
	}
	return carbonCheckpoint{}, false
}

// SetData implements engine.Component.
func (c *CarbonCycle) SetData(capability string, data engine.MessageData) error {
	switch capability {
	case CapFFIEmissions:
		cv, err := data.Value.ConvertTo(unit.PgCYr)
		if err != nil {
			return err
		}
		if !data.HasDate() {
			c.constantFFI = &cv
			return nil
		}
		return c.emissions.Set(data.Date, cv)

	case CapAtmosCarbon:
		cv, err := data.Value.ConvertTo(unit.PgC)
		if err != nil {
			return err
		}
		c.initAtmos = cv.Magnitude()
		c.atmos = pool.New(CapAtmosCarbon, cv)
		return nil

	case CapEarthCarbon:
		cv, err := data.Value.ConvertTo(unit.PgC)
		if err != nil {
			return err
		}
		c.rescaleEarth(cv.Magnitude())
		return nil

	default:
		return fmt.Errorf("carbon cycle cannot set %s", capability)
	}
}

// ShutDown implements engine.Component.
func (c *CarbonCycle) ShutDown() {
	c.checkpoints = nil
}

// rescaleEarth sets a new total earth stock, scaling every biome's
// share proportionally. Provenance is dropped: setting an initial stock
// is a re-initialization, not a flux.
func (c *CarbonCycle) rescaleEarth(total float64) {
	old := 0.0
	for _, b := range c.biomes {
		old += b.init
	}
	for i := range c.biomes {
		b := &c.biomes[i]
		if old == 0 {
			if i == 0 {
				b.init = total
			} else {
				b.init = 0
			}
		} else {
			b.init = b.init * total / old
		}
		b.pool = pool.New(earthPoolName(b.name), unit.New(b.init, unit.PgC))
	}
}

// Biomes returns the partition names in creation order.
func (c *CarbonCycle) Biomes() []string {
	names := make([]string, len(c.biomes))
	for i, b := range c.biomes {
		names[i] = b.name
	}
	return names
}

func (c *CarbonCycle) biomeIndex(name string) int {
	for i, b := range c.biomes {
		if b.name == name {
			return i
		}
	}
	return -1
}

// CreateBiome adds a new partition holding the given fraction of the
// current earth reservoir. Each existing biome gives up that fraction
// of its stock, so tracked provenance moves with the mass. The
// fraction must lie in [0, 1).
func (c *CarbonCycle) CreateBiome(name string, fraction float64) error {
	if name == "" {
		return fmt.Errorf("biome name must not be empty")
	}
	if c.biomeIndex(name) >= 0 {
		return fmt.Errorf("biome %s already exists", name)
	}
	if fraction < 0 || fraction >= 1 {
		return fmt.Errorf("biome fraction %g outside [0, 1)", fraction)
	}

	biomes := copyBiomes(c.biomes)
	fresh := pool.New(earthPoolName(name), unit.New(0, unit.PgC)).WithTracking(c.atmos.Tracking())
	init := 0.0
	for i := range biomes {
		b := &biomes[i]
		amount := unit.New(fraction*b.pool.Value().Magnitude(), unit.PgC)
		if amount.Magnitude() > 0 {
			flux, remainder, err := b.pool.Extract(amount)
			if err != nil {
				return fmt.Errorf("split biome %s: %w", b.name, err)
			}
			merged, err := fresh.Merge(flux)
			if err != nil {
				return fmt.Errorf("seed biome %s from %s: %w", name, b.name, err)
			}
			b.pool = remainder
			fresh = merged
		}
		init += fraction * b.init
		b.init *= 1 - fraction
	}

	c.biomes = append(biomes, biome{name: name, init: init, pool: fresh})
	return nil
}

// DeleteBiome removes a partition, merging its stock into the first
// remaining biome. Provenance recorded on the departing stock moves
// with it. The last biome cannot be deleted.
func (c *CarbonCycle) DeleteBiome(name string) error {
	i := c.biomeIndex(name)
	if i < 0 {
		return fmt.Errorf("unknown biome %s", name)
	}
	if len(c.biomes) == 1 {
		return fmt.Errorf("cannot delete the last biome %s", name)
	}

	biomes := copyBiomes(c.biomes)
	doomed := biomes[i]
	biomes = append(biomes[:i], biomes[i+1:]...)

	merged, err := biomes[0].pool.Merge(doomed.pool)
	if err != nil {
		return fmt.Errorf("absorb biome %s into %s: %w", name, biomes[0].name, err)
	}
	biomes[0].pool = merged
	biomes[0].init += doomed.init
	c.biomes = biomes
	return nil
}

// RenameBiome changes a partition's name. Its pool is renamed in
// place, preserving all recorded provenance; only mass that was never
// attributed will later resolve to the new pool name.
func (c *CarbonCycle) RenameBiome(oldName, newName string) error {
	i := c.biomeIndex(oldName)
	if i < 0 {
		return fmt.Errorf("unknown biome %s", oldName)
	}
	if newName == "" {
		return fmt.Errorf("biome name must not be empty")
	}
	if c.biomeIndex(newName) >= 0 {
		return fmt.Errorf("biome %s already exists", newName)
	}
	c.biomes[i].name = newName
	c.biomes[i].pool = c.biomes[i].pool.Rename(earthPoolName(newName))
	return nil
}

// TrackedPools returns the pools that may carry provenance, in a fixed
// order for deterministic observer output: the atmosphere first, then
// the earth partitions in creation order.
func (c *CarbonCycle) TrackedPools() []pool.Pool {
	pools := make([]pool.Pool, 0, len(c.biomes)+1)
	pools = append(pools, c.atmos)
	for _, b := range c.biomes {
		pools = append(pools, b.pool)
	}
	return pools
}

// PoolVisitor is the narrow visit interface for provenance observers.
// A visitor that also implements PoolVisitor receives the carbon
// cycle's tracked pools after each observed step.
type PoolVisitor interface {
	VisitPools(date float64, pools []pool.Pool) error
}

// Accept implements engine.Observable.
func (c *CarbonCycle) Accept(v engine.Visitor) error {
	if pv, ok := v.(PoolVisitor); ok {
		return pv.VisitPools(c.core.CurrentDate(), c.TrackedPools())
	}
	return nil
}

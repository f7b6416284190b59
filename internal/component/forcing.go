package component

import (
	"fmt"
	"math"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/tseries"
	"github.com/roach88/tellus/internal/unit"
)

// defaultPreindustCO2 is the preindustrial CO2 concentration, ppmv.
const defaultPreindustCO2 = 276.09

// co2ForcingCoeff is the standard logarithmic CO2 forcing coefficient,
// W/m2 per e-folding of concentration.
const co2ForcingCoeff = 5.35

// CO2Forcing computes radiative forcing from the dispatched CO2
// concentration: RF = 5.35 * ln(C / C0). It owns both the CO2 term
// and the total; with one forcing agent the two coincide, but callers
// address them separately so richer agents can split them later.
type CO2Forcing struct {
	core *engine.Core

	c0      float64
	history *tseries.Series
}

// NewCO2Forcing creates the forcing component with the default
// preindustrial baseline.
func NewCO2Forcing() *CO2Forcing {
	return &CO2Forcing{
		c0:      defaultPreindustCO2,
		history: tseries.New(unit.WPerM2),
	}
}

// Name implements engine.Component.
func (f *CO2Forcing) Name() string { return "forcing" }

// Capabilities implements engine.Component.
func (f *CO2Forcing) Capabilities() []string {
	return []string{CapRFCO2, CapRFTotal, CapPreindustCO2}
}

// Init implements engine.Component.
func (f *CO2Forcing) Init(core *engine.Core) error {
	f.core = core
	return nil
}

// PrepareToRun implements engine.Component: the forcing calculation
// depends on someone owning the CO2 concentration capability, and a
// missing dependency must fail here, not mid-run.
func (f *CO2Forcing) PrepareToRun() error {
	if _, err := f.core.SendMessage(engine.GetData, CapCO2Conc, engine.CurrentValue()); err != nil {
		return fmt.Errorf("forcing requires %s: %w", CapCO2Conc, err)
	}
	return nil
}

// RunSpinup implements engine.Component.
func (f *CO2Forcing) RunSpinup(step int) (bool, error) {
	f.history = tseries.New(unit.WPerM2)
	return true, nil
}

// Run implements engine.Component.
func (f *CO2Forcing) Run(date float64) error {
	conc, err := f.core.SendMessage(engine.GetData, CapCO2Conc, engine.CurrentValue())
	if err != nil {
		return err
	}
	ppmv, err := conc.In(unit.PpmvCO2)
	if err != nil {
		return err
	}

	rf := co2ForcingCoeff * math.Log(ppmv/f.c0)
	return f.history.Set(date, unit.New(rf, unit.WPerM2))
}

// Reset implements engine.Component.
func (f *CO2Forcing) Reset(date float64) error {
	f.history.TruncateAfter(date)
	return nil
}

// GetData implements engine.Component.
func (f *CO2Forcing) GetData(capability string, date float64) (unit.Value, error) {
	switch capability {
	case CapRFCO2, CapRFTotal:
		if date != engine.UndefinedDate {
			if v, ok := f.history.Get(date); ok {
				return v, nil
			}
		}
		if _, v, ok := f.history.LastAtOrBefore(f.core.CurrentDate()); ok {
			return v, nil
		}
		return unit.New(0, unit.WPerM2), nil
	case CapPreindustCO2:
		return unit.New(f.c0, unit.PpmvCO2), nil
	default:
		return unit.Value{}, fmt.Errorf("forcing cannot answer %s", capability)
	}
}

// SetData implements engine.Component. Only the preindustrial baseline
// is settable, and only as a time-invariant parameter.
func (f *CO2Forcing) SetData(capability string, data engine.MessageData) error {
	switch capability {
	case CapPreindustCO2:
		cv, err := data.Value.ConvertTo(unit.PpmvCO2)
		if err != nil {
			return err
		}
		f.c0 = cv.Magnitude()
		return nil
	default:
		return fmt.Errorf("forcing cannot set %s", capability)
	}
}

// ShutDown implements engine.Component.
func (f *CO2Forcing) ShutDown() {}

package component

import (
	"fmt"

	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/tseries"
	"github.com/roach88/tellus/internal/unit"
)

// defaultLambda is the climate sensitivity parameter, degC per W/m2.
const defaultLambda = 0.8

// Temperature computes global mean surface temperature anomaly as an
// equilibrium response to total forcing: T = lambda * RF.
type Temperature struct {
	core *engine.Core

	lambda  float64
	history *tseries.Series
}

// NewTemperature creates the temperature component with the default
// climate sensitivity.
func NewTemperature() *Temperature {
	return &Temperature{
		lambda:  defaultLambda,
		history: tseries.New(unit.DegC),
	}
}

// Name implements engine.Component.
func (tc *Temperature) Name() string { return "temperature" }

// Capabilities implements engine.Component.
func (tc *Temperature) Capabilities() []string {
	return []string{CapGlobalTemp, CapLambda}
}

// Init implements engine.Component.
func (tc *Temperature) Init(core *engine.Core) error {
	tc.core = core
	return nil
}

// PrepareToRun implements engine.Component.
func (tc *Temperature) PrepareToRun() error {
	if _, err := tc.core.SendMessage(engine.GetData, CapRFTotal, engine.CurrentValue()); err != nil {
		return fmt.Errorf("temperature requires %s: %w", CapRFTotal, err)
	}
	return nil
}

// RunSpinup implements engine.Component.
func (tc *Temperature) RunSpinup(step int) (bool, error) {
	tc.history = tseries.New(unit.DegC)
	return true, nil
}

// Run implements engine.Component.
func (tc *Temperature) Run(date float64) error {
	rf, err := tc.core.SendMessage(engine.GetData, CapRFTotal, engine.CurrentValue())
	if err != nil {
		return err
	}
	w, err := rf.In(unit.WPerM2)
	if err != nil {
		return err
	}
	return tc.history.Set(date, unit.New(tc.lambda*w, unit.DegC))
}

// Reset implements engine.Component.
func (tc *Temperature) Reset(date float64) error {
	tc.history.TruncateAfter(date)
	return nil
}

// GetData implements engine.Component.
func (tc *Temperature) GetData(capability string, date float64) (unit.Value, error) {
	switch capability {
	case CapGlobalTemp:
		if date != engine.UndefinedDate {
			if v, ok := tc.history.Get(date); ok {
				return v, nil
			}
		}
		if _, v, ok := tc.history.LastAtOrBefore(tc.core.CurrentDate()); ok {
			return v, nil
		}
		return unit.New(0, unit.DegC), nil
	case CapLambda:
		return unit.New(tc.lambda, unit.DegC), nil
	default:
		return unit.Value{}, fmt.Errorf("temperature cannot answer %s", capability)
	}
}

// SetData implements engine.Component.
func (tc *Temperature) SetData(capability string, data engine.MessageData) error {
	switch capability {
	case CapLambda:
		cv, err := data.Value.ConvertTo(unit.DegC)
		if err != nil {
			return err
		}
		tc.lambda = cv.Magnitude()
		return nil
	default:
		return fmt.Errorf("temperature cannot set %s", capability)
	}
}

// ShutDown implements engine.Component.
func (tc *Temperature) ShutDown() {}

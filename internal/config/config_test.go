package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tellus/internal/component"
	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/unit"
)

const validConfig = `
name: historical
start_date: 1745
end_date: 2300
tracking_date: 1850
emissions:
  - {date: 1850, value: 0.2, units: PgC/yr}
  - {date: 1900, value: 0.5, units: PgC/yr}
set:
  - {capability: preindustrial_CO2, value: 280, units: ppmv CO2}
  - {capability: lambda, value: 1.1, units: degC}
outputs:
  - CO2_concentration
  - global_tas
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "historical", cfg.Name)
	assert.Equal(t, 1745.0, cfg.StartDate)
	assert.Equal(t, 2300.0, cfg.EndDate)
	require.NotNil(t, cfg.TrackingDate)
	assert.Equal(t, 1850.0, *cfg.TrackingDate)
	assert.Len(t, cfg.Emissions, 2)
	assert.Len(t, cfg.Set, 2)
	assert.Equal(t, []string{"CO2_concentration", "global_tas"}, cfg.Outputs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_MissingRequiredField(t *testing.T) {
	_, err := Parse([]byte("name: x\nstart_date: 2000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	doc := "start_date: 2000\nend_date: 2100\nemission:\n  - {date: 2001, value: 1, units: PgC/yr}\n"
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_EndBeforeStart(t *testing.T) {
	_, err := Parse([]byte("start_date: 2100\nend_date: 2000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be after")
}

func TestParse_TrackingBeforeStart(t *testing.T) {
	_, err := Parse([]byte("start_date: 2000\nend_date: 2100\ntracking_date: 1900\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precedes")
}

func TestParse_UnknownUnit(t *testing.T) {
	doc := "start_date: 2000\nend_date: 2100\nemissions:\n  - {date: 2001, value: 1, units: furlongs}\n"
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.True(t, unit.IsUnknown(err))
}

func TestParse_NormalizesLabels(t *testing.T) {
	// "é" written as e + combining acute must compare equal to its
	// precomposed form after loading.
	doc := "name: scénario\nstart_date: 2000\nend_date: 2100\n"
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "scénario", cfg.Name)
}

func TestConfig_CoreOptions(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	c := engine.New(cfg.Name, cfg.CoreOptions()...)
	assert.Equal(t, 1745.0, c.StartDate())
	assert.Equal(t, 2300.0, c.EndDate())
	assert.Equal(t, 1850.0, c.TrackingDate())
}

func TestConfig_ApplyDispatchesAssignments(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	c := engine.New(cfg.Name, cfg.CoreOptions()...)
	require.NoError(t, c.AddComponent(component.NewCarbonCycle()))
	require.NoError(t, c.AddComponent(component.NewCO2Forcing()))
	require.NoError(t, c.AddComponent(component.NewTemperature()))
	require.NoError(t, c.Init())
	require.NoError(t, cfg.Apply(c))
	require.NoError(t, c.PrepareToRun())

	v, err := c.SendMessage(engine.GetData, component.CapPreindustCO2, engine.CurrentValue())
	require.NoError(t, err)
	assert.Equal(t, 280.0, v.Magnitude())

	v, err = c.SendMessage(engine.GetData, component.CapFFIEmissions, engine.MessageData{Date: 1850})
	require.NoError(t, err)
	assert.Equal(t, 0.2, v.Magnitude())
}

func TestConfig_ApplyUnknownCapability(t *testing.T) {
	cfg, err := Parse([]byte("start_date: 2000\nend_date: 2100\nset:\n  - {capability: ocean_c, value: 1, units: PgC}\n"))
	require.NoError(t, err)

	c := engine.New("bare", cfg.CoreOptions()...)
	require.NoError(t, c.Init())
	err = cfg.Apply(c)
	require.Error(t, err)
	assert.True(t, engine.IsUnknownCapability(err))
}

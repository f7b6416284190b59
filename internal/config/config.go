// Package config loads run configuration files. A configuration is a
// YAML document validated against an embedded CUE schema; it names the
// simulation window, the input emissions, and any capability
// assignments to dispatch before the run starts.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tellus/internal/component"
	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/unit"
)

//go:embed schema.cue
var schemaSource string

// Config is a parsed, validated run configuration.
type Config struct {
	// Name identifies the run. Optional; the caller assigns a
	// generated name when empty.
	Name string `yaml:"name,omitempty"`

	// StartDate and EndDate bound the simulation window.
	StartDate float64 `yaml:"start_date"`
	EndDate   float64 `yaml:"end_date"`

	// TrackingDate, when set, enables pool provenance tracking
	// from that date onward.
	TrackingDate *float64 `yaml:"tracking_date,omitempty"`

	// MaxSpinupSteps overrides the spin-up step cap. Zero keeps
	// the engine default.
	MaxSpinupSteps int `yaml:"max_spinup_steps,omitempty"`

	// Emissions are dated fossil-fuel emissions entries, dispatched
	// as dated SETs on the ffi_emissions capability.
	Emissions []Dated `yaml:"emissions,omitempty"`

	// Set lists arbitrary capability assignments dispatched before
	// the run starts.
	Set []Assignment `yaml:"set,omitempty"`

	// Outputs names the capabilities sampled by the stream
	// observer after each step.
	Outputs []string `yaml:"outputs,omitempty"`
}

// Dated is a dated scalar with units.
type Dated struct {
	Date  float64 `yaml:"date"`
	Value float64 `yaml:"value"`
	Units string  `yaml:"units"`
}

// Assignment is a capability SET. Date is optional; without it the
// value is dispatched as a time-invariant parameter.
type Assignment struct {
	Capability string   `yaml:"capability"`
	Value      float64  `yaml:"value"`
	Units      string   `yaml:"units"`
	Date       *float64 `yaml:"date,omitempty"`
}

// Load reads, validates, and parses a run configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates and parses a run configuration document.
func Parse(data []byte) (*Config, error) {
	// Decode loosely first so the CUE schema sees the document
	// shape exactly as written.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	// Strict decode catches typos the schema's optional fields
	// would otherwise let through.
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validateSchema unifies the decoded document with the embedded CUE
// schema and reports the first constraint violation.
func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Run"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encoding config document: %w", err)
	}
	if err := schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// normalize applies NFC normalization to every label that will be
// compared against capability names.
func (c *Config) normalize() {
	c.Name = norm.NFC.String(c.Name)
	for i := range c.Set {
		c.Set[i].Capability = norm.NFC.String(c.Set[i].Capability)
	}
	for i, out := range c.Outputs {
		c.Outputs[i] = norm.NFC.String(out)
	}
}

// validate checks the constraints CUE cannot express across fields.
func (c *Config) validate() error {
	if c.EndDate <= c.StartDate {
		return fmt.Errorf("end_date %g must be after start_date %g", c.EndDate, c.StartDate)
	}
	if c.TrackingDate != nil && *c.TrackingDate < c.StartDate {
		return fmt.Errorf("tracking_date %g precedes start_date %g", *c.TrackingDate, c.StartDate)
	}
	for i, e := range c.Emissions {
		if _, err := unit.Parse(e.Units); err != nil {
			return fmt.Errorf("emissions[%d]: %w", i, err)
		}
	}
	for i, s := range c.Set {
		if _, err := unit.Parse(s.Units); err != nil {
			return fmt.Errorf("set[%d]: %w", i, err)
		}
	}
	return nil
}

// CoreOptions translates the configuration into engine options.
func (c *Config) CoreOptions() []engine.CoreOption {
	opts := []engine.CoreOption{engine.WithDates(c.StartDate, c.EndDate)}
	if c.TrackingDate != nil {
		opts = append(opts, engine.WithTrackingDate(*c.TrackingDate))
	}
	if c.MaxSpinupSteps > 0 {
		opts = append(opts, engine.WithMaxSpinupSteps(c.MaxSpinupSteps))
	}
	return opts
}

// Apply dispatches the configured emissions and assignments into an
// initialized core. Unknown capabilities and unknown units fail the
// load; nothing is dispatched partially ahead of an earlier error.
func (c *Config) Apply(core *engine.Core) error {
	for i, e := range c.Emissions {
		u, err := unit.Parse(e.Units)
		if err != nil {
			return fmt.Errorf("emissions[%d]: %w", i, err)
		}
		_, err = core.SendMessage(engine.SetData, component.CapFFIEmissions,
			engine.DatedValue(e.Date, unit.New(e.Value, u)))
		if err != nil {
			return fmt.Errorf("emissions[%d]: %w", i, err)
		}
	}

	for i, s := range c.Set {
		u, err := unit.Parse(s.Units)
		if err != nil {
			return fmt.Errorf("set[%d] %s: %w", i, s.Capability, err)
		}
		data := engine.TimeInvariant(unit.New(s.Value, u))
		if s.Date != nil {
			data = engine.DatedValue(*s.Date, unit.New(s.Value, u))
		}
		if _, err := core.SendMessage(engine.SetData, s.Capability, data); err != nil {
			return fmt.Errorf("set[%d] %s: %w", i, s.Capability, err)
		}
	}
	return nil
}

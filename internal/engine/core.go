package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tellus/internal/unit"
)

// State is the lifecycle position of a Core.
//
// The legal transitions are strictly forward:
//
//	Unconfigured → Initialized → Prepared → Running → ShutDown
//
// with ShutDown reachable from any state after Initialized. A clean/
// dirty flag runs orthogonally once the core is Prepared: every
// completed Run marks the core dirty relative to the last checkpoint,
// and a Reset to a date at or before the last reset date clears it.
type State int

const (
	Unconfigured State = iota
	Initialized
	Prepared
	Running
	ShutDown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Initialized:
		return "initialized"
	case Prepared:
		return "prepared"
	case Running:
		return "running"
	case ShutDown:
		return "shutdown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultMaxSpinupSteps bounds the stabilization pass. A model that
// has not reached quasi-equilibrium by then is misconfigured.
const DefaultMaxSpinupSteps = 2000

// Core owns a set of components, the capability routing table, the
// simulation clock, and the run/reset state machine.
//
// All interaction with model state goes through SendMessage; callers
// never touch a Component directly. Execution is single-threaded and
// synchronous: components step in a fixed order, so there is no data
// race to manage within one core. Multiple cores are fully independent.
//
// INVARIANTS:
//   - components slice order NEVER changes after Init; it is the step
//     order, the visit order, and part of the determinism contract
//   - capability→component is a function: enforced at registration
//   - all component state is captured by per-date checkpoints, so
//     Reset(d) + identical Run sequence reproduces identical output
type Core struct {
	name  string
	state State

	startDate    float64
	endDate      float64
	trackingDate float64

	currentDate   float64
	spunUp        bool
	inSpinup      bool
	dirty         bool
	lastResetDate float64

	components []Component
	routes     map[string]Component
	visitors   []Visitor

	maxSpinupSteps int
}

// CoreOption configures a Core at construction.
type CoreOption func(*Core)

// WithDates sets the simulation start and end dates.
func WithDates(start, end float64) CoreOption {
	return func(c *Core) {
		c.startDate = start
		c.endDate = end
	}
}

// WithTrackingDate sets the date at which provenance tracking begins.
// Before it, components record no provenance even for tracked pools.
func WithTrackingDate(date float64) CoreOption {
	return func(c *Core) {
		c.trackingDate = date
	}
}

// WithMaxSpinupSteps bounds the spin-up stabilization pass.
func WithMaxSpinupSteps(n int) CoreOption {
	return func(c *Core) {
		c.maxSpinupSteps = n
	}
}

// New creates a Core in the Unconfigured state.
func New(name string, opts ...CoreOption) *Core {
	c := &Core{
		name:           name,
		state:          Unconfigured,
		trackingDate:   UndefinedDate,
		maxSpinupSteps: DefaultMaxSpinupSteps,
		routes:         make(map[string]Component),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the run name.
func (c *Core) Name() string { return c.name }

// CoreState returns the lifecycle state.
func (c *Core) CoreState() State { return c.state }

// StartDate returns the configured simulation start date.
func (c *Core) StartDate() float64 { return c.startDate }

// EndDate returns the configured simulation end date.
func (c *Core) EndDate() float64 { return c.endDate }

// TrackingDate returns the date provenance tracking begins, or
// UndefinedDate when tracking is off for the whole run.
func (c *Core) TrackingDate() float64 { return c.trackingDate }

// CurrentDate returns the simulation clock.
func (c *Core) CurrentDate() float64 { return c.currentDate }

// InSpinup reports whether the core is inside the stabilization pass.
func (c *Core) InSpinup() bool { return c.inSpinup }

// Dirty reports whether state has advanced past the last checkpoint.
func (c *Core) Dirty() bool { return c.dirty }

// LastResetDate returns the checkpoint date the dirty flag is tracked
// against. It starts at the start date when the core is prepared.
func (c *Core) LastResetDate() float64 { return c.lastResetDate }

// AddComponent queues a component for registration. Valid only before
// Init; the slice order is the step order for the whole run.
func (c *Core) AddComponent(comp Component) error {
	if c.state != Unconfigured {
		return NewInvalidStateError("AddComponent", c.state)
	}
	c.components = append(c.components, comp)
	return nil
}

// AddVisitor registers an observer. Visitors are invoked in
// registration order after every completed step.
func (c *Core) AddVisitor(v Visitor) {
	c.visitors = append(c.visitors, v)
}

// Init registers every queued component and builds the capability
// routing table. Valid only from Unconfigured; transitions to
// Initialized.
//
// Capability collisions fail with DUPLICATE_CAPABILITY before any
// component's Init hook runs, so no partial registration is observable.
func (c *Core) Init() error {
	if c.state != Unconfigured {
		return NewInvalidStateError("Init", c.state)
	}

	// Two passes: validate the whole capability table first, then run
	// the Init hooks. A collision must not leave half the table built.
	routes := make(map[string]Component, len(c.components)*2)
	for _, comp := range c.components {
		for _, capability := range comp.Capabilities() {
			if owner, exists := routes[capability]; exists {
				return NewDuplicateCapabilityError(capability, owner.Name())
			}
			routes[capability] = comp
		}
	}

	for _, comp := range c.components {
		if err := comp.Init(c); err != nil {
			return fmt.Errorf("init component %s: %w", comp.Name(), err)
		}
	}

	c.routes = routes
	c.state = Initialized
	slog.Debug("core initialized",
		"run", c.name,
		"components", len(c.components),
		"capabilities", len(c.routes),
	)
	return nil
}

// PrepareToRun lets each component validate its cross-references to
// other components' capabilities. Valid only from Initialized;
// transitions to Prepared with the flag clean and the clock at the
// start date.
func (c *Core) PrepareToRun() error {
	if c.state != Initialized {
		return NewInvalidStateError("PrepareToRun", c.state)
	}

	for _, comp := range c.components {
		if err := comp.PrepareToRun(); err != nil {
			return fmt.Errorf("prepare component %s: %w", comp.Name(), err)
		}
	}

	c.state = Prepared
	c.currentDate = c.startDate
	c.lastResetDate = c.startDate
	c.dirty = false
	slog.Debug("core prepared", "run", c.name, "start", c.startDate, "end", c.endDate)
	return nil
}

// SendMessage dispatches a single message to the owning component and
// returns its result verbatim. Dispatch is synchronous and touches
// only the targeted component; recomputation happens during Run, never
// here.
func (c *Core) SendMessage(kind MessageKind, capability string, data MessageData) (unit.Value, error) {
	if c.state == ShutDown {
		return unit.Value{}, NewInactiveError("SendMessage")
	}

	comp, ok := c.routes[capability]
	if !ok {
		return unit.Value{}, NewUnknownCapabilityError(capability)
	}

	switch kind {
	case GetData:
		v, err := comp.GetData(capability, data.Date)
		if err != nil {
			return unit.Value{}, fmt.Errorf("get %s from %s: %w", capability, comp.Name(), err)
		}
		return v, nil

	case SetData:
		if err := comp.SetData(capability, data); err != nil {
			return unit.Value{}, fmt.Errorf("set %s on %s: %w", capability, comp.Name(), err)
		}
		return data.Value, nil

	default:
		return unit.Value{}, fmt.Errorf("unknown message kind %d", int(kind))
	}
}

// Run steps every component, in registration order, from the current
// clock up to date t in one-year increments. The clock advances to the
// last whole-year step at or below t; a fractional remainder is never
// stepped, so after Run(2002.5) the clock reads 2002 and the next Run
// resumes on the whole-year grid. The first Run triggers the spin-up
// pass. Requires t >= the current clock; a backwards request fails
// with INVALID_REPLAY_ORDER and mutates nothing.
func (c *Core) Run(t float64) error {
	switch c.state {
	case ShutDown:
		return NewInactiveError("Run")
	case Prepared, Running:
		// ok
	default:
		return NewInvalidStateError("Run", c.state)
	}

	if t < c.currentDate {
		return NewReplayOrderError(t, c.currentDate)
	}

	if !c.spunUp {
		if err := c.runSpinup(); err != nil {
			return err
		}
	}

	for date := c.currentDate + 1; date <= t; date++ {
		for _, comp := range c.components {
			if err := comp.Run(date); err != nil {
				return fmt.Errorf("run component %s at %g: %w", comp.Name(), date, err)
			}
		}
		c.currentDate = date
		c.dirty = true
		if err := c.visit(false, date); err != nil {
			return err
		}
	}

	c.state = Running
	return nil
}

// runSpinup drives the internal stabilization pass: every component
// steps until all of them report a stable baseline in the same step.
func (c *Core) runSpinup() error {
	slog.Debug("spinup starting", "run", c.name)
	c.inSpinup = true
	defer func() { c.inSpinup = false }()

	for step := 1; step <= c.maxSpinupSteps; step++ {
		stable := true
		for _, comp := range c.components {
			s, err := comp.RunSpinup(step)
			if err != nil {
				return fmt.Errorf("spinup component %s step %d: %w", comp.Name(), step, err)
			}
			stable = stable && s
		}
		if err := c.visit(true, float64(step)); err != nil {
			return err
		}
		if stable {
			c.spunUp = true
			slog.Debug("spinup complete", "run", c.name, "steps", step)
			return nil
		}
	}

	return fmt.Errorf("spinup did not stabilize within %d steps", c.maxSpinupSteps)
}

// Reset restores every component to its checkpoint at or before date
// and moves the clock there. A date before the start date (or the 0
// sentinel) resets to the start and forces the spin-up pass to rerun
// before the next step; resetting to the exact start date restores the
// start checkpoint without respinning. Resetting to a date at or
// before the last reset date clears the dirty flag.
func (c *Core) Reset(date float64) error {
	switch c.state {
	case ShutDown:
		return NewInactiveError("Reset")
	case Prepared, Running:
		// ok
	default:
		return NewInvalidStateError("Reset", c.state)
	}

	target := date
	if date == 0 || date < c.startDate {
		target = c.startDate
		c.spunUp = false
	}
	if target > c.currentDate {
		target = c.currentDate
	}

	for _, comp := range c.components {
		if err := comp.Reset(target); err != nil {
			return fmt.Errorf("reset component %s to %g: %w", comp.Name(), target, err)
		}
	}

	c.currentDate = target
	if target <= c.lastResetDate {
		c.dirty = false
	}
	c.lastResetDate = target
	slog.Debug("core reset", "run", c.name, "date", target, "respinup", !c.spunUp)
	return nil
}

// ShutDownCore releases all components. Valid from any state after
// Initialized. Every subsequent SendMessage, Run, or Reset fails with
// CORE_INACTIVE.
func (c *Core) ShutDownCore() error {
	if c.state == Unconfigured {
		return NewInvalidStateError("ShutDown", c.state)
	}
	if c.state == ShutDown {
		return nil
	}

	for _, comp := range c.components {
		comp.ShutDown()
	}
	c.components = nil
	c.routes = nil
	c.visitors = nil
	c.state = ShutDown
	slog.Debug("core shut down", "run", c.name)
	return nil
}

// visit offers the completed step to every registered visitor, in
// registration order, observing the core first and then each
// observable component in step order.
func (c *Core) visit(inSpinup bool, date float64) error {
	for _, v := range c.visitors {
		if !v.ShouldVisit(inSpinup, date) {
			continue
		}
		if err := v.VisitCore(c); err != nil {
			return fmt.Errorf("visit core at %g: %w", date, err)
		}
		for _, comp := range c.components {
			o, ok := comp.(Observable)
			if !ok {
				continue
			}
			if err := o.Accept(v); err != nil {
				return fmt.Errorf("visit component %s at %g: %w", comp.Name(), date, err)
			}
		}
	}
	return nil
}

package engine

import "github.com/roach88/tellus/internal/unit"

// Component is one independently-stepped unit of simulation state.
//
// A component is owned exclusively by the Core that registered it and
// is never shared across cores. The only legal mutation paths are the
// lifecycle hooks below and dispatched SET messages; no external
// aliasing is permitted.
//
// Determinism contract: everything a component computes must be a
// function of its checkpointed state and of values read through
// Core.SendMessage. State hidden outside the component breaks replay.
type Component interface {
	// Name identifies the component in logs and output.
	Name() string

	// Capabilities lists the capability names this component owns.
	// The set must be fixed by the time Init is called.
	Capabilities() []string

	// Init wires the component to its core. Components keep the core
	// reference for cross-component reads during Run.
	Init(c *Core) error

	// PrepareToRun validates cross-references to other components'
	// capabilities. Called once, after every component is registered.
	PrepareToRun() error

	// RunSpinup advances one spin-up step and reports whether this
	// component has reached its quasi-equilibrium baseline.
	RunSpinup(step int) (bool, error)

	// Run advances state to the given date and records a checkpoint
	// for it.
	Run(date float64) error

	// Reset restores state to the checkpoint at or before date and
	// discards everything later.
	Reset(date float64) error

	// GetData answers a dispatched GET. The result's unit is whatever
	// the component defines for the capability; callers convert.
	GetData(capability string, date float64) (unit.Value, error)

	// SetData applies a dispatched SET. The component validates the
	// payload's unit against the capability's declared unit and fails
	// with UNIT_MISMATCH on incompatibility, leaving state unchanged.
	SetData(capability string, data MessageData) error

	// ShutDown releases the component. No hook is called afterwards.
	ShutDown()
}

// Observable is implemented by components that expose state to
// visitors. Accept double-dispatches on the visitor's concrete type:
// a component type-asserts the visitor against its own narrow visit
// interface and stays silent when the visitor doesn't implement it.
type Observable interface {
	Accept(v Visitor) error
}

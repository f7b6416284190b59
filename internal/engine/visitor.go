package engine

// Visitor is a read-only subscriber invoked after each completed
// simulation step.
//
// After a step at date d the core asks each registered visitor
// ShouldVisit(inSpinup, d); if true it calls VisitCore once and then
// offers the visitor to each observable component in step order.
// Visitors run in registration order, independently of one another.
//
// Visitors must not mutate core or component state. They may keep
// internal output accumulation (a header-already-written flag, open
// file handles) but nothing the model reads back.
type Visitor interface {
	// ShouldVisit reports whether the visitor wants this step.
	// Spin-up steps are offered too; most output visitors decline them.
	ShouldVisit(inSpinup bool, date float64) bool

	// VisitCore observes the core itself: run name, clock, and any
	// capability readable through SendMessage.
	VisitCore(c *Core) error
}

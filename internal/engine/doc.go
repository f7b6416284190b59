// Package engine implements the Tellus orchestration core.
//
// The core is the dispatch substrate every caller and every subsystem
// component goes through: a registry of independently-stepped
// components addressed only by the capability they own, a GET/SET
// message protocol that is the sole channel for reading and writing
// model state, and a run/reset state machine whose determinism is
// load-bearing for scientific reproducibility.
//
// ARCHITECTURE:
//
// Synchronous stepped loop:
// Everything in one core happens on the caller's goroutine. Run steps
// components one date at a time, in registration order, and offers
// each completed step to the registered visitors. This ensures:
// - Predictable component evaluation order
// - Reproducible output on replay after Reset
// - Simple reasoning about causality between capabilities
//
// Dispatch flow:
// 1. Caller builds a message (kind, capability, optional date+value)
// 2. SendMessage routes it through the capability table
// 3. The owning component's read or write handler runs synchronously
// 4. The result (or typed error) returns to the caller verbatim
//
// No cascading recomputation happens inside dispatch; recomputation
// happens only during Run.
//
// CRITICAL PATTERNS:
//
// Determinism under reset:
// All component state is captured by per-date checkpoints. Reset(d)
// followed by replaying the same Run sequence from d onward must
// reproduce bit-identical GET results at every step. No randomness, no
// wall clocks, no state outside the component/core boundary.
//
// Per-core routing:
// The capability table is scoped to one Core instance. The only
// process-wide state is the handle registry (package handle), which
// owns cores explicitly with create/destroy lifecycle.
package engine

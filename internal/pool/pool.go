// Package pool implements provenance-tracked physical stocks.
//
// A Pool is an accumulated quantity (a carbon reservoir, typically)
// that optionally records which upstream sources contributed what
// fraction of its current mass. Fractions always form a probability-
// like distribution: each lies in [0, 1] and they sum to ~1 whenever
// tracking is enabled and mass is attributed.
//
// Pools are immutable by convention: every mutating operation returns
// a new Pool and leaves the receiver untouched.
package pool

import (
	"fmt"
	"sort"

	"github.com/roach88/tellus/internal/unit"
)

// Pool is a physical stock with optional source-fraction bookkeeping.
type Pool struct {
	name     string
	value    unit.Value
	tracking bool
	sources  map[string]float64
}

// New creates an untracked pool.
func New(name string, v unit.Value) Pool {
	return Pool{name: name, value: v}
}

// Name returns the pool's name. The name doubles as the source label
// for mass that predates tracking (see attributeSelf).
func (p Pool) Name() string {
	return p.name
}

// Value returns the pool's current quantity.
func (p Pool) Value() unit.Value {
	return p.value
}

// Tracking reports whether provenance bookkeeping is enabled.
func (p Pool) Tracking() bool {
	return p.tracking
}

// WithTracking returns a copy with tracking enabled or disabled.
// Disabling discards the provenance map without error. Enabling starts
// an empty map: mass already present is attributed to the pool itself
// on the first mutating operation, never reconstructed retroactively.
func (p Pool) WithTracking(enabled bool) Pool {
	out := p
	out.tracking = enabled
	out.sources = nil
	return out
}

// Rename returns a copy carrying the new name. Recorded provenance is
// untouched: fractions already attributed to other sources keep their
// labels, and only mass that was never attributed will later resolve
// to the new name.
func (p Pool) Rename(name string) Pool {
	out := p
	out.name = name
	return out
}

// Sources returns the labels with non-zero fraction, sorted. Sorted
// order keeps observer output deterministic across runs.
func (p Pool) Sources() []string {
	if !p.tracking {
		return nil
	}
	labels := make([]string, 0, len(p.sources))
	for s, f := range p.sources {
		if f > 0 {
			labels = append(labels, s)
		}
	}
	sort.Strings(labels)
	return labels
}

// Fraction returns the fraction of current mass attributed to source.
func (p Pool) Fraction(source string) float64 {
	return p.sources[source]
}

// attributeSelf resolves mass that has no recorded origin. A pool that
// existed before tracking began, or whose tracking was just enabled,
// owns its unattributed remainder under its own name.
func (p Pool) attributeSelf() map[string]float64 {
	out := make(map[string]float64, len(p.sources)+1)
	total := 0.0
	for s, f := range p.sources {
		out[s] = f
		total += f
	}
	if rem := 1 - total; rem > 0 {
		out[p.name] += rem
	}
	return out
}

// Merge combines two pools. Magnitudes add; when the receiver tracks
// provenance, fractions are re-weighted by the relative magnitude each
// operand contributes. Merging 80 units of pure "x" with 20 units of
// pure "y" yields 100 units with fractions {x: 0.8, y: 0.2}.
func (p Pool) Merge(other Pool) (Pool, error) {
	sum, err := p.value.Add(other.value)
	if err != nil {
		return Pool{}, fmt.Errorf("merge pool %s: %w", p.name, err)
	}

	out := p
	out.value = sum

	if !p.tracking {
		return out, nil
	}

	total := sum.Magnitude()
	if total <= 0 {
		out.sources = map[string]float64{}
		return out, nil
	}

	otherMag, err := other.value.In(p.value.Unit())
	if err != nil {
		return Pool{}, fmt.Errorf("merge pool %s: %w", p.name, err)
	}
	selfMag := p.value.Magnitude()

	selfFracs := p.attributeSelf()
	otherFracs := other.attributeSelf()

	merged := make(map[string]float64, len(selfFracs)+len(otherFracs))
	for s, f := range selfFracs {
		merged[s] += f * selfMag / total
	}
	for s, f := range otherFracs {
		merged[s] += f * otherMag / total
	}
	out.sources = merged
	return out, nil
}

// Deposit adds an inflow attributed entirely to one source.
func (p Pool) Deposit(v unit.Value, source string) (Pool, error) {
	inflow := Pool{name: source, value: v, tracking: p.tracking}
	if p.tracking {
		inflow.sources = map[string]float64{source: 1}
	}
	return p.Merge(inflow)
}

// Withdraw removes magnitude proportionally across all current
// sources. Composition never changes: the set of non-zero sources and
// their relative proportions are exactly those of the receiver. This
// is the policy every downstream flux calculation depends on.
func (p Pool) Withdraw(v unit.Value) (Pool, error) {
	diff, err := p.value.Sub(v)
	if err != nil {
		return Pool{}, fmt.Errorf("withdraw from pool %s: %w", p.name, err)
	}
	if diff.Magnitude() < 0 {
		return Pool{}, fmt.Errorf("withdraw from pool %s: %s exceeds pool contents %s",
			p.name, v, p.value)
	}

	out := p
	out.value = diff
	if p.tracking {
		// Fractions carry over untouched; only total mass changes.
		out.sources = p.attributeSelf()
	}
	return out, nil
}

// Extract splits off a flux of magnitude v carrying the receiver's
// exact composition, returning the flux and the diminished remainder.
// This is how mass moves between pools without laundering provenance:
// the flux remembers where the donor's mass came from.
func (p Pool) Extract(v unit.Value) (flux, remainder Pool, err error) {
	remainder, err = p.Withdraw(v)
	if err != nil {
		return Pool{}, Pool{}, err
	}

	flux = Pool{name: p.name, value: v, tracking: p.tracking}
	if p.tracking {
		flux.sources = p.attributeSelf()
	}
	return flux, remainder, nil
}

// String renders the pool for logs and diagnostics.
func (p Pool) String() string {
	if !p.tracking {
		return fmt.Sprintf("%s: %s", p.name, p.value)
	}
	return fmt.Sprintf("%s: %s (tracked, %d sources)", p.name, p.value, len(p.Sources()))
}

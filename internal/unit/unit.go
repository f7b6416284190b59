package unit

import (
	"fmt"
)

// Unit tags a physical magnitude. The set is closed: components and
// callers agree on these tags and nothing else. Conversions exist only
// where an explicit factor is declared in conversions below.
type Unit int

const (
	// Undefined is the zero Unit. It is legal on a GET request (the
	// caller takes whatever unit the component answers in) and illegal
	// on a SET payload.
	Undefined Unit = iota

	PgC     // petagrams of carbon
	TgC     // teragrams of carbon
	GgC     // gigagrams of carbon
	PgCYr   // petagrams of carbon per year
	TgCYr   // teragrams of carbon per year
	PpmvCO2 // parts per million by volume CO2
	WPerM2  // watts per square meter
	DegC    // degrees Celsius
	Gg      // gigagrams
	Tg      // teragrams
	GgS     // gigagrams of sulfur
)

// names is the canonical spelling for each unit. Parse accepts exactly
// these strings; String emits them.
var names = map[Unit]string{
	Undefined: "(undefined)",
	PgC:       "PgC",
	TgC:       "TgC",
	GgC:       "GgC",
	PgCYr:     "PgC/yr",
	TgCYr:     "TgC/yr",
	PpmvCO2:   "ppmv CO2",
	WPerM2:    "W/m2",
	DegC:      "degC",
	Gg:        "Gg",
	Tg:        "Tg",
	GgS:       "Gg S",
}

var byName = func() map[string]Unit {
	m := make(map[string]Unit, len(names))
	for u, n := range names {
		if u != Undefined {
			m[n] = u
		}
	}
	return m
}()

// conversions holds the multiplicative factor from one unit to another.
// Only mass-scale pairs are declared; everything else is incompatible.
// The table is symmetric by construction (see init).
var conversions = map[[2]Unit]float64{
	{PgC, TgC}:     1e3,
	{PgC, GgC}:     1e6,
	{TgC, GgC}:     1e3,
	{PgCYr, TgCYr}: 1e3,
	{Tg, Gg}:       1e3,
}

func init() {
	for pair, f := range conversions {
		inv := [2]Unit{pair[1], pair[0]}
		if _, ok := conversions[inv]; !ok {
			conversions[inv] = 1 / f
		}
	}
}

// String returns the canonical name of the unit.
func (u Unit) String() string {
	if n, ok := names[u]; ok {
		return n
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// Parse maps a unit name to its tag. Unknown names fail with an
// UNKNOWN_UNIT error; the caller decides whether that is fatal (SET)
// or means "unspecified" (GET).
func Parse(name string) (Unit, error) {
	if u, ok := byName[name]; ok {
		return u, nil
	}
	return Undefined, &Error{
		Code:    ErrCodeUnknownUnit,
		Message: fmt.Sprintf("unrecognized unit name %q", name),
	}
}

// factor returns the multiplicative conversion factor from one unit to
// another, or ok=false when the units are incompatible.
func factor(from, to Unit) (float64, bool) {
	if from == to {
		return 1, true
	}
	f, ok := conversions[[2]Unit{from, to}]
	return f, ok
}

// Convertible reports whether values can cross from one unit to the other.
func Convertible(from, to Unit) bool {
	_, ok := factor(from, to)
	return ok
}

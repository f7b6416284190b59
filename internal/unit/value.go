package unit

// Value is a magnitude paired with a unit tag. Values are immutable:
// every operation returns a new Value and never modifies its receiver.
//
// Arithmetic never crosses unit boundaries implicitly. Add and Sub
// convert the operand into the receiver's unit when a conversion factor
// exists and fail with UNIT_MISMATCH otherwise.
type Value struct {
	magnitude float64
	unit      Unit
}

// New constructs a Value.
func New(magnitude float64, u Unit) Value {
	return Value{magnitude: magnitude, unit: u}
}

// Magnitude returns the raw magnitude in the value's own unit.
func (v Value) Magnitude() float64 {
	return v.magnitude
}

// Unit returns the unit tag.
func (v Value) Unit() Unit {
	return v.unit
}

// In returns the magnitude expressed in the requested unit.
func (v Value) In(u Unit) (float64, error) {
	f, ok := factor(v.unit, u)
	if !ok {
		return 0, mismatch("read value", v.unit, u)
	}
	return v.magnitude * f, nil
}

// ConvertTo returns the value re-expressed in the requested unit.
// Conversion is exact up to floating-point rounding and is the only
// way a magnitude crosses a unit boundary.
func (v Value) ConvertTo(u Unit) (Value, error) {
	m, err := v.In(u)
	if err != nil {
		return Value{}, err
	}
	return Value{magnitude: m, unit: u}, nil
}

// Add returns v + other in v's unit.
func (v Value) Add(other Value) (Value, error) {
	m, err := other.In(v.unit)
	if err != nil {
		return Value{}, mismatch("add", v.unit, other.unit)
	}
	return Value{magnitude: v.magnitude + m, unit: v.unit}, nil
}

// Sub returns v - other in v's unit.
func (v Value) Sub(other Value) (Value, error) {
	m, err := other.In(v.unit)
	if err != nil {
		return Value{}, mismatch("subtract", v.unit, other.unit)
	}
	return Value{magnitude: v.magnitude - m, unit: v.unit}, nil
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other, after converting other into v's unit.
func (v Value) Compare(other Value) (int, error) {
	m, err := other.In(v.unit)
	if err != nil {
		return 0, mismatch("compare", v.unit, other.unit)
	}
	switch {
	case v.magnitude < m:
		return -1, nil
	case v.magnitude > m:
		return 1, nil
	default:
		return 0, nil
	}
}

// String renders the value with its canonical unit name.
func (v Value) String() string {
	return formatValue(v.magnitude, v.unit)
}

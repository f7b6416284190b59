package engine

import "github.com/roach88/tellus/internal/unit"

// MessageKind distinguishes reads from writes.
type MessageKind int

const (
	// GetData requests the current value of a capability.
	GetData MessageKind = iota + 1
	// SetData writes a dated (or time-invariant) value into a capability.
	SetData
)

// String returns the wire name of the message kind.
func (k MessageKind) String() string {
	switch k {
	case GetData:
		return "getdata"
	case SetData:
		return "setdata"
	default:
		return "unknown"
	}
}

// UndefinedDate is the sentinel for "no date". On a SET it means the
// target is a time-invariant parameter rather than a dated entry; on a
// GET it means "the current value".
const UndefinedDate float64 = -1

// MessageData is the optional payload accompanying a message: a date
// and a unit-tagged value. Either may be left undefined depending on
// the message kind.
type MessageData struct {
	Date  float64
	Value unit.Value
}

// DatedValue builds a payload for a dated SET.
func DatedValue(date float64, v unit.Value) MessageData {
	return MessageData{Date: date, Value: v}
}

// TimeInvariant builds a payload for a SET on a parameter that does
// not vary with time.
func TimeInvariant(v unit.Value) MessageData {
	return MessageData{Date: UndefinedDate, Value: v}
}

// CurrentValue builds an empty payload for a GET of the current value.
func CurrentValue() MessageData {
	return MessageData{Date: UndefinedDate}
}

// HasDate reports whether the payload carries a defined date.
func (d MessageData) HasDate() bool {
	return d.Date != UndefinedDate
}

package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"kpiscout/domain/core"
)

// ValueType defines the storage type for a cell
type ValueType string

const (
	ValueTypeMissing   ValueType = "missing"
	ValueTypeNumeric   ValueType = "numeric"
	ValueTypeTimestamp ValueType = "timestamp"
	ValueTypeString    ValueType = "string"
	ValueTypeBoolean   ValueType = "boolean"
)

// Value is a single tagged cell. Only the field matching Type is meaningful.
type Value struct {
	Type ValueType
	Num  float64
	Time time.Time
	Str  string
	Bool bool
}

// NewMissingValue creates a missing value
func NewMissingValue() Value {
	return Value{Type: ValueTypeMissing}
}

// NewNumericValue creates a numeric value; NaN and Inf are stored as missing
func NewNumericValue(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeNumeric, Num: n}
}

// NewTimestampValue creates a timestamp value
func NewTimestampValue(t time.Time) Value {
	if t.IsZero() {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeTimestamp, Time: t}
}

// NewStringValue creates a string value; blank strings are missing
func NewStringValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeString, Str: s}
}

// NewBooleanValue creates a boolean value
func NewBooleanValue(b bool) Value {
	return Value{Type: ValueTypeBoolean, Bool: b}
}

// FromAny converts an arbitrary primitive cell into a Value
func FromAny(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return NewMissingValue()
	case Value:
		return v
	case string:
		return NewStringValue(v)
	case float64:
		return NewNumericValue(v)
	case float32:
		return NewNumericValue(float64(v))
	case int:
		return NewNumericValue(float64(v))
	case int8:
		return NewNumericValue(float64(v))
	case int16:
		return NewNumericValue(float64(v))
	case int32:
		return NewNumericValue(float64(v))
	case int64:
		return NewNumericValue(float64(v))
	case uint:
		return NewNumericValue(float64(v))
	case uint8:
		return NewNumericValue(float64(v))
	case uint16:
		return NewNumericValue(float64(v))
	case uint32:
		return NewNumericValue(float64(v))
	case uint64:
		return NewNumericValue(float64(v))
	case bool:
		return NewBooleanValue(v)
	case time.Time:
		return NewTimestampValue(v)
	case core.Timestamp:
		return NewTimestampValue(v.Time())
	case fmt.Stringer:
		return NewStringValue(v.String())
	default:
		return NewStringValue(fmt.Sprintf("%v", v))
	}
}

// IsMissing reports whether the cell holds no value
func (v Value) IsMissing() bool {
	return v.Type == ValueTypeMissing || v.Type == ""
}

// IsNumeric returns true if the value is a number
func (v Value) IsNumeric() bool {
	return v.Type == ValueTypeNumeric
}

// IsTimestamp returns true if the value is a timestamp
func (v Value) IsTimestamp() bool {
	return v.Type == ValueTypeTimestamp
}

// Float returns the numeric value, or NaN when the cell is not numeric
func (v Value) Float() float64 {
	if v.Type == ValueTypeNumeric {
		return v.Num
	}
	return math.NaN()
}

// Text returns the grouping key for the cell; missing cells return ""
func (v Value) Text() string {
	switch v.Type {
	case ValueTypeString:
		return v.Str
	case ValueTypeNumeric:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueTypeTimestamp:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339)
	case ValueTypeBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// Interface returns the cell as a plain Go value for serialization
func (v Value) Interface() interface{} {
	switch v.Type {
	case ValueTypeNumeric:
		return v.Num
	case ValueTypeTimestamp:
		return v.Time
	case ValueTypeString:
		return v.Str
	case ValueTypeBoolean:
		return v.Bool
	}
	return nil
}

// String implements fmt.Stringer
func (v Value) String() string {
	if v.IsMissing() {
		return "<missing>"
	}
	return v.Text()
}

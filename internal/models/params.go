package models

import (
	"encoding/json"
	"fmt"
)

// Params holds analytics event parameters. Values are restricted to the
// three shapes the backend accepts: string, number, bool.
type Params map[string]ParamValue

type paramKind uint8

const (
	paramString paramKind = iota
	paramNumber
	paramBool
)

// ParamValue is a tagged string|number|bool union
type ParamValue struct {
	kind paramKind
	str  string
	num  float64
	b    bool
}

// String wraps a string parameter value
func String(s string) ParamValue {
	return ParamValue{kind: paramString, str: s}
}

// Number wraps a numeric parameter value
func Number(n float64) ParamValue {
	return ParamValue{kind: paramNumber, num: n}
}

// Bool wraps a boolean parameter value
func Bool(b bool) ParamValue {
	return ParamValue{kind: paramBool, b: b}
}

// AsString returns the string value and whether the union holds a string
func (v ParamValue) AsString() (string, bool) {
	return v.str, v.kind == paramString
}

// AsNumber returns the numeric value and whether the union holds a number
func (v ParamValue) AsNumber() (float64, bool) {
	return v.num, v.kind == paramNumber
}

// AsBool returns the boolean value and whether the union holds a bool
func (v ParamValue) AsBool() (bool, bool) {
	return v.b, v.kind == paramBool
}

// MarshalJSON implements json.Marshaler
func (v ParamValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case paramString:
		return json.Marshal(v.str)
	case paramNumber:
		return json.Marshal(v.num)
	case paramBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("invalid parameter value kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Anything that is not a string,
// number, or bool is rejected.
func (v *ParamValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = String(val)
	case float64:
		*v = Number(val)
	case bool:
		*v = Bool(val)
	default:
		return fmt.Errorf("unsupported parameter value type %T", raw)
	}
	return nil
}

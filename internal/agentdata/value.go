// Package agentdata defines the tagged-union value type that crosses every
// function, job, and message boundary in the runtime.
package agentdata

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindStringArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStringArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a sum type over the variants the spec allows to cross a function
// boundary. Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind

	str     string
	integer int64
	float   float64
	boolean bool
	strs    []string
	object  Data
}

// Data is the uniform parameter/result container: a mapping of name to Value.
type Data map[string]Value

// None returns the empty variant.
func None() Value { return Value{Kind: KindNone} }

// String wraps a string value.
func String(s string) Value { return Value{Kind: KindString, str: s} }

// Int wraps an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, integer: i} }

// Float wraps a floating point value.
func Float(f float64) Value { return Value{Kind: KindFloat, float: f} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, boolean: b} }

// StringArray wraps a slice of strings.
func StringArray(ss []string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{Kind: KindStringArray, strs: cp}
}

// Object wraps a nested Data map.
func Object(d Data) Value { return Value{Kind: KindObject, object: d} }

// AsString returns the string payload, or an error if Kind != KindString.
func (v Value) AsString() (string, error) {
	if v.Kind != KindString {
		return "", fmt.Errorf("agentdata: value is %s, not string", v.Kind)
	}
	return v.str, nil
}

// AsInt returns the integer payload, or an error if Kind != KindInt.
func (v Value) AsInt() (int64, error) {
	if v.Kind != KindInt {
		return 0, fmt.Errorf("agentdata: value is %s, not int", v.Kind)
	}
	return v.integer, nil
}

// AsFloat returns the float payload. Int values widen transparently, matching
// how the schema validator treats int as assignable to a float parameter.
func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.float, nil
	case KindInt:
		return float64(v.integer), nil
	default:
		return 0, fmt.Errorf("agentdata: value is %s, not float", v.Kind)
	}
}

// AsBool returns the boolean payload, or an error if Kind != KindBool.
func (v Value) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("agentdata: value is %s, not bool", v.Kind)
	}
	return v.boolean, nil
}

// AsStringArray returns the array payload, or an error if Kind != KindStringArray.
func (v Value) AsStringArray() ([]string, error) {
	if v.Kind != KindStringArray {
		return nil, fmt.Errorf("agentdata: value is %s, not array", v.Kind)
	}
	cp := make([]string, len(v.strs))
	copy(cp, v.strs)
	return cp, nil
}

// AsObject returns the nested Data payload, or an error if Kind != KindObject.
func (v Value) AsObject() (Data, error) {
	if v.Kind != KindObject {
		return nil, fmt.Errorf("agentdata: value is %s, not object", v.Kind)
	}
	return v.object, nil
}

// IsNone reports whether the value holds no payload.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindStringArray:
		return StringArray(v.strs)
	case KindObject:
		return Object(v.object.Clone())
	default:
		return v
	}
}

// Clone returns a deep copy of the Data map.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	cp := make(Data, len(d))
	for k, v := range d {
		cp[k] = v.Clone()
	}
	return cp
}

// jsonValue is the wire representation of Value: a discriminator plus a
// single raw payload field, matching the tagged-variant shape from §9.
type jsonValue struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the value as {"kind": ..., "data": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var raw any
	switch v.Kind {
	case KindNone:
		return json.Marshal(jsonValue{Kind: "none"})
	case KindString:
		raw = v.str
	case KindInt:
		raw = v.integer
	case KindFloat:
		raw = v.float
	case KindBool:
		raw = v.boolean
	case KindStringArray:
		raw = v.strs
	case KindObject:
		raw = v.object
	default:
		return nil, fmt.Errorf("agentdata: unknown kind %d", v.Kind)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Kind: v.Kind.String(), Data: data})
}

// UnmarshalJSON decodes a value previously produced by MarshalJSON.
func (v *Value) UnmarshalJSON(b []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(b, &jv); err != nil {
		return err
	}
	switch jv.Kind {
	case "", "none":
		*v = None()
		return nil
	case "string":
		var s string
		if err := json.Unmarshal(jv.Data, &s); err != nil {
			return err
		}
		*v = String(s)
	case "int":
		var i int64
		if err := json.Unmarshal(jv.Data, &i); err != nil {
			return err
		}
		*v = Int(i)
	case "float":
		var f float64
		if err := json.Unmarshal(jv.Data, &f); err != nil {
			return err
		}
		*v = Float(f)
	case "bool":
		var b bool
		if err := json.Unmarshal(jv.Data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "array":
		var ss []string
		if err := json.Unmarshal(jv.Data, &ss); err != nil {
			return err
		}
		*v = StringArray(ss)
	case "object":
		var d Data
		if err := json.Unmarshal(jv.Data, &d); err != nil {
			return err
		}
		*v = Object(d)
	default:
		return fmt.Errorf("agentdata: unknown kind %q", jv.Kind)
	}
	return nil
}

// FromAny converts a loosely-typed value (as decoded from a generic JSON
// request body) into a Value, inferring the discriminator from its Go type.
// This is the boundary where untyped HTTP request bodies become the tagged
// variant the rest of the runtime operates on.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return None()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case []string:
		return StringArray(t)
	case []any:
		ss := make([]string, 0, len(t))
		allStrings := true
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				allStrings = false
				break
			}
			ss = append(ss, s)
		}
		if allStrings {
			return StringArray(ss)
		}
		// Non-homogeneous arrays have no variant in the spec's tagged union;
		// fold them into an object keyed by index so no data is dropped.
		obj := make(Data, len(t))
		for i, e := range t {
			obj[fmt.Sprintf("%d", i)] = FromAny(e)
		}
		return Object(obj)
	case map[string]any:
		obj := make(Data, len(t))
		for k, e := range t {
			obj[k] = FromAny(e)
		}
		return Object(obj)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// DataFromMap converts a decoded JSON object into Data.
func DataFromMap(m map[string]any) Data {
	d := make(Data, len(m))
	for k, v := range m {
		d[k] = FromAny(v)
	}
	return d
}

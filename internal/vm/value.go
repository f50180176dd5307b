// Package vm implements the Eva stack machine: the runtime value and
// object model, the traced heap, the global table, and the dispatch loop.
package vm

import (
	"fmt"
	"strconv"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// VKNumber represents a double-precision number.
	VKNumber ValueKind = iota
	// VKBool represents a boolean value.
	VKBool
	// VKObject represents a reference to a heap object.
	VKObject
)

// String returns a human-readable name for the value kind.
func (k ValueKind) String() string {
	switch k {
	case VKNumber:
		return "number"
	case VKBool:
		return "bool"
	case VKObject:
		return "object"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is the tagged runtime value: a number, a boolean, or a heap
// object reference.
type Value struct {
	Kind ValueKind
	Num  float64 // VKNumber
	Bool bool    // VKBool
	Obj  *Object // VKObject
}

// MakeNumber creates a numeric value.
func MakeNumber(n float64) Value {
	return Value{Kind: VKNumber, Num: n}
}

// MakeBool creates a boolean value.
func MakeBool(b bool) Value {
	return Value{Kind: VKBool, Bool: b}
}

// MakeObject creates an object reference value.
func MakeObject(o *Object) Value {
	return Value{Kind: VKObject, Obj: o}
}

// IsNumber reports whether the value is a number.
func (v Value) IsNumber() bool { return v.Kind == VKNumber }

// IsBool reports whether the value is a boolean.
func (v Value) IsBool() bool { return v.Kind == VKBool }

// IsObject reports whether the value is a heap reference.
func (v Value) IsObject() bool { return v.Kind == VKObject && v.Obj != nil }

// IsObjectKind reports whether the value references an object of the
// given kind.
func (v Value) IsObjectKind(kind ObjectKind) bool {
	return v.IsObject() && v.Obj.Kind == kind
}

// IsString reports whether the value is a string object.
func (v Value) IsString() bool { return v.IsObjectKind(OKString) }

// AsString returns the string payload; the caller must have checked IsString.
func (v Value) AsString() string { return v.Obj.Str }

// TypeName names the value's type for diagnostics.
func (v Value) TypeName() string {
	if v.Kind == VKObject {
		if v.Obj == nil {
			return "nil-object"
		}
		return v.Obj.Kind.String()
	}
	return v.Kind.String()
}

// String returns a human-readable representation of the value.
func (v Value) String() string {
	switch v.Kind {
	case VKNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case VKBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case VKObject:
		if v.Obj == nil {
			return "<nil>"
		}
		return v.Obj.String()
	default:
		return fmt.Sprintf("<unknown:%d>", v.Kind)
	}
}

package vm

import (
	"fmt"
	"strconv"

	objerr "objectir/pkg/errors"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBool
	KindString
	KindObject
)

// Value is a tagged union over null, the four numeric primitives, bool,
// string, and an object reference. Zero Value is the null value.
type Value struct {
	kind ValueKind
	i    int64   // int32/int64 payload
	f    float64 // float32/float64 payload
	b    bool
	s    string
	obj  *Object
}

// Null is the canonical null value.
var Null = Value{kind: KindNull}

func Int32(v int32) Value   { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value   { return Value{kind: KindInt64, i: v} }
func Float32(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }
func FromObject(v *Object) Value {
	if v == nil {
		return Null
	}
	return Value{kind: KindObject, obj: v}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsInt32() bool   { return v.kind == KindInt32 }
func (v Value) IsInt64() bool   { return v.kind == KindInt64 }
func (v Value) IsFloat32() bool { return v.kind == KindFloat32 }
func (v Value) IsFloat64() bool { return v.kind == KindFloat64 }
func (v Value) IsBool() bool    { return v.kind == KindBool }
func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsObject() bool  { return v.kind == KindObject }

func (v Value) AsInt32() (int32, error) {
	if v.kind != KindInt32 {
		return 0, objerr.New(objerr.TypeMismatch, "expected int32, got %v", v.kind)
	}
	return int32(v.i), nil
}

func (v Value) AsInt64() (int64, error) {
	if v.kind != KindInt64 {
		return 0, objerr.New(objerr.TypeMismatch, "expected int64, got %v", v.kind)
	}
	return v.i, nil
}

func (v Value) AsFloat32() (float32, error) {
	if v.kind != KindFloat32 {
		return 0, objerr.New(objerr.TypeMismatch, "expected float32, got %v", v.kind)
	}
	return float32(v.f), nil
}

func (v Value) AsFloat64() (float64, error) {
	if v.kind != KindFloat64 {
		return 0, objerr.New(objerr.TypeMismatch, "expected float64, got %v", v.kind)
	}
	return v.f, nil
}

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, objerr.New(objerr.TypeMismatch, "expected bool, got %v", v.kind)
	}
	return v.b, nil
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", objerr.New(objerr.TypeMismatch, "expected string, got %v", v.kind)
	}
	return v.s, nil
}

func (v Value) AsObject() (*Object, error) {
	if v.kind != KindObject {
		return nil, objerr.New(objerr.TypeMismatch, "expected object, got %v", v.kind)
	}
	return v.obj, nil
}

// ToDisplayString renders v the way Console.WriteLine and to_display_string
// do: natural decimal text for numerics, "true"/"false" for bool, the empty
// string for null, the raw text for strings, and "<object>" for references.
func (v Value) ToDisplayString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInt32:
		return strconv.FormatInt(v.i, 10)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindString:
		return v.s
	case KindObject:
		return "<object>"
	default:
		return ""
	}
}

// ToInt64 widens int32/int64/float32/float64 to int64, truncating floats.
func (v Value) ToInt64() (int64, error) {
	switch v.kind {
	case KindInt32, KindInt64:
		return v.i, nil
	case KindFloat32, KindFloat64:
		return int64(v.f), nil
	default:
		return 0, objerr.New(objerr.TypeMismatch, "cannot convert %v to int64", v.kind)
	}
}

// ToDouble widens int32/int64/float32/float64 to float64.
func (v Value) ToDouble() (float64, error) {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.i), nil
	case KindFloat32, KindFloat64:
		return v.f, nil
	default:
		return 0, objerr.New(objerr.TypeMismatch, "cannot convert %v to float64", v.kind)
	}
}

// ToBool implements the coercion the executor uses for brtrue/brfalse, `if`,
// and `while` stack/expression conditions.
func (v Value) ToBool() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt32, KindInt64:
		return v.i != 0
	case KindFloat32, KindFloat64:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindObject:
		return true
	default:
		return false
	}
}

// Equal is structural for primitives and strings, identity-based for object
// references, and false whenever the variant tags differ.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt32, KindInt64:
		return v.i == other.i
	case KindFloat32, KindFloat64:
		return v.f == other.f
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindObject:
		return v.obj == other.obj
	default:
		return false
	}
}

// Hash agrees with Equal on every variant.
func (v Value) Hash() uint64 {
	switch v.kind {
	case KindNull:
		return 0
	case KindInt32, KindInt64:
		return uint64(v.i)
	case KindFloat32, KindFloat64:
		return uint64(fmt.Sprintf("%v", v.f)[0]) ^ uint64(len(fmt.Sprintf("%v", v.f)))
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString:
		var h uint64 = 14695981039346656037
		for i := 0; i < len(v.s); i++ {
			h ^= uint64(v.s[i])
			h *= 1099511628211
		}
		return h
	case KindObject:
		if v.obj == nil {
			return 0
		}
		return v.obj.id
	default:
		return 0
	}
}

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

package vm

import (
	"strings"

	"golang.org/x/text/cases"
)

// PrimitiveType enumerates the non-class, non-array alternatives of a
// TypeReference.
type PrimitiveType uint8

const (
	PrimInt32 PrimitiveType = iota
	PrimInt64
	PrimFloat32
	PrimFloat64
	PrimBool
	PrimVoid
	PrimString
	PrimUInt8
	PrimObject
)

// TypeReference describes a primitive, a class, or an array of
// TypeReference (one dimension, recursive element type).
type TypeReference struct {
	isPrimitive bool
	primitive   PrimitiveType
	class       *Class
	elementType *TypeReference // non-nil => this is an array type
}

func PrimitiveRef(p PrimitiveType) TypeReference { return TypeReference{isPrimitive: true, primitive: p} }
func ClassRefType(c *Class) TypeReference         { return TypeReference{isPrimitive: false, class: c} }
func ArrayRefType(elem TypeReference) TypeReference {
	e := elem
	return TypeReference{elementType: &e}
}

func (t TypeReference) IsPrimitive() bool         { return t.isPrimitive && t.elementType == nil }
func (t TypeReference) IsArray() bool             { return t.elementType != nil }
func (t TypeReference) IsObjectType() bool        { return !t.isPrimitive && t.elementType == nil }
func (t TypeReference) Primitive() PrimitiveType  { return t.primitive }
func (t TypeReference) ClassType() *Class         { return t.class }
func (t TypeReference) ElementType() TypeReference {
	if t.elementType == nil {
		return TypeReference{}
	}
	return *t.elementType
}

// CanonicalTypeName renders t the way the C ABI metadata export and
// overload resolution expect: canonical primitive spelling or the class's
// qualified name.
func (t TypeReference) CanonicalTypeName() string {
	if t.IsArray() {
		return t.ElementType().CanonicalTypeName() + "[]"
	}
	if t.isPrimitive {
		switch t.primitive {
		case PrimInt32:
			return "int32"
		case PrimInt64:
			return "int64"
		case PrimFloat32:
			return "float32"
		case PrimFloat64:
			return "float64"
		case PrimBool:
			return "bool"
		case PrimVoid:
			return "void"
		case PrimString:
			return "string"
		case PrimUInt8:
			return "uint8"
		case PrimObject:
			return "object"
		default:
			return "object"
		}
	}
	if t.class != nil {
		return t.class.QualifiedName()
	}
	return "object"
}

var foldCaser = cases.Fold()

// NormalizeTypeName maps CLR-style aliases to canonical spelling. Primitive
// names are matched case-insensitively (golang.org/x/text/cases.Fold, not
// strings.ToLower, so the comparison is locale-independent); unrecognized
// names are assumed to be class names and returned unchanged, since class
// names are compared case-sensitively.
func NormalizeTypeName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	lower := foldCaser.String(trimmed)

	switch lower {
	case "system.void", "void":
		return "void"
	case "system.string", "string":
		return "string"
	case "system.boolean", "bool", "boolean":
		return "bool"
	case "system.int32", "int32", "int":
		return "int32"
	case "system.int64", "int64", "long":
		return "int64"
	case "system.single", "single", "float", "float32":
		return "float32"
	case "system.double", "double", "float64":
		return "float64"
	case "system.byte", "byte", "uint8":
		return "uint8"
	case "system.object", "object":
		return "object"
	}
	return trimmed
}

func NormalizeTypeNames(raw []string) []string {
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = NormalizeTypeName(r)
	}
	return out
}

// primitiveFromCanonical maps a canonical primitive spelling back to its
// PrimitiveType, used when decoding constant/return type text.
func primitiveFromCanonical(name string) (PrimitiveType, bool) {
	switch name {
	case "int32":
		return PrimInt32, true
	case "int64":
		return PrimInt64, true
	case "float32":
		return PrimFloat32, true
	case "float64":
		return PrimFloat64, true
	case "bool":
		return PrimBool, true
	case "void":
		return PrimVoid, true
	case "string":
		return PrimString, true
	case "uint8":
		return PrimUInt8, true
	case "object":
		return PrimObject, true
	default:
		return 0, false
	}
}

// normalizeOpCode folds an opcode spelling case-insensitively, the same way
// NormalizeTypeName folds type-name text, before alias resolution.
func normalizeOpCode(raw string) string {
	return foldCaser.String(strings.TrimSpace(raw))
}

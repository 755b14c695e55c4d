package vm

import "testing"

func TestNormalizeTypeNameAliasesFoldCaseInsensitively(t *testing.T) {
	cases := map[string]string{
		"System.Int32":  "int32",
		"INT":           "int32",
		"system.string": "string",
		"Boolean":       "bool",
		"Double":        "float64",
		"Single":        "float32",
		"Byte":          "uint8",
		"System.Object": "object",
		"  int64  ":     "int64",
	}
	for raw, want := range cases {
		if got := NormalizeTypeName(raw); got != want {
			t.Errorf("NormalizeTypeName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeTypeNamePreservesUnknownClassNames(t *testing.T) {
	if got := NormalizeTypeName("MyNamespace.Foo"); got != "MyNamespace.Foo" {
		t.Errorf("expected class name to pass through unchanged, got %q", got)
	}
}

func TestCanonicalTypeNameArray(t *testing.T) {
	arr := ArrayRefType(PrimitiveRef(PrimInt32))
	if got := arr.CanonicalTypeName(); got != "int32[]" {
		t.Errorf("CanonicalTypeName() = %q, want int32[]", got)
	}
}

func TestCanonicalTypeNameClass(t *testing.T) {
	c := &Class{Name: "Widget", Namespace: "Acme"}
	ref := ClassRefType(c)
	if got := ref.CanonicalTypeName(); got != "Acme.Widget" {
		t.Errorf("CanonicalTypeName() = %q, want Acme.Widget", got)
	}
}

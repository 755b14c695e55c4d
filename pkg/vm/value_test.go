package vm

import "testing"

func TestValuePredicatesAndAccessors(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		kind ValueKind
	}{
		{"null", Null, KindNull},
		{"int32", Int32(5), KindInt32},
		{"int64", Int64(5), KindInt64},
		{"float32", Float32(1.5), KindFloat32},
		{"float64", Float64(1.5), KindFloat64},
		{"bool", Bool(true), KindBool},
		{"string", String("hi"), KindString},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.v.Kind() != c.kind {
				t.Fatalf("Kind() = %v, want %v", c.v.Kind(), c.kind)
			}
		})
	}
}

func TestValueAsWrongKindFails(t *testing.T) {
	if _, err := Int32(1).AsString(); err == nil {
		t.Fatal("expected TypeMismatch error, got nil")
	}
}

func TestValueToBool(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null, false},
		{Int32(0), false},
		{Int32(1), true},
		{String(""), false},
		{String("x"), true},
		{Bool(false), false},
		{FromObject(nil), false},
	}
	for _, c := range cases {
		if got := c.v.ToBool(); got != c.want {
			t.Errorf("ToBool(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestValueToInt64Widening(t *testing.T) {
	if v, err := Float64(3.9).ToInt64(); err != nil || v != 3 {
		t.Fatalf("ToInt64() = %v, %v, want 3, nil", v, err)
	}
	if _, err := String("x").ToInt64(); err == nil {
		t.Fatal("expected TypeMismatch for string")
	}
}

func TestValueEqualIsIdentityForObjects(t *testing.T) {
	class := NewClass("X")
	a := class.CreateInstance()
	b := class.CreateInstance()
	if FromObject(a).Equal(FromObject(b)) {
		t.Fatal("distinct instances should not be Equal")
	}
	if !FromObject(a).Equal(FromObject(a)) {
		t.Fatal("same instance should be Equal to itself")
	}
}

func TestValueDisplayString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null, ""},
		{Int32(42), "42"},
		{Bool(true), "true"},
		{String("hey"), "hey"},
	}
	for _, c := range cases {
		if got := c.v.ToDisplayString(); got != c.want {
			t.Errorf("ToDisplayString(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

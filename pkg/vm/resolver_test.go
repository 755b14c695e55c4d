package vm

import (
	"testing"

	objerr "objectir/pkg/errors"
)

func method(name string, params ...TypeReference) *Method {
	m := NewMethod(name, PrimitiveRef(PrimVoid), true, false)
	for i, p := range params {
		m.AddParameter("p"+string(rune('0'+i)), p)
	}
	return m
}

func TestResolveOverloadOrThrowLegacyArityFallback(t *testing.T) {
	// No candidate's declared parameter type matches the requested type
	// text, but exactly one candidate shares the requested arity.
	candidates := []*Method{method("F", PrimitiveRef(PrimBool))}
	got, err := ResolveOverloadOrThrow(candidates, []string{"nonsense"})
	if err != nil {
		t.Fatalf("expected legacy arity fallback to succeed, got %v", err)
	}
	if got != candidates[0] {
		t.Fatalf("resolved to wrong candidate")
	}
}

func TestResolveOverloadOrThrowNoMatch(t *testing.T) {
	candidates := []*Method{method("F", PrimitiveRef(PrimInt32)), method("F", PrimitiveRef(PrimInt32), PrimitiveRef(PrimInt32))}
	_, err := ResolveOverloadOrThrow(candidates, []string{"a", "b", "c"})
	if !objerr.Is(err, objerr.NoMatchingOverload) {
		t.Fatalf("expected NoMatchingOverload, got %v", err)
	}
}

func TestResolveOverloadOrThrowNoCandidates(t *testing.T) {
	_, err := ResolveOverloadOrThrow(nil, nil)
	if !objerr.Is(err, objerr.MethodNotFound) {
		t.Fatalf("expected MethodNotFound, got %v", err)
	}
}

func TestCollectMethodsByNameAccumulatesAcrossBaseChain(t *testing.T) {
	base := NewClass("Base")
	baseF := method("F")
	base.AddMethod(baseF)
	derived := NewClass("Derived")
	derived.Base = base
	derivedF := method("F", PrimitiveRef(PrimInt32))
	derived.AddMethod(derivedF)

	got := CollectMethodsByName(derived, "F")
	if len(got) != 2 {
		t.Fatalf("expected methods named F from every level of the base chain, got %v", got)
	}
	if got[0] != derivedF || got[1] != baseF {
		t.Fatalf("expected [derivedF, baseF] in walk order, got %v", got)
	}
}

func TestTypeNameMatchesParameterLegacySuffix(t *testing.T) {
	if !typeNameMatchesParameter("MyNamespace.Foo", "Foo") {
		t.Error("expected an unqualified request to match a qualified declared type's simple name")
	}
	if typeNameMatchesParameter("Foo", "MyNamespace.Foo") {
		t.Error("spec §4.G sanctions only the unqualified-request direction, not the reverse")
	}
	if typeNameMatchesParameter("Foo", "Bar") {
		t.Error("unrelated names should not match")
	}
}

package vm

import (
	"strings"

	objerr "objectir/pkg/errors"
)

// CollectMethodsByName walks from class upward through its entire base
// chain and returns every method named name declared at any level.
func CollectMethodsByName(class *Class, name string) []*Method {
	var matches []*Method
	for cur := class; cur != nil; cur = cur.Base {
		for _, m := range cur.AllMethods() {
			if m.Name == name {
				matches = append(matches, m)
			}
		}
	}
	return matches
}

// staticMethodsOnly filters a candidate set down to static methods, the
// restriction `InvokeStatic` applies that `InvokeInstance` does not (§4.G).
func staticMethodsOnly(candidates []*Method) []*Method {
	var out []*Method
	for _, m := range candidates {
		if m.Static {
			out = append(out, m)
		}
	}
	return out
}

// typeNameMatchesParameter compares a declared parameter's canonical type
// name against a requested type name. Besides an exact match, it accepts
// the one-directional suffix affordance §4.G documents: an unqualified
// requested name matches a qualified declared type when the requested
// name equals the declared type's last dotted segment (e.g. "Foo" matches
// declared "MyNamespace.Foo") — never the reverse.
func typeNameMatchesParameter(declared, requested string) bool {
	if declared == requested {
		return true
	}
	return strings.HasSuffix(declared, "."+requested)
}

// ResolveOverloadOrThrow picks the single best candidate for a call site
// given its declared parameter types (§4.G):
//   - no parameter type info: succeeds only if there is exactly one
//     candidate, else AmbiguousOverload;
//   - otherwise: an exact arity + per-parameter type match wins if there
//     is exactly one; more than one exact match is AmbiguousOverload;
//   - failing any exact match, fall back to arity alone — succeeds only
//     if exactly one candidate shares the requested arity;
//   - otherwise NoMatchingOverload.
func ResolveOverloadOrThrow(candidates []*Method, parameterTypes []string) (*Method, error) {
	if len(candidates) == 0 {
		return nil, objerr.New(objerr.MethodNotFound, "no method found")
	}

	if len(parameterTypes) == 0 {
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		return nil, objerr.New(objerr.AmbiguousOverload, "ambiguous overload: no parameter type information and %d candidates", len(candidates))
	}

	var exact []*Method
	for _, m := range candidates {
		if len(m.Parameters) != len(parameterTypes) {
			continue
		}
		if methodSignatureMatches(m, parameterTypes) {
			exact = append(exact, m)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	if len(exact) > 1 {
		return nil, objerr.New(objerr.AmbiguousOverload, "ambiguous overload: %d exact signature matches", len(exact))
	}

	var byArity []*Method
	for _, m := range candidates {
		if len(m.Parameters) == len(parameterTypes) {
			byArity = append(byArity, m)
		}
	}
	if len(byArity) == 1 {
		return byArity[0], nil
	}

	return nil, objerr.New(objerr.NoMatchingOverload, "no overload matches %d argument(s)", len(parameterTypes))
}

func methodSignatureMatches(m *Method, parameterTypes []string) bool {
	for i, p := range m.Parameters {
		if !typeNameMatchesParameter(p.Type.CanonicalTypeName(), parameterTypes[i]) {
			return false
		}
	}
	return true
}

package vm

import "testing"

func TestClassRegistryAliasLookup(t *testing.T) {
	r := NewClassRegistry()
	c := NewClass("Widget")
	c.Namespace = "Acme"
	r.Register(c)

	for _, alias := range []string{"Widget", "Acme.Widget"} {
		got, err := r.Get(alias)
		if err != nil || got != c {
			t.Errorf("Get(%q) = %v, %v, want %v", alias, got, err, c)
		}
	}
}

func TestClassRegistryQualifiedMissRetriesSimpleName(t *testing.T) {
	r := NewClassRegistry()
	c := NewClass("Widget")
	r.Register(c)

	got, err := r.Get("SomeOtherNamespace.Widget")
	if err != nil || got != c {
		t.Errorf("Get with unregistered namespace prefix = %v, %v, want fallback to %v", got, err, c)
	}
}

func TestClassRegistryNotFound(t *testing.T) {
	r := NewClassRegistry()
	if _, err := r.Get("Missing"); err == nil {
		t.Fatal("expected ClassNotFound")
	}
}

func TestClassRegistryAllClassesDeduped(t *testing.T) {
	r := NewClassRegistry()
	c := NewClass("Widget")
	c.Namespace = "Acme"
	r.Register(c)

	classes := r.AllClasses()
	if len(classes) != 1 {
		t.Fatalf("AllClasses() returned %d entries, want 1 (registered under 2 aliases)", len(classes))
	}
}

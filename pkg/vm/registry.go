package vm

import (
	"sort"
	"strings"

	objerr "objectir/pkg/errors"
)

// ClassRegistry is a name-indexed class table with simple/raw/qualified
// alias lookup, exactly as the VM's loader-facing registration contract
// requires (§4.C).
type ClassRegistry struct {
	classes map[string]*Class
}

func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: map[string]*Class{}}
}

// Register inserts c under three aliases: its simple name (trailing
// segment after the last dot of c.Name), its raw stored Name, and its
// canonical qualified name.
func (r *ClassRegistry) Register(c *Class) {
	if c == nil {
		return
	}
	simple := c.Name
	if dot := strings.LastIndexByte(c.Name, '.'); dot >= 0 {
		simple = c.Name[dot+1:]
	}
	qualified := c.QualifiedName()

	if simple != "" {
		r.classes[simple] = c
	}
	if c.Name != "" {
		r.classes[c.Name] = c
	}
	if qualified != "" {
		r.classes[qualified] = c
	}
}

// Get looks up by any registered alias; if a qualified lookup misses and
// the name contains a dot, it retries with the trailing simple name.
func (r *ClassRegistry) Get(name string) (*Class, error) {
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		if c, ok := r.classes[name[dot+1:]]; ok {
			return c, nil
		}
	}
	return nil, objerr.New(objerr.ClassNotFound, "class not found: %s", name)
}

func (r *ClassRegistry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// AllClassNames returns a sorted, deduplicated list of every alias string
// registered (not deduplicated by underlying class identity — matching
// the original registry's alias-string enumeration).
func (r *ClassRegistry) AllClassNames() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AllClasses returns every distinct *Class registered, deduplicated by
// object identity (a class registered under three aliases appears once).
func (r *ClassRegistry) AllClasses() []*Class {
	seen := map[*Class]bool{}
	out := make([]*Class, 0, len(r.classes))
	// Stable order: walk aliases in sorted order so export output is
	// deterministic across runs.
	for _, name := range r.AllClassNames() {
		c := r.classes[name]
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

package vm

import (
	"sync/atomic"

	objerr "objectir/pkg/errors"
)

var nextObjectID atomic.Uint64

// Field is a name + declared type pair. Instance fields are not type
// checked at store time; the declared type is advisory only.
type Field struct {
	Name string
	Type TypeReference
}

// NativeMethod is the signature native method bodies implement: receiver
// (nil for static), arguments, and the owning VM for re-entrant calls.
type NativeMethod func(this *Object, args []Value, machine *VirtualMachine) (Value, error)

// Method holds a method's signature and at most one body form:
// instructions, a native implementation, or neither (an unimplemented
// stub). Setting one body clears the other.
type Method struct {
	Name       string
	ReturnType TypeReference
	Static     bool
	Virtual    bool
	Parameters []Field
	Locals     []Field

	instructions []Instruction
	labelMap     map[string]int
	native       NativeMethod
}

func NewMethod(name string, returnType TypeReference, static, virtual bool) *Method {
	return &Method{Name: name, ReturnType: returnType, Static: static, Virtual: virtual}
}

func (m *Method) AddParameter(name string, t TypeReference) { m.Parameters = append(m.Parameters, Field{name, t}) }
func (m *Method) AddLocal(name string, t TypeReference)     { m.Locals = append(m.Locals, Field{name, t}) }

// HasInstructions reports whether the method's body is an instruction list.
func (m *Method) HasInstructions() bool { return len(m.instructions) > 0 }

// HasNative reports whether the method's body is a native implementation.
func (m *Method) HasNative() bool { return m.native != nil }

// HasBody reports whether the method has either body form.
func (m *Method) HasBody() bool { return m.HasInstructions() || m.HasNative() }

func (m *Method) Instructions() []Instruction { return m.instructions }
func (m *Method) LabelMap() map[string]int    { return m.labelMap }
func (m *Method) Native() NativeMethod        { return m.native }

// SetInstructions replaces the method body atomically with an instruction
// list and its label map (the plugin patch path). Clears any native body.
func (m *Method) SetInstructions(instructions []Instruction, labelMap map[string]int) {
	m.instructions = instructions
	m.labelMap = labelMap
	m.native = nil
}

// SetNative installs a native implementation, clearing any instruction body.
func (m *Method) SetNative(fn NativeMethod) {
	m.native = fn
	m.instructions = nil
	m.labelMap = nil
}

// Class carries the reflective metadata for a type: fields, methods, an
// optional single base class, a structural interface set, and the
// abstract/sealed flags.
type Class struct {
	Name      string // simple or raw stored name, per the loader
	Namespace string
	Base      *Class
	Abstract  bool
	Sealed    bool

	fields     []*Field
	methods    []*Method
	interfaces []*Class
}

func NewClass(name string) *Class { return &Class{Name: name} }

func (c *Class) AddField(f *Field)  { c.fields = append(c.fields, f) }
func (c *Class) AddMethod(m *Method) { c.methods = append(c.methods, m) }
func (c *Class) AddInterface(i *Class) { c.interfaces = append(c.interfaces, i) }

func (c *Class) AllFields() []*Field   { return c.fields }
func (c *Class) AllMethods() []*Method { return c.methods }

// QualifiedName is namespace + "." + simple-name, or the simple name when
// the namespace is empty.
func (c *Class) QualifiedName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// GetField returns the field declared directly on this class, or nil.
func (c *Class) GetField(name string) *Field {
	for _, f := range c.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// GetMethod returns the method declared directly on this class matching
// name, ignoring parameter lists, or nil.
func (c *Class) GetMethod(name string) *Method {
	for _, m := range c.methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// LookupMethod returns the first method named name found walking this
// class then recursively its base class.
func (c *Class) LookupMethod(name string) *Method {
	if m := c.GetMethod(name); m != nil {
		return m
	}
	if c.Base != nil {
		return c.Base.LookupMethod(name)
	}
	return nil
}

// LookupField mirrors LookupMethod's recursion discipline for fields.
func (c *Class) LookupField(name string) *Field {
	if f := c.GetField(name); f != nil {
		return f
	}
	if c.Base != nil {
		return c.Base.LookupField(name)
	}
	return nil
}

// ImplementsInterface reports whether iface is in this class's structural
// interface set.
func (c *Class) ImplementsInterface(iface *Class) bool {
	for _, i := range c.interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

// IsSubclassOf walks the base-class chain upward, returning true if other
// is found (including other == c).
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Base {
		if cur == other {
			return true
		}
	}
	return false
}

// CreateInstance allocates an Object bound to c, with a null slot
// initialized for every field declared on c or any base class. Fields of
// the same name in derived and base classes share one flat slot: the
// derived declaration wins on read/write (see DESIGN.md, Open Question 1).
func (c *Class) CreateInstance() *Object {
	obj := &Object{class: c, fields: map[string]Value{}, id: nextObjectID.Add(1)}
	for cur := c; cur != nil; cur = cur.Base {
		for _, f := range cur.fields {
			if _, ok := obj.fields[f.Name]; !ok {
				obj.fields[f.Name] = Null
			}
		}
	}
	return obj
}

// Object is an instance of a Class: a flat field-name-to-Value mapping, an
// optional base-instance layer (kept for native-attachment layering; see
// SPEC_FULL.md "Weak back-edge note"), and an opaque native-data slot for
// standard-library objects such as file streams.
type Object struct {
	class        *Class
	baseInstance *Object
	fields       map[string]Value
	native       any
	id           uint64
}

func (o *Object) Class() *Class { return o.class }

func (o *Object) BaseInstance() *Object         { return o.baseInstance }
func (o *Object) SetBaseInstance(base *Object) { o.baseInstance = base }

func (o *Object) NativeData() any       { return o.native }
func (o *Object) SetNativeData(v any)   { o.native = v }

// GetField returns the field's slot, recursing into the base-instance
// layer when present, or fails with FieldNotFound.
func (o *Object) GetField(name string) (Value, error) {
	if v, ok := o.fields[name]; ok {
		return v, nil
	}
	if o.baseInstance != nil {
		return o.baseInstance.GetField(name)
	}
	return Null, objerr.New(objerr.FieldNotFound, "field not found: %s", name)
}

// SetField writes (or creates) the slot in this layer only, never
// consulting base layers.
func (o *Object) SetField(name string, v Value) {
	if o.fields == nil {
		o.fields = map[string]Value{}
	}
	o.fields[name] = v
}

// IsInstanceOf walks the class chain upward and also checks the interface
// set.
func (o *Object) IsInstanceOf(c *Class) bool {
	if o.class == nil {
		return false
	}
	if o.class.IsSubclassOf(c) {
		return true
	}
	for cur := o.class; cur != nil; cur = cur.Base {
		if cur.ImplementsInterface(c) {
			return true
		}
	}
	return false
}

// Array specializes Object with a fixed length and an element type. Get
// out of bounds returns null; Set out of bounds is a no-op (see
// DESIGN.md, Open Question 4).
type Array struct {
	*Object
	ElementType TypeReference
	elements    []Value
}

func NewArray(elementType TypeReference, length int32) *Array {
	if length < 0 {
		length = 0
	}
	return &Array{
		Object:      &Object{fields: map[string]Value{}, id: nextObjectID.Add(1)},
		ElementType: elementType,
		elements:    make([]Value, length),
	}
}

func (a *Array) Length() int32 { return int32(len(a.elements)) }

func (a *Array) GetElement(index int32) Value {
	if index < 0 || int(index) >= len(a.elements) {
		return Null
	}
	return a.elements[index]
}

func (a *Array) SetElement(index int32, v Value) {
	if index < 0 || int(index) >= len(a.elements) {
		return
	}
	a.elements[index] = v
}

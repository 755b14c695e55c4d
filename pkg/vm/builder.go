package vm

import objerr "objectir/pkg/errors"

// Builder is a fluent, stateful assembly API for constructing a VM's
// class table programmatically, ported from RuntimeBuilder. Unlike the
// original's exception-throwing chain, a malformed call sequence is
// recorded and surfaced once, from Build, rather than panicking mid-chain.
type Builder struct {
	machine *VirtualMachine

	currentClass  *Class
	currentMethod *Method
	err           error
}

func NewBuilder(opts ...Option) *Builder {
	return &Builder{machine: New(opts...)}
}

func (b *Builder) fail(kind objerr.Kind, format string, args ...any) {
	if b.err == nil {
		b.err = objerr.New(kind, format, args...)
	}
}

// Class starts a new class definition, registering it immediately so
// later Field/Method calls on this builder can reference it as a base or
// field type by name lookup against the registry.
func (b *Builder) Class(name string) *Builder {
	if b.err != nil {
		return b
	}
	b.currentClass = NewClass(name)
	b.machine.RegisterClass(b.currentClass)
	return b
}

// Extends sets the current class's base class by name.
func (b *Builder) Extends(baseName string) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentClass == nil {
		b.fail(objerr.ClassNotFound, "Extends called with no open class")
		return b
	}
	base, err := b.machine.Registry().Get(baseName)
	if err != nil {
		b.err = err
		return b
	}
	b.currentClass.Base = base
	return b
}

// Abstract/Sealed toggle the current class's flags.
func (b *Builder) Abstract() *Builder {
	if b.err == nil && b.currentClass != nil {
		b.currentClass.Abstract = true
	}
	return b
}

func (b *Builder) Sealed() *Builder {
	if b.err == nil && b.currentClass != nil {
		b.currentClass.Sealed = true
	}
	return b
}

// Field adds a field to the class currently open.
func (b *Builder) Field(name string, t TypeReference) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentClass == nil {
		b.fail(objerr.ClassNotFound, "Field called with no open class")
		return b
	}
	b.currentClass.AddField(&Field{Name: name, Type: t})
	return b
}

// Method opens a new method definition on the current class.
func (b *Builder) Method(name string, returnType TypeReference, static bool) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentClass == nil {
		b.fail(objerr.ClassNotFound, "Method called with no open class")
		return b
	}
	b.currentMethod = NewMethod(name, returnType, static, !static)
	return b
}

// Virtual overrides the default virtual-ness Method sets (static methods
// default to non-virtual, instance methods default to virtual).
func (b *Builder) Virtual(v bool) *Builder {
	if b.err == nil && b.currentMethod != nil {
		b.currentMethod.Virtual = v
	}
	return b
}

// Parameter appends a parameter to the method currently open.
func (b *Builder) Parameter(name string, t TypeReference) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentMethod == nil {
		b.fail(objerr.MethodNotFound, "Parameter called with no open method")
		return b
	}
	b.currentMethod.AddParameter(name, t)
	return b
}

// Local appends a declared local to the method currently open.
func (b *Builder) Local(name string, t TypeReference) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentMethod == nil {
		b.fail(objerr.MethodNotFound, "Local called with no open method")
		return b
	}
	b.currentMethod.AddLocal(name, t)
	return b
}

// Instructions installs a decoded instruction body on the method
// currently open.
func (b *Builder) Instructions(instructions []Instruction, labelMap map[string]int) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentMethod == nil {
		b.fail(objerr.MethodNotFound, "Instructions called with no open method")
		return b
	}
	b.currentMethod.SetInstructions(instructions, labelMap)
	return b
}

// NativeImpl installs a native body on the method currently open.
func (b *Builder) NativeImpl(impl NativeMethod) *Builder {
	if b.err != nil {
		return b
	}
	if b.currentMethod == nil {
		b.fail(objerr.MethodNotFound, "NativeImpl called with no open method")
		return b
	}
	b.currentMethod.SetNative(impl)
	return b
}

// EndMethod closes the method currently open, attaching it to the
// current class.
func (b *Builder) EndMethod() *Builder {
	if b.err != nil {
		return b
	}
	if b.currentMethod == nil {
		b.fail(objerr.MethodNotFound, "EndMethod called with no open method")
		return b
	}
	b.currentClass.AddMethod(b.currentMethod)
	b.currentMethod = nil
	return b
}

// EndClass closes the class currently open.
func (b *Builder) EndClass() *Builder {
	if b.err != nil {
		return b
	}
	if b.currentClass == nil {
		b.fail(objerr.ClassNotFound, "EndClass called with no open class")
		return b
	}
	b.currentClass = nil
	return b
}

// Build returns the assembled VM, or the first construction error
// encountered anywhere in the chain.
func (b *Builder) Build() (*VirtualMachine, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.machine, nil
}

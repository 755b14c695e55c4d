package vm

import (
	"encoding/json"
	"io"
	"os"

	objerr "objectir/pkg/errors"
)

// Plugin is the shutdown contract a loaded native plugin exposes to the
// VM; it lets pkg/pluginapi register a handle here without vm importing
// pluginapi (which in turn depends on vm for class/method metadata).
type Plugin interface {
	Shutdown() error
}

// VirtualMachine owns the class registry, the live call-context stack,
// the diagnostic/console output sink, and the set of loaded native
// plugins (§4.C, §4.G).
type VirtualMachine struct {
	registry *ClassRegistry
	output   io.Writer
	contexts []*ExecutionContext
	plugins  []Plugin
}

// Option configures a VirtualMachine at construction time.
type Option func(*VirtualMachine)

// WithOutput redirects Console.WriteLine output away from the default
// of os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(m *VirtualMachine) { m.output = w }
}

func New(opts ...Option) *VirtualMachine {
	m := &VirtualMachine{
		registry: NewClassRegistry(),
		output:   os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *VirtualMachine) Registry() *ClassRegistry { return m.registry }

// RegisterClass adds c to the registry under its simple, raw, and
// qualified aliases.
func (m *VirtualMachine) RegisterClass(c *Class) { m.registry.Register(c) }

// WriteOutput writes s to the configured output sink, ignoring any write
// error the way Console.WriteLine does in the original runtime.
func (m *VirtualMachine) WriteOutput(s string) {
	_, _ = io.WriteString(m.output, s)
}

// CreateObjectByName resolves name against the registry and allocates a
// new instance.
func (m *VirtualMachine) CreateObjectByName(name string) (*Object, error) {
	class, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return class.CreateInstance(), nil
}

// CreateObject allocates a new instance of an already-resolved class.
func (m *VirtualMachine) CreateObject(class *Class) *Object {
	return class.CreateInstance()
}

// PushContext/PopContext/CurrentContext expose the call stack so native
// methods that re-enter the VM (and plugin host calls) can see the
// caller's frame.
func (m *VirtualMachine) PushContext(ctx *ExecutionContext) { m.contexts = append(m.contexts, ctx) }

func (m *VirtualMachine) PopContext() {
	if len(m.contexts) == 0 {
		return
	}
	m.contexts = m.contexts[:len(m.contexts)-1]
}

func (m *VirtualMachine) CurrentContext() *ExecutionContext {
	if len(m.contexts) == 0 {
		return nil
	}
	return m.contexts[len(m.contexts)-1]
}

// InvokeStatic resolves and runs a static-call target against class. Only
// static methods are considered (§4.G); an instance overload of the same
// name never shadows or competes with the static one here.
func (m *VirtualMachine) InvokeStatic(class *Class, target CallTarget, args []Value) (Value, error) {
	candidates := staticMethodsOnly(CollectMethodsByName(class, target.Name))
	method, err := ResolveOverloadOrThrow(candidates, target.ParameterTypes)
	if err != nil {
		return Null, err
	}
	return m.InvokeMethod(method, nil, args)
}

// InvokeInstance resolves and runs a virtual-call target against obj's
// runtime class.
func (m *VirtualMachine) InvokeInstance(obj *Object, target CallTarget, args []Value) (Value, error) {
	if obj == nil {
		return Null, objerr.New(objerr.NoInstance, "callvirt on a null reference")
	}
	candidates := CollectMethodsByName(obj.Class(), target.Name)
	method, err := ResolveOverloadOrThrow(candidates, target.ParameterTypes)
	if err != nil {
		return Null, err
	}
	return m.InvokeMethod(method, obj, args)
}

// InvokeMethod runs method with the given receiver and arguments,
// dispatching to its native implementation if it has one, else pushing a
// fresh frame and running its instruction body.
func (m *VirtualMachine) InvokeMethod(method *Method, this *Object, args []Value) (Value, error) {
	if method == nil {
		return Null, objerr.New(objerr.MethodNotFound, "method is nil")
	}
	if method.HasNative() {
		return method.Native()(this, args, m)
	}
	if !method.HasInstructions() {
		return Null, objerr.New(objerr.Unimplemented, "method %s has no body", method.Name)
	}

	ctx := NewExecutionContext(method)
	ctx.SetThis(this)
	ctx.SetArguments(args)
	m.PushContext(ctx)
	defer m.PopContext()

	result, err := RunMethodBody(m, method.Instructions(), method.LabelMap(), ctx)
	if err != nil {
		return Null, err
	}
	if method.ReturnType.CanonicalTypeName() == "void" {
		return Null, nil
	}
	return result, nil
}

// RegisterPlugin records a loaded plugin so Shutdown can tear it down in
// reverse load order.
func (m *VirtualMachine) RegisterPlugin(p Plugin) { m.plugins = append(m.plugins, p) }

// Shutdown runs every registered plugin's Shutdown hook in reverse load
// order, best-effort: a failing plugin does not stop the rest from being
// torn down, but its error is returned (the last one wins) (§4.G).
func (m *VirtualMachine) Shutdown() error {
	var firstErr error
	for i := len(m.plugins) - 1; i >= 0; i-- {
		if err := m.plugins[i].Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.plugins = nil
	return firstErr
}

// ReplaceMethodInstructions swaps a directly-declared method's body for a
// freshly decoded instruction list, the live-patch path a loaded plugin
// drives through pkg/pluginapi (§4.H). Patches the single unique method of
// that name across the whole base chain; an overloaded name fails with
// AmbiguousOverload rather than silently patching the wrong candidate.
func (m *VirtualMachine) ReplaceMethodInstructions(className, methodName string, instructions []Instruction, labelMap map[string]int) error {
	class, err := m.registry.Get(className)
	if err != nil {
		return err
	}
	candidates := CollectMethodsByName(class, methodName)
	if len(candidates) == 0 {
		return objerr.New(objerr.MethodNotFound, "method not found: %s.%s", className, methodName)
	}
	if len(candidates) > 1 {
		return objerr.New(objerr.AmbiguousOverload, "ambiguous overload: %d methods named %s.%s", len(candidates), className, methodName)
	}
	candidates[0].SetInstructions(instructions, labelMap)
	return nil
}

// ReplaceMethodInstructionsBySignature disambiguates by parameter types
// before patching, for classes with overloaded methods of the same name.
func (m *VirtualMachine) ReplaceMethodInstructionsBySignature(className, methodName string, parameterTypes []string, instructions []Instruction, labelMap map[string]int) error {
	class, err := m.registry.Get(className)
	if err != nil {
		return err
	}
	for _, cand := range CollectMethodsByName(class, methodName) {
		if len(cand.Parameters) != len(parameterTypes) {
			continue
		}
		if methodSignatureMatches(cand, parameterTypes) {
			cand.SetInstructions(instructions, labelMap)
			return nil
		}
	}
	return objerr.New(objerr.NoMatchingOverload, "no overload of %s.%s matches the given signature", className, methodName)
}

// fieldMetadata and methodMetadata mirror the JSON export shape the
// loader's metadata introspection uses (§4.H).
type fieldMetadata struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type parameterMetadata struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type methodMetadata struct {
	Name         string              `json:"name"`
	ReturnType   string              `json:"returnType"`
	Static       bool                `json:"static"`
	Virtual      bool                `json:"virtual"`
	Parameters   []parameterMetadata `json:"parameters"`
	Locals       []parameterMetadata `json:"locals"`
	Instructions json.RawMessage     `json:"instructions,omitempty"`
}

type classMetadata struct {
	Name      string           `json:"name"`
	Namespace string           `json:"namespace"`
	Base      string           `json:"base,omitempty"`
	Abstract  bool             `json:"abstract"`
	Sealed    bool             `json:"sealed"`
	Fields    []fieldMetadata  `json:"fields"`
	Methods   []methodMetadata `json:"methods"`
}

// describeClass builds a class's metadata record. Both parameter and
// local types are exported in canonical form (DESIGN.md, Open Question
// 2) — a deliberate departure from the original's raw, unnormalized
// local-type text. When includeInstructions is set, every method with an
// IR body also carries its serialized instruction list (§4.H); native
// methods never do, since there is nothing to serialize.
func describeClass(c *Class, includeInstructions bool) (classMetadata, error) {
	meta := classMetadata{
		Name:      c.Name,
		Namespace: c.Namespace,
		Abstract:  c.Abstract,
		Sealed:    c.Sealed,
	}
	if c.Base != nil {
		meta.Base = c.Base.QualifiedName()
	}
	for _, f := range c.AllFields() {
		meta.Fields = append(meta.Fields, fieldMetadata{Name: f.Name, Type: f.Type.CanonicalTypeName()})
	}
	for _, method := range c.AllMethods() {
		mm := methodMetadata{
			Name:       method.Name,
			ReturnType: method.ReturnType.CanonicalTypeName(),
			Static:     method.Static,
			Virtual:    method.Virtual,
		}
		for _, p := range method.Parameters {
			mm.Parameters = append(mm.Parameters, parameterMetadata{Name: p.Name, Type: p.Type.CanonicalTypeName()})
		}
		for _, l := range method.Locals {
			mm.Locals = append(mm.Locals, parameterMetadata{Name: l.Name, Type: l.Type.CanonicalTypeName()})
		}
		if includeInstructions && method.HasInstructions() {
			raw, err := EncodeInstructions(method.Instructions())
			if err != nil {
				return classMetadata{}, err
			}
			mm.Instructions = raw
		}
		meta.Methods = append(meta.Methods, mm)
	}
	return meta, nil
}

// ExportClassMetadata serializes a single class's reflective metadata.
// includeInstructions gates the per-method instructions[] field (§4.H).
func (m *VirtualMachine) ExportClassMetadata(name string, includeInstructions bool) (string, error) {
	class, err := m.registry.Get(name)
	if err != nil {
		return "", err
	}
	meta, err := describeClass(class, includeInstructions)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(meta)
	if err != nil {
		return "", objerr.Wrap(objerr.Unimplemented, err, "failed to marshal class metadata")
	}
	return string(out), nil
}

// ExportMetadata serializes every registered class's metadata, in the
// registry's deterministic sorted-alias order (§4.H, SUPPLEMENTED
// FEATURES: whole-VM export).
func (m *VirtualMachine) ExportMetadata(includeInstructions bool) (string, error) {
	classes := m.registry.AllClasses()
	out := make([]classMetadata, 0, len(classes))
	for _, c := range classes {
		meta, err := describeClass(c, includeInstructions)
		if err != nil {
			return "", err
		}
		out = append(out, meta)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", objerr.Wrap(objerr.Unimplemented, err, "failed to marshal VM metadata")
	}
	return string(data), nil
}

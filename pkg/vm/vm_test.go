package vm

import (
	"encoding/json"
	"testing"

	objerr "objectir/pkg/errors"
)

func TestExportClassMetadataShape(t *testing.T) {
	machine := New()
	c := NewClass("Widget")
	c.Namespace = "Acme"
	c.AddField(&Field{Name: "x", Type: PrimitiveRef(PrimInt32)})
	m := NewMethod("Greet", PrimitiveRef(PrimString), false, true)
	m.AddParameter("name", PrimitiveRef(PrimString))
	m.AddLocal("tmp", PrimitiveRef(PrimInt32))
	c.AddMethod(m)
	machine.RegisterClass(c)

	out, err := machine.ExportClassMetadata("Widget", false)
	if err != nil {
		t.Fatalf("ExportClassMetadata: %v", err)
	}

	var parsed classMetadata
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if parsed.Name != "Widget" || parsed.Namespace != "Acme" {
		t.Errorf("parsed = %+v", parsed)
	}
	if len(parsed.Methods) != 1 || parsed.Methods[0].Locals[0].Type != "int32" {
		t.Errorf("expected locals exported in canonical form, got %+v", parsed.Methods)
	}
	if parsed.Methods[0].Instructions != nil {
		t.Errorf("instructions should be omitted when includeInstructions is false, got %s", parsed.Methods[0].Instructions)
	}
}

// TestExportClassMetadataIncludesInstructionsWhenRequested covers the
// §8 "JSON metadata roundtrip" property for component H's metadata export.
func TestExportClassMetadataIncludesInstructionsWhenRequested(t *testing.T) {
	machine := New()
	c := NewClass("Program")
	original := []Instruction{
		{Op: OpLdStr, HasConstant: true, ConstantType: "string", ConstantRaw: "Hello"},
		{Op: OpCall, CallTarget: &CallTarget{DeclaringType: "System.Console", Name: "WriteLine", ReturnType: "void", ParameterTypes: []string{"string"}}},
		{Op: OpRet},
	}
	main := NewMethod("Main", PrimitiveRef(PrimVoid), true, false)
	main.SetInstructions(original, nil)
	c.AddMethod(main)
	machine.RegisterClass(c)

	out, err := machine.ExportClassMetadata("Program", true)
	if err != nil {
		t.Fatalf("ExportClassMetadata: %v", err)
	}
	var parsed classMetadata
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if parsed.Methods[0].Instructions == nil {
		t.Fatal("expected instructions to be populated")
	}

	reparsed, err := DecodeInstructions(parsed.Methods[0].Instructions)
	if err != nil {
		t.Fatalf("DecodeInstructions on roundtripped export: %v", err)
	}
	if len(reparsed) != len(original) {
		t.Fatalf("got %d instructions, want %d", len(reparsed), len(original))
	}
	for i, instr := range reparsed {
		if instr.Op != original[i].Op {
			t.Errorf("instruction %d: op = %v, want %v", i, instr.Op, original[i].Op)
		}
	}
	if reparsed[0].ConstantRaw != "Hello" {
		t.Errorf("ldstr operand = %q, want %q", reparsed[0].ConstantRaw, "Hello")
	}
	if reparsed[1].CallTarget == nil || reparsed[1].CallTarget.Name != "WriteLine" {
		t.Errorf("call operand = %+v, want WriteLine", reparsed[1].CallTarget)
	}
}

func TestExportMetadataCoversEveryRegisteredClass(t *testing.T) {
	machine := New()
	machine.RegisterClass(NewClass("A"))
	machine.RegisterClass(NewClass("B"))

	out, err := machine.ExportMetadata(false)
	if err != nil {
		t.Fatalf("ExportMetadata: %v", err)
	}
	var parsed []classMetadata
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("len = %d, want 2", len(parsed))
	}
}

type fakePlugin struct {
	order  *[]string
	name   string
	failOn bool
}

func (p *fakePlugin) Shutdown() error {
	*p.order = append(*p.order, p.name)
	return nil
}

func TestVirtualMachineShutdownReverseOrder(t *testing.T) {
	machine := New()
	var order []string
	machine.RegisterPlugin(&fakePlugin{order: &order, name: "first"})
	machine.RegisterPlugin(&fakePlugin{order: &order, name: "second"})

	if err := machine.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("shutdown order = %v, want [second first]", order)
	}
}

func TestReplaceMethodInstructionsBySignature(t *testing.T) {
	machine := New()
	c := NewClass("Program")
	original := NewMethod("Main", PrimitiveRef(PrimVoid), true, false)
	original.SetInstructions([]Instruction{{Op: OpRet}}, nil)
	c.AddMethod(original)
	machine.RegisterClass(c)

	patched := []Instruction{
		{Op: OpLdStr, HasConstant: true, ConstantType: "string", ConstantRaw: "Patched"},
		{Op: OpCall, CallTarget: &CallTarget{DeclaringType: "System.Console", Name: "WriteLine", ReturnType: "void", ParameterTypes: []string{"string"}}},
		{Op: OpRet},
	}
	if err := machine.ReplaceMethodInstructionsBySignature("Program", "Main", nil, patched, nil); err != nil {
		t.Fatalf("ReplaceMethodInstructionsBySignature: %v", err)
	}
	if len(original.Instructions()) != 3 {
		t.Fatalf("method body was not replaced")
	}
}

// TestVoidMethodReturnsNullRegardlessOfResidualStack covers the §8
// invariant: a void method whose body leaves a value on the stack instead
// of (or in addition to) an explicit `ret` still yields null to the caller.
func TestVoidMethodReturnsNullRegardlessOfResidualStack(t *testing.T) {
	machine := New()
	c := NewClass("M")
	method := NewMethod("Leaky", PrimitiveRef(PrimVoid), true, false)
	method.SetInstructions([]Instruction{
		{Op: OpLdI4, OperandInt: 42},
	}, nil)
	c.AddMethod(method)
	machine.RegisterClass(c)

	result, err := machine.InvokeStatic(c, CallTarget{Name: "Leaky"}, nil)
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	if !result.IsNull() {
		t.Errorf("result = %v, want null", result)
	}
}

// TestInvokeStaticIgnoresInstanceOverload covers §4.G: InvokeStatic
// considers only static methods, even when an instance overload of the
// same name would otherwise be the sole resolvable candidate.
func TestInvokeStaticIgnoresInstanceOverload(t *testing.T) {
	machine := New()
	c := NewClass("M")
	instanceF := NewMethod("F", PrimitiveRef(PrimInt32), false, true)
	instanceF.SetNative(func(this *Object, args []Value, m *VirtualMachine) (Value, error) {
		return Int32(99), nil
	})
	c.AddMethod(instanceF)
	machine.RegisterClass(c)

	_, err := machine.InvokeStatic(c, CallTarget{Name: "F"}, nil)
	if err == nil {
		t.Fatal("expected InvokeStatic to fail when only an instance overload exists")
	}
	if !objerr.Is(err, objerr.MethodNotFound) {
		t.Errorf("expected MethodNotFound, got %v", err)
	}

	staticF := NewMethod("F", PrimitiveRef(PrimInt32), true, false)
	staticF.SetNative(func(this *Object, args []Value, m *VirtualMachine) (Value, error) {
		return Int32(1), nil
	})
	c.AddMethod(staticF)

	result, err := machine.InvokeStatic(c, CallTarget{Name: "F"}, nil)
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	if got, _ := result.AsInt32(); got != 1 {
		t.Errorf("result = %d, want the static overload's 1", got)
	}
}

// TestReplaceMethodInstructionsAmbiguousName covers spec §4.H: patching by
// bare name fails with AmbiguousOverload when the name is overloaded,
// rather than silently patching class.GetMethod's first declaration-order
// match.
func TestReplaceMethodInstructionsAmbiguousName(t *testing.T) {
	machine := New()
	c := NewClass("M")
	f1 := NewMethod("F", PrimitiveRef(PrimInt32), true, false)
	f1.AddParameter("v", PrimitiveRef(PrimInt32))
	f1.SetInstructions([]Instruction{{Op: OpRet}}, nil)
	f2 := NewMethod("F", PrimitiveRef(PrimInt32), true, false)
	f2.AddParameter("v", PrimitiveRef(PrimString))
	f2.SetInstructions([]Instruction{{Op: OpRet}}, nil)
	c.AddMethod(f1)
	c.AddMethod(f2)
	machine.RegisterClass(c)

	err := machine.ReplaceMethodInstructions("M", "F", []Instruction{{Op: OpLdI4, OperandInt: 1}, {Op: OpRet}}, nil)
	if !objerr.Is(err, objerr.AmbiguousOverload) {
		t.Fatalf("expected AmbiguousOverload, got %v", err)
	}
}

package vm

import (
	"strings"
	"testing"

	objerr "objectir/pkg/errors"
)

// TestHelloWorld covers scenario S1: ldstr, call Console.WriteLine(string),
// ret writes exactly "Hello\n" and the invocation itself returns null.
func TestHelloWorld(t *testing.T) {
	var out strings.Builder
	machine := New(WithOutput(&out))

	program := NewClass("Program")
	main := NewMethod("Main", PrimitiveRef(PrimVoid), true, false)
	main.SetInstructions([]Instruction{
		{Op: OpLdStr, HasConstant: true, ConstantType: "string", ConstantRaw: "Hello"},
		{Op: OpCall, CallTarget: &CallTarget{DeclaringType: "System.Console", Name: "WriteLine", ReturnType: "void", ParameterTypes: []string{"string"}}},
		{Op: OpRet},
	}, nil)
	program.AddMethod(main)
	machine.RegisterClass(program)

	result, err := machine.InvokeStatic(program, CallTarget{Name: "Main"}, nil)
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	if !result.IsNull() {
		t.Errorf("result = %v, want null", result)
	}
	if out.String() != "Hello\n" {
		t.Errorf("output = %q, want %q", out.String(), "Hello\n")
	}
}

// TestCountedLoop covers scenario S2: a binary-condition while whose
// setup loads (ldloc i, ldi4 10) sit immediately before it in the flat
// instruction list and must be replayed every iteration.
func TestCountedLoop(t *testing.T) {
	machine := New()

	m := NewClass("M")
	count := NewMethod("Count", PrimitiveRef(PrimInt32), true, false)
	count.AddLocal("i", PrimitiveRef(PrimInt32))
	count.SetInstructions([]Instruction{
		{Op: OpLdI4, OperandInt: 0},
		{Op: OpStLoc, Identifier: "i"},
		{Op: OpLdLoc, Identifier: "i"},
		{Op: OpLdI4, OperandInt: 10},
		{Op: OpWhile, While: &WhileData{
			Condition: Condition{Kind: ConditionBinary, ComparisonOp: OpClt},
			Body: []Instruction{
				{Op: OpLdLoc, Identifier: "i"},
				{Op: OpLdI4, OperandInt: 1},
				{Op: OpAdd},
				{Op: OpStLoc, Identifier: "i"},
			},
		}},
		{Op: OpLdLoc, Identifier: "i"},
		{Op: OpRet},
	}, nil)
	m.AddMethod(count)
	machine.RegisterClass(m)

	result, err := machine.InvokeStatic(m, CallTarget{Name: "Count"}, nil)
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	got, err := result.AsInt32()
	if err != nil || got != 10 {
		t.Fatalf("result = %v (%v), want int32(10)", result, err)
	}
}

// TestOverloadDispatch covers scenario S3: exact-signature resolution
// between two same-named static overloads, and AmbiguousOverload when no
// parameter type information is supplied.
func TestOverloadDispatch(t *testing.T) {
	machine := New()
	class := NewClass("M")

	fInt := NewMethod("F", PrimitiveRef(PrimInt32), true, false)
	fInt.AddParameter("v", PrimitiveRef(PrimInt32))
	fInt.SetNative(func(this *Object, args []Value, m *VirtualMachine) (Value, error) {
		return Int32(1), nil
	})
	fStr := NewMethod("F", PrimitiveRef(PrimInt32), true, false)
	fStr.AddParameter("v", PrimitiveRef(PrimString))
	fStr.SetNative(func(this *Object, args []Value, m *VirtualMachine) (Value, error) {
		return Int32(2), nil
	})
	class.AddMethod(fInt)
	class.AddMethod(fStr)
	machine.RegisterClass(class)

	strResult, err := machine.InvokeStatic(class, CallTarget{Name: "F", ParameterTypes: NormalizeTypeNames([]string{"System.String"})}, []Value{String("x")})
	if err != nil {
		t.Fatalf("string overload: %v", err)
	}
	if v, _ := strResult.AsInt32(); v != 2 {
		t.Errorf("string overload = %d, want 2", v)
	}

	intResult, err := machine.InvokeStatic(class, CallTarget{Name: "F", ParameterTypes: NormalizeTypeNames([]string{"int"})}, []Value{Int32(5)})
	if err != nil {
		t.Fatalf("int overload: %v", err)
	}
	if v, _ := intResult.AsInt32(); v != 1 {
		t.Errorf("int overload = %d, want 1", v)
	}

	_, err = machine.InvokeStatic(class, CallTarget{Name: "F"}, []Value{Int32(5)})
	if !objerr.Is(err, objerr.AmbiguousOverload) {
		t.Fatalf("expected AmbiguousOverload, got %v", err)
	}
}

// TestFieldOnThisFallback covers scenario S4: ldfld/stfld fall back to
// `this` when the operand stack has no explicit instance on top.
func TestFieldOnThisFallback(t *testing.T) {
	machine := New()
	b := NewClass("B")
	b.AddField(&Field{Name: "x", Type: PrimitiveRef(PrimInt32)})

	setMethod := NewMethod("Set", PrimitiveRef(PrimVoid), false, true)
	setMethod.AddParameter("v", PrimitiveRef(PrimInt32))
	setMethod.SetInstructions([]Instruction{
		{Op: OpLdArg, Identifier: "v"},
		{Op: OpStFld, FieldTarget: &FieldTarget{DeclaringType: "B", Name: "x"}},
		{Op: OpRet},
	}, nil)

	getMethod := NewMethod("Get", PrimitiveRef(PrimInt32), false, true)
	getMethod.SetInstructions([]Instruction{
		{Op: OpLdFld, FieldTarget: &FieldTarget{DeclaringType: "B", Name: "x"}},
		{Op: OpRet},
	}, nil)

	b.AddMethod(setMethod)
	b.AddMethod(getMethod)
	machine.RegisterClass(b)

	obj, err := machine.CreateObjectByName("B")
	if err != nil {
		t.Fatalf("CreateObjectByName: %v", err)
	}

	if _, err := machine.InvokeInstance(obj, CallTarget{Name: "Set"}, []Value{Int32(42)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	result, err := machine.InvokeInstance(obj, CallTarget{Name: "Get"}, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got, _ := result.AsInt32(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
}

// TestIntegerDivideByZero covers scenario S6: div by a zero integer
// divisor fails with DivideByZero without touching the output writer.
func TestIntegerDivideByZero(t *testing.T) {
	var out strings.Builder
	machine := New(WithOutput(&out))

	m := NewClass("M")
	method := NewMethod("Fail", PrimitiveRef(PrimInt32), true, false)
	method.SetInstructions([]Instruction{
		{Op: OpLdI4, OperandInt: 10},
		{Op: OpLdI4, OperandInt: 0},
		{Op: OpDiv},
		{Op: OpRet},
	}, nil)
	m.AddMethod(method)
	machine.RegisterClass(m)

	_, err := machine.InvokeStatic(m, CallTarget{Name: "Fail"}, nil)
	if !objerr.Is(err, objerr.DivideByZero) {
		t.Fatalf("expected DivideByZero, got %v", err)
	}
	if out.String() != "" {
		t.Errorf("output writer was touched: %q", out.String())
	}
}

func TestBranchOpcodesFlatList(t *testing.T) {
	machine := New()
	m := NewClass("M")
	method := NewMethod("Pick", PrimitiveRef(PrimInt32), true, false)
	// if 1 < 2 goto LABEL; push 0; ret; LABEL: push 1; ret
	method.SetInstructions([]Instruction{
		{Op: OpLdI4, OperandInt: 1},
		{Op: OpLdI4, OperandInt: 2},
		{Op: OpBlt, HasOperandInt: true, OperandInt: 5},
		{Op: OpLdI4, OperandInt: 0},
		{Op: OpRet},
		{Op: OpLdI4, OperandInt: 1},
		{Op: OpRet},
	}, nil)
	m.AddMethod(method)
	machine.RegisterClass(m)

	result, err := machine.InvokeStatic(m, CallTarget{Name: "Pick"}, nil)
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	if got, _ := result.AsInt32(); got != 1 {
		t.Errorf("result = %d, want 1", got)
	}
}

func TestStringConcatenationAdd(t *testing.T) {
	machine := New()
	m := NewClass("M")
	method := NewMethod("Concat", PrimitiveRef(PrimString), true, false)
	method.SetInstructions([]Instruction{
		{Op: OpLdStr, HasConstant: true, ConstantType: "string", ConstantRaw: "foo"},
		{Op: OpLdStr, HasConstant: true, ConstantType: "string", ConstantRaw: "bar"},
		{Op: OpAdd},
		{Op: OpRet},
	}, nil)
	m.AddMethod(method)
	machine.RegisterClass(m)

	result, err := machine.InvokeStatic(m, CallTarget{Name: "Concat"}, nil)
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	if got, _ := result.AsString(); got != "foobar" {
		t.Errorf("result = %q, want foobar", got)
	}
}

package vm

import (
	"errors"
	"strconv"
	"strings"

	objerr "objectir/pkg/errors"
)

// errBreakLoop and errContinueLoop are the non-local-exit signals `break`
// and `continue` raise; they unwind the nearest enclosing while body but
// never the frame itself (§9: "a small tri-state return... absorbed at
// the innermost loop").
var (
	errBreakLoop    = errors.New("break")
	errContinueLoop = errors.New("continue")
)

// RunMethodBody executes a flat instruction list in ctx, resolving branch
// targets against labelMap, and returns the method's result value
// following the ret / fall-off-the-end pop-or-null rule (§4.F).
func RunMethodBody(machine *VirtualMachine, instructions []Instruction, labelMap map[string]int, ctx *ExecutionContext) (Value, error) {
	resolveTarget := func(instr Instruction) (int, error) {
		var target int
		if instr.HasOperandInt {
			target = int(instr.OperandInt)
		} else if instr.OperandString != "" {
			if idx, ok := labelMap[instr.OperandString]; ok {
				return idx, nil
			}
			n, err := strconv.Atoi(instr.OperandString)
			if err != nil {
				return 0, objerr.New(objerr.BadBranchTarget, "branch target not found: %s", instr.OperandString)
			}
			target = n
		}
		if target < 0 || target >= len(instructions) {
			return 0, objerr.New(objerr.BadBranchTarget, "branch target out of range: %d", target)
		}
		return target, nil
	}

	ip := 0
	for ip < len(instructions) {
		instr := instructions[ip]

		if instr.Op == OpRet {
			v, err := ctx.Pop()
			if err != nil {
				return Null, nil
			}
			return v, nil
		}

		switch instr.Op {
		case OpBr:
			target, err := resolveTarget(instr)
			if err != nil {
				return Null, err
			}
			ip = target
			continue

		case OpBrTrue, OpBrFalse:
			v, err := ctx.Pop()
			if err != nil {
				return Null, err
			}
			cond := v.ToBool()
			if instr.Op == OpBrFalse {
				cond = !cond
			}
			if cond {
				target, err := resolveTarget(instr)
				if err != nil {
					return Null, err
				}
				ip = target
				continue
			}
			ip++
			continue

		case OpBeq, OpBne, OpBgt, OpBlt, OpBge, OpBle:
			right, err := ctx.Pop()
			if err != nil {
				return Null, err
			}
			left, err := ctx.Pop()
			if err != nil {
				return Null, err
			}
			cond, err := compareBranch(instr.Op, left, right)
			if err != nil {
				return Null, err
			}
			if cond {
				target, err := resolveTarget(instr)
				if err != nil {
					return Null, err
				}
				ip = target
				continue
			}
			ip++
			continue
		}

		if instr.Op == OpWhile && instr.While != nil && instr.While.Condition.Kind == ConditionBinary {
			if err := runBinaryConditionWhile(machine, instructions, ip, instr, ctx); err != nil {
				return Null, err
			}
			ip++
			continue
		}

		if err := execOne(machine, instr, ctx); err != nil {
			return Null, err
		}
		ip++
	}

	v, err := ctx.Pop()
	if err != nil {
		return Null, nil
	}
	return v, nil
}

// runBinaryConditionWhile implements the IR producer's two-stack-value-
// per-iteration convention: walk backward from ip-1 collecting contiguous
// pure-load instructions, then replay them at the start of every
// iteration before comparing (§4.F, §9 "Stateful binary condition").
func runBinaryConditionWhile(machine *VirtualMachine, instructions []Instruction, ip int, instr Instruction, ctx *ExecutionContext) error {
	var setup []Instruction
	idx := ip - 1
	for idx >= 0 && isLoadOpcode(instructions[idx].Op) {
		setup = append([]Instruction{instructions[idx]}, setup...)
		idx--
	}

	comparisonOp := instr.While.Condition.ComparisonOp
	for {
		for _, s := range setup {
			if err := execOne(machine, s, ctx); err != nil {
				return err
			}
		}

		right, err := ctx.Pop()
		if err != nil {
			return err
		}
		left, err := ctx.Pop()
		if err != nil {
			return err
		}
		ctx.Push(left)
		ctx.Push(right)

		if err := execComparison(comparisonOp, ctx); err != nil {
			return err
		}

		result, err := ctx.Pop()
		if err != nil {
			return err
		}
		if !result.ToBool() {
			return nil
		}

		if err := runBlock(machine, instr.While.Body, ctx); err != nil {
			if errors.Is(err, errBreakLoop) {
				return nil
			}
			if errors.Is(err, errContinueLoop) {
				continue
			}
			return err
		}
	}
}

// runBlock executes a structured block (an if-block or a non-binary
// while's body) as an ordinary instruction sequence: no branch
// resolution, since branches are a flat-top-level-list mechanism only
// (§4.F: nested Execute() rejects branch opcodes).
func runBlock(machine *VirtualMachine, block []Instruction, ctx *ExecutionContext) error {
	for _, instr := range block {
		if err := execOne(machine, instr, ctx); err != nil {
			return err
		}
	}
	return nil
}

// execOne runs a single instruction against ctx outside the top-level
// flat-list dispatcher: every opcode except the branch family and `ret`
// (both handled only by RunMethodBody).
func execOne(machine *VirtualMachine, instr Instruction, ctx *ExecutionContext) error {
	switch instr.Op {
	case OpNop:
		return nil

	case OpDup:
		v, err := ctx.Peek()
		if err != nil {
			return err
		}
		ctx.Push(v)
		return nil

	case OpPop:
		_, err := ctx.Pop()
		return err

	case OpLdArg:
		v, err := ctx.GetArgument(instr.Identifier)
		if err != nil {
			return err
		}
		ctx.Push(v)
		return nil

	case OpStArg:
		v, err := ctx.Pop()
		if err != nil {
			return err
		}
		return ctx.SetArgument(instr.Identifier, v)

	case OpLdLoc:
		v, err := ctx.GetLocal(instr.Identifier)
		if err != nil {
			return err
		}
		ctx.Push(v)
		return nil

	case OpStLoc:
		v, err := ctx.Pop()
		if err != nil {
			return err
		}
		return ctx.SetLocal(instr.Identifier, v)

	case OpLdFld:
		return execLdFld(instr, ctx)

	case OpStFld:
		return execStFld(instr, ctx)

	case OpLdCon, OpLdStr:
		v, err := constantValue(instr)
		if err != nil {
			return err
		}
		ctx.Push(v)
		return nil

	case OpLdI4:
		ctx.Push(Int32(instr.OperandInt))
		return nil
	case OpLdI8:
		ctx.Push(Int64(int64(instr.OperandInt)))
		return nil
	case OpLdR4:
		ctx.Push(Float32(float32(instr.OperandDouble)))
		return nil
	case OpLdR8:
		ctx.Push(Float64(instr.OperandDouble))
		return nil
	case OpLdTrue:
		ctx.Push(Bool(true))
		return nil
	case OpLdFalse:
		ctx.Push(Bool(false))
		return nil
	case OpLdNull:
		ctx.Push(Null)
		return nil

	case OpAdd:
		return execAdd(ctx)
	case OpSub:
		return execArith(ctx, func(a, b int32) int32 { return a - b }, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case OpMul:
		return execArith(ctx, func(a, b int32) int32 { return a * b }, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case OpDiv:
		return execDiv(ctx)
	case OpRem:
		return execRem(ctx)
	case OpNeg:
		return execNeg(ctx)

	case OpCeq, OpCne, OpClt, OpCle, OpCgt, OpCge:
		return execComparison(instr.Op, ctx)

	case OpRet:
		return nil // handled by RunMethodBody only; a no-op elsewhere

	case OpBr, OpBrTrue, OpBrFalse, OpBeq, OpBne, OpBgt, OpBlt, OpBge, OpBle:
		return objerr.New(objerr.UnsupportedOperation, "branch opcodes are only valid in a flat method body")

	case OpNewObj:
		if instr.OperandString == "" {
			return objerr.New(objerr.ClassNotFound, "newobj instruction missing type operand")
		}
		obj, err := machine.CreateObjectByName(instr.OperandString)
		if err != nil {
			return err
		}
		ctx.Push(FromObject(obj))
		return nil

	case OpCall, OpCallVirt:
		return execCall(machine, instr, ctx)

	case OpBreak:
		return errBreakLoop

	case OpContinue:
		return errContinueLoop

	case OpWhile:
		return execWhile(machine, instr, ctx)

	case OpIf:
		return execIf(machine, instr, ctx)

	case OpThrow:
		return objerr.New(objerr.UnhandledThrow, "unhandled throw")

	case OpCastClass, OpIsInst:
		return nil // decode-only no-ops; not part of this core's executor semantics

	case OpNewArr, OpLdElem, OpStElem, OpLdLen:
		return objerr.New(objerr.Unimplemented, "opcode not implemented by the executor")

	default:
		return objerr.New(objerr.BadOpcode, "unknown instruction opcode")
	}
}

func execLdFld(instr Instruction, ctx *ExecutionContext) error {
	fieldName := instr.OperandString
	if instr.FieldTarget != nil {
		fieldName = instr.FieldTarget.Name
	}
	if fieldName == "" {
		return objerr.New(objerr.FieldNotFound, "ldfld instruction missing field operand")
	}

	instance := ctx.This()
	if top, err := ctx.Pop(); err == nil {
		if obj, ok := asObjectOrNil(top); ok {
			instance = obj
		}
	}
	if instance == nil {
		return objerr.New(objerr.NoInstance, "ldfld requires an object instance on the stack or a valid this")
	}
	v, err := instance.GetField(fieldName)
	if err != nil {
		return err
	}
	ctx.Push(v)
	return nil
}

func execStFld(instr Instruction, ctx *ExecutionContext) error {
	fieldName := instr.OperandString
	if instr.FieldTarget != nil {
		fieldName = instr.FieldTarget.Name
	}
	if fieldName == "" {
		return objerr.New(objerr.FieldNotFound, "stfld instruction missing field operand")
	}

	value, err := ctx.Pop()
	if err != nil {
		return err
	}

	instance := ctx.This()
	if top, err := ctx.Pop(); err == nil {
		if obj, ok := asObjectOrNil(top); ok {
			instance = obj
		}
	}
	if instance == nil {
		return objerr.New(objerr.NoInstance, "stfld requires an object instance on the stack or a valid this")
	}
	instance.SetField(fieldName, value)
	return nil
}

// asObjectOrNil reports whether v holds a non-null object reference.
func asObjectOrNil(v Value) (*Object, bool) {
	if !v.IsObject() {
		return nil, false
	}
	obj, _ := v.AsObject()
	return obj, obj != nil
}

func constantValue(instr Instruction) (Value, error) {
	if instr.ConstantIsNull {
		return Null, nil
	}
	if instr.ConstantType != "" {
		switch NormalizeTypeName(instr.ConstantType) {
		case "string":
			return String(instr.ConstantRaw), nil
		case "bool":
			b := instr.ConstantBool
			if instr.ConstantRaw != "" {
				lower := strings.ToLower(instr.ConstantRaw)
				b = lower == "true" || lower == "1"
			}
			return Bool(b), nil
		case "int32":
			n, err := strconv.ParseInt(instr.ConstantRaw, 10, 32)
			if err != nil {
				return Null, objerr.Wrap(objerr.TypeMismatch, err, "bad int32 constant: %s", instr.ConstantRaw)
			}
			return Int32(int32(n)), nil
		case "int64":
			n, err := strconv.ParseInt(instr.ConstantRaw, 10, 64)
			if err != nil {
				return Null, objerr.Wrap(objerr.TypeMismatch, err, "bad int64 constant: %s", instr.ConstantRaw)
			}
			return Int64(n), nil
		case "float32":
			f, err := strconv.ParseFloat(instr.ConstantRaw, 32)
			if err != nil {
				return Null, objerr.Wrap(objerr.TypeMismatch, err, "bad float32 constant: %s", instr.ConstantRaw)
			}
			return Float32(float32(f)), nil
		case "float64":
			f, err := strconv.ParseFloat(instr.ConstantRaw, 64)
			if err != nil {
				return Null, objerr.Wrap(objerr.TypeMismatch, err, "bad float64 constant: %s", instr.ConstantRaw)
			}
			return Float64(f), nil
		}
	}
	if instr.ConstantBool {
		return Bool(true), nil
	}
	return String(instr.ConstantRaw), nil
}

func execWhile(machine *VirtualMachine, instr Instruction, ctx *ExecutionContext) error {
	if instr.While == nil {
		return objerr.New(objerr.BadOpcode, "while instruction missing metadata")
	}
	for {
		cond, err := evaluateCondition(machine, instr.While.Condition, ctx)
		if err != nil {
			return err
		}
		if !cond {
			return nil
		}
		if err := runBlock(machine, instr.While.Body, ctx); err != nil {
			if errors.Is(err, errBreakLoop) {
				return nil
			}
			if errors.Is(err, errContinueLoop) {
				continue
			}
			return err
		}
	}
}

func execIf(machine *VirtualMachine, instr Instruction, ctx *ExecutionContext) error {
	if instr.If == nil {
		return objerr.New(objerr.BadOpcode, "if instruction missing metadata")
	}
	cond, err := ctx.Pop()
	if err != nil {
		return err
	}
	if cond.ToBool() {
		return runBlock(machine, instr.If.Then, ctx)
	}
	if len(instr.If.Else) > 0 {
		return runBlock(machine, instr.If.Else, ctx)
	}
	return nil
}

func evaluateCondition(machine *VirtualMachine, cond Condition, ctx *ExecutionContext) (bool, error) {
	switch cond.Kind {
	case ConditionStack:
		v, err := ctx.Pop()
		if err != nil {
			return false, err
		}
		return v.ToBool(), nil

	case ConditionBinary:
		right, err := ctx.Pop()
		if err != nil {
			return false, err
		}
		left, err := ctx.Pop()
		if err != nil {
			return false, err
		}
		ctx.Push(left)
		ctx.Push(right)
		if err := execComparison(cond.ComparisonOp, ctx); err != nil {
			return false, err
		}
		result, err := ctx.Pop()
		if err != nil {
			return false, err
		}
		return result.ToBool(), nil

	case ConditionExpression:
		for _, instr := range cond.Expression {
			if err := execOne(machine, instr, ctx); err != nil {
				return false, err
			}
		}
		result, err := ctx.Pop()
		if err != nil {
			return false, err
		}
		return result.ToBool(), nil

	default:
		return false, objerr.New(objerr.BadOpcode, "unsupported condition kind")
	}
}

func execCall(machine *VirtualMachine, instr Instruction, ctx *ExecutionContext) error {
	if instr.CallTarget == nil {
		return objerr.New(objerr.MethodNotFound, "call instruction missing target metadata")
	}
	target := instr.CallTarget

	args := make([]Value, len(target.ParameterTypes))
	for i := len(args) - 1; i >= 0; i-- {
		v, err := ctx.Pop()
		if err != nil {
			return err
		}
		args[i] = v
	}

	isVoid := target.ReturnType == "" || target.ReturnType == "void"

	if target.DeclaringType == "System.Console" && target.Name == "WriteLine" {
		writeConsoleLine(machine, args)
		return nil
	}

	var result Value
	var err error
	if instr.Op == OpCallVirt {
		receiver, popErr := ctx.Pop()
		if popErr != nil {
			return popErr
		}
		obj, ok := asObjectOrNil(receiver)
		if !ok {
			return objerr.New(objerr.NoInstance, "callvirt requires an object instance on the stack")
		}
		result, err = machine.InvokeInstance(obj, *target, args)
	} else {
		class, classErr := machine.Registry().Get(target.DeclaringType)
		if classErr != nil {
			return classErr
		}
		result, err = machine.InvokeStatic(class, *target, args)
	}
	if err != nil {
		return err
	}
	if !isVoid {
		ctx.Push(result)
	}
	return nil
}

// writeConsoleLine implements the Console.WriteLine special case (§4.F,
// SUPPLEMENTED FEATURES): space-separated display strings, null as empty
// text, always newline-terminated, a bare newline for zero arguments.
func writeConsoleLine(machine *VirtualMachine, args []Value) {
	if len(args) == 0 {
		machine.WriteOutput("\n")
		return
	}
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		if !a.IsNull() {
			b.WriteString(a.ToDisplayString())
		}
	}
	b.WriteByte('\n')
	machine.WriteOutput(b.String())
}

func compareBranch(op OpCode, left, right Value) (bool, error) {
	switch op {
	case OpBeq:
		return compareEq(left, right)
	case OpBne:
		eq, err := compareEq(left, right)
		return !eq, err
	case OpBgt:
		return orderedCompare(left, right, func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b })
	case OpBlt:
		return orderedCompare(left, right, func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b })
	case OpBge:
		return orderedCompare(left, right, func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b })
	case OpBle:
		return orderedCompare(left, right, func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b })
	default:
		return false, objerr.New(objerr.BadOpcode, "not a branch comparison opcode")
	}
}

func compareEq(left, right Value) (bool, error) {
	if left.IsString() && right.IsString() {
		l, _ := left.AsString()
		r, _ := right.AsString()
		return l == r, nil
	}
	if left.IsBool() && right.IsBool() {
		l, _ := left.AsBool()
		r, _ := right.AsBool()
		return l == r, nil
	}
	if isInteger(left) && isInteger(right) {
		l, _ := left.ToInt64()
		r, _ := right.ToInt64()
		return l == r, nil
	}
	l, err := left.ToDouble()
	if err != nil {
		return false, err
	}
	r, err := right.ToDouble()
	if err != nil {
		return false, err
	}
	return l == r, nil
}

func orderedCompare(left, right Value, intCmp func(a, b int64) bool, floatCmp func(a, b float64) bool) (bool, error) {
	if isInteger(left) && isInteger(right) {
		l, _ := left.ToInt64()
		r, _ := right.ToInt64()
		return intCmp(l, r), nil
	}
	l, err := left.ToDouble()
	if err != nil {
		return false, err
	}
	r, err := right.ToDouble()
	if err != nil {
		return false, err
	}
	return floatCmp(l, r), nil
}

func isInteger(v Value) bool { return v.IsInt32() || v.IsInt64() }

// execAdd implements add's string-concatenation special case before
// falling back to the standard numeric widening rule.
func execAdd(ctx *ExecutionContext) error {
	b, err := ctx.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Pop()
	if err != nil {
		return err
	}
	if a.IsString() || b.IsString() {
		ctx.Push(String(a.ToDisplayString() + b.ToDisplayString()))
		return nil
	}
	return pushNumericWiden(ctx, a, b, func(x, y int32) int32 { return x + y }, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
}

func execArith(ctx *ExecutionContext, i32 func(a, b int32) int32, i64 func(a, b int64) int64, f64 func(a, b float64) float64) error {
	b, err := ctx.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Pop()
	if err != nil {
		return err
	}
	return pushNumericWiden(ctx, a, b, i32, i64, f64)
}

// pushNumericWiden implements §4.F's arithmetic widening rule: int32 if
// both sides are int32, else int64 if either side is int64, else float64.
func pushNumericWiden(ctx *ExecutionContext, a, b Value, i32 func(a, b int32) int32, i64 func(a, b int64) int64, f64 func(a, b float64) float64) error {
	if a.IsInt32() && b.IsInt32() {
		av, _ := a.AsInt32()
		bv, _ := b.AsInt32()
		ctx.Push(Int32(i32(av, bv)))
		return nil
	}
	if a.IsInt64() || b.IsInt64() {
		av, err := a.ToInt64()
		if err != nil {
			return err
		}
		bv, err := b.ToInt64()
		if err != nil {
			return err
		}
		ctx.Push(Int64(i64(av, bv)))
		return nil
	}
	av, err := a.ToDouble()
	if err != nil {
		return err
	}
	bv, err := b.ToDouble()
	if err != nil {
		return err
	}
	ctx.Push(Float64(f64(av, bv)))
	return nil
}

func execDiv(ctx *ExecutionContext) error {
	b, err := ctx.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Pop()
	if err != nil {
		return err
	}
	if (b.IsInt32() && mustInt32(b) == 0) || (b.IsInt64() && mustInt64(b) == 0) {
		return objerr.New(objerr.DivideByZero, "integer division by zero")
	}
	return pushNumericWiden(ctx, a, b, func(x, y int32) int32 { return x / y }, func(x, y int64) int64 { return x / y }, func(x, y float64) float64 { return x / y })
}

func execRem(ctx *ExecutionContext) error {
	b, err := ctx.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Pop()
	if err != nil {
		return err
	}
	if !isInteger(a) || !isInteger(b) {
		return objerr.New(objerr.UnsupportedOperation, "rem is only defined for integer operands")
	}
	if (b.IsInt32() && mustInt32(b) == 0) || (b.IsInt64() && mustInt64(b) == 0) {
		return objerr.New(objerr.DivideByZero, "integer remainder by zero")
	}
	if a.IsInt32() && b.IsInt32() {
		ctx.Push(Int32(mustInt32(a) % mustInt32(b)))
		return nil
	}
	av, _ := a.ToInt64()
	bv, _ := b.ToInt64()
	ctx.Push(Int64(av % bv))
	return nil
}

func execNeg(ctx *ExecutionContext) error {
	a, err := ctx.Pop()
	if err != nil {
		return err
	}
	switch {
	case a.IsInt32():
		ctx.Push(Int32(-mustInt32(a)))
	case a.IsInt64():
		ctx.Push(Int64(-mustInt64(a)))
	case a.IsFloat32():
		v, _ := a.AsFloat32()
		ctx.Push(Float32(-v))
	case a.IsFloat64():
		v, _ := a.AsFloat64()
		ctx.Push(Float64(-v))
	default:
		return objerr.New(objerr.TypeMismatch, "neg requires a numeric operand")
	}
	return nil
}

func mustInt32(v Value) int32 { i, _ := v.AsInt32(); return i }
func mustInt64(v Value) int64 { i, _ := v.AsInt64(); return i }

// execComparison implements ceq/cne/clt/cle/cgt/cge (§4.F): equality
// compares strings/bools directly and falls back to integer-else-float64;
// ordering comparisons never support strings or bools.
func execComparison(op OpCode, ctx *ExecutionContext) error {
	b, err := ctx.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Pop()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case OpCeq, OpCne:
		eq, cmpErr := compareEqOrBool(a, b)
		if cmpErr != nil {
			return cmpErr
		}
		result = eq
		if op == OpCne {
			result = !result
		}
	case OpClt:
		result, err = orderedCompare(a, b, func(x, y int64) bool { return x < y }, func(x, y float64) bool { return x < y })
	case OpCle:
		result, err = orderedCompare(a, b, func(x, y int64) bool { return x <= y }, func(x, y float64) bool { return x <= y })
	case OpCgt:
		result, err = orderedCompare(a, b, func(x, y int64) bool { return x > y }, func(x, y float64) bool { return x > y })
	case OpCge:
		result, err = orderedCompare(a, b, func(x, y int64) bool { return x >= y }, func(x, y float64) bool { return x >= y })
	default:
		return objerr.New(objerr.BadOpcode, "not a comparison opcode")
	}
	if err != nil {
		return err
	}
	ctx.Push(Bool(result))
	return nil
}

func compareEqOrBool(a, b Value) (bool, error) {
	if a.IsBool() && b.IsBool() {
		av, _ := a.AsBool()
		bv, _ := b.AsBool()
		return av == bv, nil
	}
	return compareEq(a, b)
}

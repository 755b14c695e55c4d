package vm

import (
	"encoding/json"
	"strconv"

	objerr "objectir/pkg/errors"
)

// canonicalOpCodeName is the reverse of opcodeAliases restricted to the
// one canonical spelling §6 lists for each opcode; EncodeInstructions uses
// it to write the opCode field back out.
var canonicalOpCodeName = map[OpCode]string{
	OpNop: "nop", OpDup: "dup", OpPop: "pop",

	OpLdArg: "ldarg", OpLdLoc: "ldloc", OpLdFld: "ldfld", OpLdCon: "ldcon", OpLdStr: "ldstr",
	OpLdI4: "ldi4", OpLdI8: "ldi8", OpLdR4: "ldr4", OpLdR8: "ldr8",
	OpLdTrue: "ldtrue", OpLdFalse: "ldfalse", OpLdNull: "ldnull",

	OpStLoc: "stloc", OpStFld: "stfld", OpStArg: "starg",

	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem", OpNeg: "neg",

	OpCeq: "ceq", OpCne: "cne", OpClt: "clt", OpCle: "cle", OpCgt: "cgt", OpCge: "cge",

	OpRet: "ret", OpBr: "br", OpBrTrue: "brtrue", OpBrFalse: "brfalse",
	OpBeq: "beq", OpBne: "bne", OpBgt: "bgt", OpBlt: "blt", OpBge: "bge", OpBle: "ble",

	OpIf: "if", OpWhile: "while", OpBreak: "break", OpContinue: "continue", OpThrow: "throw",

	OpNewObj: "newobj", OpCall: "call", OpCallVirt: "callvirt",
	OpCastClass: "castclass", OpIsInst: "isinst",

	OpNewArr: "newarr", OpLdElem: "ldelem", OpStElem: "stelem", OpLdLen: "ldlen",
}

// EncodeInstructions is the serializing half of the C ABI's instruction
// roundtrip (§4.H, §8 "JSON metadata roundtrip"): it renders a flat
// instruction list back into the same wire shape DecodeInstructions reads.
func EncodeInstructions(instructions []Instruction) (json.RawMessage, error) {
	nodes := make([]jsonInstruction, 0, len(instructions))
	for _, instr := range instructions {
		node, err := encodeOneInstruction(instr)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	out, err := json.Marshal(nodes)
	if err != nil {
		return nil, objerr.Wrap(objerr.Unimplemented, err, "failed to marshal instruction list")
	}
	return json.RawMessage(out), nil
}

func encodeOneInstruction(instr Instruction) (jsonInstruction, error) {
	name, ok := canonicalOpCodeName[instr.Op]
	if !ok {
		return jsonInstruction{}, objerr.New(objerr.BadOpcode, "unknown opcode value: %d", instr.Op)
	}
	node := jsonInstruction{OpCode: name}

	var operand any
	switch instr.Op {
	case OpLdArg, OpStArg:
		operand = struct {
			ArgumentName string `json:"argumentName"`
		}{instr.Identifier}

	case OpLdLoc, OpStLoc:
		operand = struct {
			LocalName string `json:"localName"`
		}{instr.Identifier}

	case OpLdFld, OpStFld:
		if instr.FieldTarget != nil {
			operand = struct {
				Field *FieldTarget `json:"field"`
			}{instr.FieldTarget}
		}

	case OpLdCon, OpLdStr:
		value, err := encodeConstantValue(instr)
		if err != nil {
			return jsonInstruction{}, err
		}
		operand = struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		}{instr.ConstantType, value}

	case OpCall, OpCallVirt:
		if instr.CallTarget != nil {
			operand = struct {
				Method *CallTarget `json:"method"`
			}{instr.CallTarget}
		}

	case OpNewObj:
		operand = struct {
			Type string `json:"type"`
		}{instr.OperandString}

	case OpBr, OpBrTrue, OpBrFalse, OpBeq, OpBne, OpBgt, OpBlt, OpBge, OpBle:
		if instr.HasOperandInt {
			operand = struct {
				Target int32 `json:"target"`
			}{instr.OperandInt}
		} else if instr.OperandString != "" {
			operand = struct {
				Target string `json:"target"`
			}{instr.OperandString}
		}

	case OpWhile:
		if instr.While != nil {
			body, err := encodeInstructionList(instr.While.Body)
			if err != nil {
				return jsonInstruction{}, err
			}
			condition, err := encodeCondition(instr.While.Condition)
			if err != nil {
				return jsonInstruction{}, err
			}
			operand = struct {
				Condition json.RawMessage   `json:"condition"`
				Body      []json.RawMessage `json:"body"`
			}{condition, body}
		}

	case OpIf:
		if instr.If != nil {
			thenBlock, err := encodeInstructionList(instr.If.Then)
			if err != nil {
				return jsonInstruction{}, err
			}
			elseBlock, err := encodeInstructionList(instr.If.Else)
			if err != nil {
				return jsonInstruction{}, err
			}
			operand = struct {
				ThenBlock []json.RawMessage `json:"thenBlock"`
				ElseBlock []json.RawMessage `json:"elseBlock"`
			}{thenBlock, elseBlock}
		}

	default:
		if instr.OperandString != "" {
			operand = instr.OperandString
		} else if instr.HasOperandInt {
			if instr.Op == OpLdR4 || instr.Op == OpLdR8 {
				operand = instr.OperandDouble
			} else {
				operand = instr.OperandInt
			}
		}
	}

	if operand == nil {
		return node, nil
	}
	raw, err := json.Marshal(operand)
	if err != nil {
		return jsonInstruction{}, objerr.Wrap(objerr.Unimplemented, err, "failed to marshal operand for %s", name)
	}
	node.Operand = raw
	return node, nil
}

func encodeInstructionList(instructions []Instruction) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(instructions))
	for _, instr := range instructions {
		node, err := encodeOneInstruction(instr)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(node)
		if err != nil {
			return nil, objerr.Wrap(objerr.Unimplemented, err, "failed to marshal nested instruction")
		}
		out = append(out, raw)
	}
	return out, nil
}

func encodeCondition(cond Condition) (json.RawMessage, error) {
	switch cond.Kind {
	case ConditionStack:
		return json.Marshal(struct {
			Kind string `json:"kind"`
		}{"stack"})
	case ConditionBinary:
		name, ok := canonicalOpCodeName[cond.ComparisonOp]
		if !ok {
			return nil, objerr.New(objerr.BadOpcode, "unknown comparison opcode value: %d", cond.ComparisonOp)
		}
		return json.Marshal(struct {
			Kind      string `json:"kind"`
			Operation string `json:"operation"`
		}{"binary", name})
	case ConditionExpression:
		var expr json.RawMessage
		if len(cond.Expression) == 1 {
			node, err := encodeOneInstruction(cond.Expression[0])
			if err != nil {
				return nil, err
			}
			raw, err := json.Marshal(node)
			if err != nil {
				return nil, objerr.Wrap(objerr.Unimplemented, err, "failed to marshal condition expression")
			}
			expr = raw
		}
		return json.Marshal(struct {
			Kind       string          `json:"kind"`
			Expression json.RawMessage `json:"expression,omitempty"`
		}{"expression", expr})
	default:
		return nil, objerr.New(objerr.BadOpcode, "unknown condition kind: %d", cond.Kind)
	}
}

// encodeConstantValue renders a decoded constant back to a JSON value,
// reversing decodeConstant's type-probing.
func encodeConstantValue(instr Instruction) (json.RawMessage, error) {
	if instr.ConstantIsNull {
		return json.RawMessage("null"), nil
	}
	switch NormalizeTypeName(instr.ConstantType) {
	case "bool":
		return json.Marshal(instr.ConstantBool)
	case "int32", "int64", "float32", "float64", "uint8":
		f, err := strconv.ParseFloat(instr.ConstantRaw, 64)
		if err != nil {
			return json.Marshal(instr.ConstantRaw)
		}
		return json.Marshal(f)
	default:
		return json.Marshal(instr.ConstantRaw)
	}
}

package vm

import (
	"encoding/json"
	"strconv"
	"strings"

	objerr "objectir/pkg/errors"
)

// ParseOpCode resolves a case-insensitive opcode spelling (including every
// alias listed in §6) to its canonical OpCode, failing with BadOpcode on
// an unrecognized string.
func ParseOpCode(raw string) (OpCode, error) {
	op, ok := opcodeAliases[normalizeOpCode(raw)]
	if !ok {
		return 0, objerr.New(objerr.BadOpcode, "unknown opcode: %s", raw)
	}
	return op, nil
}

// jsonInstruction mirrors the wire shape of one instruction node: an
// opCode string and an opcode-specific operand (any JSON value).
type jsonInstruction struct {
	OpCode  string          `json:"opCode"`
	Operand json.RawMessage `json:"operand"`
}

// DecodeInstructions decodes a JSON array of instruction nodes into a flat
// Instruction list. Unlike the original loader's silent-skip-on-error
// legacy affordance, this fails the whole list on the first decode error
// (see DESIGN.md, Open Question 3).
func DecodeInstructions(raw json.RawMessage) ([]Instruction, error) {
	var nodes []json.RawMessage
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, objerr.Wrap(objerr.BadOpcode, err, "instruction array is not a JSON array")
	}
	out := make([]Instruction, 0, len(nodes))
	for _, n := range nodes {
		instr, err := decodeOneInstruction(n)
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
	return out, nil
}

func decodeOneInstruction(raw json.RawMessage) (Instruction, error) {
	var node jsonInstruction
	if err := json.Unmarshal(raw, &node); err != nil {
		return Instruction{}, objerr.Wrap(objerr.BadOpcode, err, "malformed instruction node")
	}

	op, err := ParseOpCode(node.OpCode)
	if err != nil {
		return Instruction{}, err
	}
	instr := Instruction{Op: op}

	if len(node.Operand) == 0 || string(node.Operand) == "null" {
		return instr, nil
	}

	switch op {
	case OpLdArg, OpStArg:
		var operand struct {
			ArgumentName string `json:"argumentName"`
		}
		if err := json.Unmarshal(node.Operand, &operand); err == nil {
			instr.Identifier = operand.ArgumentName
		}

	case OpLdLoc, OpStLoc:
		var operand struct {
			LocalName string `json:"localName"`
		}
		if err := json.Unmarshal(node.Operand, &operand); err == nil {
			instr.Identifier = operand.LocalName
		}

	case OpLdFld, OpStFld:
		ft, err := decodeFieldTarget(node.Operand)
		if err != nil {
			return Instruction{}, err
		}
		if ft != nil {
			instr.FieldTarget = ft
			instr.OperandString = ft.Name
		}

	case OpLdCon, OpLdStr:
		instr.HasConstant = true
		if err := decodeConstant(node.Operand, &instr); err != nil {
			return Instruction{}, err
		}

	case OpCall, OpCallVirt:
		ct, err := decodeCallTarget(node.Operand)
		if err != nil {
			return Instruction{}, err
		}
		instr.CallTarget = ct

	case OpNewObj:
		var operand struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(node.Operand, &operand); err == nil {
			instr.OperandString = operand.Type
		}

	case OpBr, OpBrTrue, OpBrFalse, OpBeq, OpBne, OpBgt, OpBlt, OpBge, OpBle:
		if err := decodeBranchOperand(node.Operand, &instr); err != nil {
			return Instruction{}, err
		}

	case OpWhile:
		wd, err := decodeWhileData(node.Operand)
		if err != nil {
			return Instruction{}, err
		}
		instr.While = wd

	case OpIf:
		id, err := decodeIfData(node.Operand)
		if err != nil {
			return Instruction{}, err
		}
		instr.If = id

	default:
		decodeGenericOperand(node.Operand, &instr)
	}

	return instr, nil
}

func decodeFieldTarget(raw json.RawMessage) (*FieldTarget, error) {
	var wrapper struct {
		Field json.RawMessage `json:"field"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Field == nil {
		return nil, nil
	}

	var fieldStr string
	if err := json.Unmarshal(wrapper.Field, &fieldStr); err == nil {
		return splitFieldString(fieldStr), nil
	}

	var obj struct {
		DeclaringType string `json:"declaringType"`
		Name          string `json:"name"`
		Type          string `json:"type"`
	}
	if err := json.Unmarshal(wrapper.Field, &obj); err != nil {
		return nil, objerr.Wrap(objerr.BadOpcode, err, "malformed field operand")
	}
	return &FieldTarget{DeclaringType: obj.DeclaringType, Name: obj.Name, Type: obj.Type}, nil
}

func splitFieldString(fieldStr string) *FieldTarget {
	if dot := strings.LastIndexByte(fieldStr, '.'); dot >= 0 {
		return &FieldTarget{DeclaringType: fieldStr[:dot], Name: fieldStr[dot+1:]}
	}
	return &FieldTarget{Name: fieldStr}
}

func decodeConstant(raw json.RawMessage, instr *Instruction) error {
	var operand struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &operand); err != nil {
		return objerr.Wrap(objerr.BadOpcode, err, "malformed constant operand")
	}
	instr.ConstantType = operand.Type

	if len(operand.Value) == 0 {
		instr.ConstantIsNull = true
		return nil
	}
	switch string(operand.Value) {
	case "null":
		instr.ConstantIsNull = true
		return nil
	}

	var s string
	if err := json.Unmarshal(operand.Value, &s); err == nil {
		instr.ConstantRaw = s
		return nil
	}
	var b bool
	if err := json.Unmarshal(operand.Value, &b); err == nil {
		instr.ConstantBool = b
		if b {
			instr.ConstantRaw = "true"
		} else {
			instr.ConstantRaw = "false"
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(operand.Value, &f); err == nil {
		instr.ConstantRaw = strconv.FormatFloat(f, 'g', -1, 64)
		return nil
	}
	instr.ConstantIsNull = true
	return nil
}

func decodeCallTarget(raw json.RawMessage) (*CallTarget, error) {
	var wrapper struct {
		Method struct {
			DeclaringType  string   `json:"declaringType"`
			Name           string   `json:"name"`
			ReturnType     string   `json:"returnType"`
			ParameterTypes []string `json:"parameterTypes"`
		} `json:"method"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, objerr.Wrap(objerr.BadOpcode, err, "malformed call operand")
	}
	returnType := wrapper.Method.ReturnType
	if returnType == "" {
		returnType = "void"
	}
	return &CallTarget{
		DeclaringType:  wrapper.Method.DeclaringType,
		Name:           wrapper.Method.Name,
		ReturnType:     NormalizeTypeName(returnType),
		ParameterTypes: NormalizeTypeNames(wrapper.Method.ParameterTypes),
	}, nil
}

func decodeBranchOperand(raw json.RawMessage, instr *Instruction) error {
	var obj struct {
		Target json.RawMessage `json:"target"`
		Offset *int32          `json:"offset"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Target != nil || obj.Offset != nil) {
		if obj.Target != nil {
			var i int32
			if err := json.Unmarshal(obj.Target, &i); err == nil {
				instr.OperandInt = i
				instr.HasOperandInt = true
				return nil
			}
			var s string
			if err := json.Unmarshal(obj.Target, &s); err == nil {
				instr.OperandString = s
				return nil
			}
			instr.OperandInt = 0
			instr.HasOperandInt = true
			return nil
		}
		instr.OperandInt = *obj.Offset
		instr.HasOperandInt = true
		return nil
	}

	var i int32
	if err := json.Unmarshal(raw, &i); err == nil {
		instr.OperandInt = i
		instr.HasOperandInt = true
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		instr.OperandString = s
		return nil
	}
	return nil
}

func decodeWhileData(raw json.RawMessage) (*WhileData, error) {
	var obj struct {
		Condition json.RawMessage   `json:"condition"`
		Body      []json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, objerr.Wrap(objerr.BadOpcode, err, "while operand must be an object")
	}
	data := &WhileData{}
	if obj.Condition != nil {
		cond, err := decodeCondition(obj.Condition)
		if err != nil {
			return nil, err
		}
		data.Condition = cond
	}
	for _, b := range obj.Body {
		instr, err := decodeOneInstruction(b)
		if err != nil {
			return nil, err
		}
		data.Body = append(data.Body, instr)
	}
	return data, nil
}

func decodeIfData(raw json.RawMessage) (*IfData, error) {
	var obj struct {
		ThenBlock []json.RawMessage `json:"thenBlock"`
		ElseBlock []json.RawMessage `json:"elseBlock"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, objerr.Wrap(objerr.BadOpcode, err, "if operand must be an object")
	}
	data := &IfData{}
	for _, b := range obj.ThenBlock {
		instr, err := decodeOneInstruction(b)
		if err != nil {
			return nil, err
		}
		data.Then = append(data.Then, instr)
	}
	for _, b := range obj.ElseBlock {
		instr, err := decodeOneInstruction(b)
		if err != nil {
			return nil, err
		}
		data.Else = append(data.Else, instr)
	}
	return data, nil
}

func decodeCondition(raw json.RawMessage) (Condition, error) {
	var obj struct {
		Kind       string          `json:"kind"`
		Operation  string          `json:"operation"`
		Expression json.RawMessage `json:"expression"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Condition{}, objerr.Wrap(objerr.BadOpcode, err, "condition node must be an object")
	}

	cond := Condition{}
	switch obj.Kind {
	case "stack":
		cond.Kind = ConditionStack
	case "binary":
		cond.Kind = ConditionBinary
		op, err := ParseOpCode(obj.Operation)
		if err != nil {
			return Condition{}, err
		}
		cond.ComparisonOp = op
	case "expression":
		cond.Kind = ConditionExpression
		if obj.Expression != nil {
			instr, err := decodeOneInstruction(obj.Expression)
			if err != nil {
				return Condition{}, err
			}
			cond.Expression = append(cond.Expression, instr)
		}
	default:
		return Condition{}, objerr.New(objerr.BadOpcode, "unsupported condition kind: %s", obj.Kind)
	}
	return cond, nil
}

func decodeGenericOperand(raw json.RawMessage, instr *Instruction) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		instr.OperandString = s
		return
	}
	var i int32
	if err := json.Unmarshal(raw, &i); err == nil {
		instr.OperandInt = i
		instr.HasOperandInt = true
		return
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		instr.OperandDouble = f
		instr.HasOperandInt = true
	}
}

// BuildLabelMap derives a label→instruction-index map for a flat
// instruction list. The decoder itself does not emit labels (those are
// attached by the loader, out of scope per §1); this is provided so
// embedders constructing methods programmatically, or tests, can build
// one the same way the loader would.
func BuildLabelMap(labels map[string]int) map[string]int {
	out := make(map[string]int, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

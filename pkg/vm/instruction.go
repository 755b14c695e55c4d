package vm

// OpCode is the canonical opcode identity an Instruction carries; the
// decoder folds every alias in §6 down to one of these.
type OpCode uint8

const (
	OpNop OpCode = iota
	OpDup
	OpPop
	OpLdArg
	OpLdLoc
	OpLdFld
	OpLdCon
	OpLdStr
	OpLdI4
	OpLdI8
	OpLdR4
	OpLdR8
	OpLdTrue
	OpLdFalse
	OpLdNull
	OpStLoc
	OpStFld
	OpStArg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpCeq
	OpCne
	OpClt
	OpCle
	OpCgt
	OpCge
	OpRet
	OpBr
	OpBrTrue
	OpBrFalse
	OpBeq
	OpBne
	OpBgt
	OpBlt
	OpBge
	OpBle
	OpIf
	OpWhile
	OpBreak
	OpContinue
	OpThrow
	OpNewObj
	OpCall
	OpCallVirt
	OpCastClass
	OpIsInst
	OpNewArr
	OpLdElem
	OpStElem
	OpLdLen
)

var opcodeAliases = map[string]OpCode{
	"nop": OpNop,
	"dup": OpDup,
	"pop": OpPop,

	"ldarg": OpLdArg,
	"ldloc": OpLdLoc,
	"ldfld": OpLdFld,
	"ldcon": OpLdCon,
	"ldc":   OpLdCon,
	"ldstr": OpLdStr,

	"ldi4":   OpLdI4,
	"ldi32":  OpLdI4,
	"ldc.i4": OpLdI4,
	"ldi8":   OpLdI8,
	"ldi64":  OpLdI8,
	"ldc.i8": OpLdI8,
	"ldr4":   OpLdR4,
	"ldc.r4": OpLdR4,
	"ldr8":   OpLdR8,
	"ldc.r8": OpLdR8,

	"ldtrue":  OpLdTrue,
	"ldfalse": OpLdFalse,
	"ldnull":  OpLdNull,

	"stloc": OpStLoc,
	"stfld": OpStFld,
	"starg": OpStArg,

	"add": OpAdd,
	"sub": OpSub,
	"mul": OpMul,
	"div": OpDiv,
	"rem": OpRem,
	"neg": OpNeg,

	"ceq": OpCeq,
	"cne": OpCne,
	"clt": OpClt,
	"cle": OpCle,
	"cgt": OpCgt,
	"cge": OpCge,

	"ret": OpRet,
	"br":  OpBr,

	"brtrue":  OpBrTrue,
	"brfalse": OpBrFalse,

	"beq":    OpBeq,
	"beq.s":  OpBeq,
	"bne":    OpBne,
	"bne.un": OpBne,
	"bne.s":  OpBne,
	"bgt":    OpBgt,
	"bgt.s":  OpBgt,
	"bgt.un": OpBgt,
	"blt":    OpBlt,
	"blt.s":  OpBlt,
	"blt.un": OpBlt,
	"bge":    OpBge,
	"bge.s":  OpBge,
	"bge.un": OpBge,
	"ble":    OpBle,
	"ble.s":  OpBle,
	"ble.un": OpBle,

	"if":    OpIf,
	"while": OpWhile,

	"break":    OpBreak,
	"continue": OpContinue,
	"throw":    OpThrow,

	"newobj":    OpNewObj,
	"call":      OpCall,
	"callvirt":  OpCallVirt,
	"castclass": OpCastClass,
	"isinst":    OpIsInst,

	"newarr": OpNewArr,
	"ldelem": OpLdElem,
	"stelem": OpStElem,
	"ldlen":  OpLdLen,
}

// ConditionKind selects how a while/expression condition is evaluated.
type ConditionKind uint8

const (
	ConditionStack ConditionKind = iota
	ConditionBinary
	ConditionExpression
)

// Condition is the decoded form of a while-loop condition: stack (one
// boolean already on top), binary (pop right then left, apply
// ComparisonOp), or expression (run Expression, pop one boolean).
type Condition struct {
	Kind          ConditionKind
	ComparisonOp  OpCode
	Expression    []Instruction
}

// FieldTarget names a field: declaring type, field name, and declared
// type text.
type FieldTarget struct {
	DeclaringType string `json:"declaringType"`
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
}

// CallTarget names an overload: declaring type, method name, normalized
// return type, and normalized parameter types.
type CallTarget struct {
	DeclaringType  string   `json:"declaringType"`
	Name           string   `json:"name"`
	ReturnType     string   `json:"returnType,omitempty"`
	ParameterTypes []string `json:"parameterTypes,omitempty"`
}

// IfData carries the then/else instruction blocks of a structured `if`.
type IfData struct {
	Then []Instruction
	Else []Instruction
}

// WhileData carries the condition and body of a structured `while`.
type WhileData struct {
	Condition Condition
	Body      []Instruction
}

// Instruction carries an opcode and whichever operand slots that opcode
// uses; unused slots are left at their zero value.
type Instruction struct {
	Op OpCode

	Identifier string // ldarg/starg/ldloc/stloc name

	OperandInt    int32
	HasOperandInt bool
	OperandDouble float64

	HasConstant     bool
	ConstantType    string
	ConstantRaw     string
	ConstantBool    bool
	ConstantIsNull  bool

	FieldTarget *FieldTarget
	CallTarget  *CallTarget
	OperandString string // newobj type / branch label / generic fallback

	If    *IfData
	While *WhileData
}

// isLoadOpcode reports whether op is one of the pure-load opcodes the
// binary-condition while loop replays each iteration (§4.F).
func isLoadOpcode(op OpCode) bool {
	switch op {
	case OpLdLoc, OpLdCon, OpLdI4, OpLdI8, OpLdR4, OpLdR8, OpLdTrue, OpLdFalse, OpLdNull:
		return true
	default:
		return false
	}
}

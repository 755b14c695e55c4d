package vm

import objerr "objectir/pkg/errors"

// ExecutionContext is a per-invocation frame: an operand stack, a locals
// vector pre-sized by the method's declared local list, an arguments
// vector pre-sized by its parameter list, name-to-index maps for O(1)
// lookup, and the current `this` reference (null for static calls).
type ExecutionContext struct {
	method *Method

	stack     []Value
	locals    []Value
	arguments []Value
	this      *Object

	localIndex    map[string]int
	parameterIndex map[string]int
}

// NewExecutionContext constructs a frame for method, pre-sizing locals and
// arguments and building their name-to-index maps.
func NewExecutionContext(method *Method) *ExecutionContext {
	ctx := &ExecutionContext{
		method:         method,
		locals:         make([]Value, len(method.Locals)),
		arguments:      make([]Value, len(method.Parameters)),
		localIndex:     make(map[string]int, len(method.Locals)),
		parameterIndex: make(map[string]int, len(method.Parameters)),
	}
	for i, l := range method.Locals {
		ctx.localIndex[l.Name] = i
	}
	for i, p := range method.Parameters {
		ctx.parameterIndex[p.Name] = i
	}
	return ctx
}

func (c *ExecutionContext) Method() *Method { return c.method }

func (c *ExecutionContext) This() *Object       { return c.this }
func (c *ExecutionContext) SetThis(obj *Object) { c.this = obj }

func (c *ExecutionContext) SetArguments(args []Value) {
	if len(args) != len(c.arguments) {
		c.arguments = make([]Value, len(args))
	}
	copy(c.arguments, args)
}

// Push pushes v onto the operand stack.
func (c *ExecutionContext) Push(v Value) { c.stack = append(c.stack, v) }

// Pop removes and returns the top of the operand stack, failing with
// StackUnderflow if it is empty.
func (c *ExecutionContext) Pop() (Value, error) {
	if len(c.stack) == 0 {
		return Null, objerr.New(objerr.StackUnderflow, "operand stack underflow")
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v, nil
}

// Peek returns the top of the operand stack without removing it, failing
// with StackUnderflow if it is empty.
func (c *ExecutionContext) Peek() (Value, error) {
	if len(c.stack) == 0 {
		return Null, objerr.New(objerr.StackUnderflow, "operand stack underflow")
	}
	return c.stack[len(c.stack)-1], nil
}

// SetLocalIndex grows the locals vector to fit index if needed.
func (c *ExecutionContext) SetLocalIndex(index int, v Value) {
	if index >= len(c.locals) {
		grown := make([]Value, index+1)
		copy(grown, c.locals)
		c.locals = grown
	}
	c.locals[index] = v
}

// GetLocalIndex fails with OutOfRange past the end of the locals vector.
func (c *ExecutionContext) GetLocalIndex(index int) (Value, error) {
	if index < 0 || index >= len(c.locals) {
		return Null, objerr.New(objerr.OutOfRange, "local index out of range: %d", index)
	}
	return c.locals[index], nil
}

// SetLocal looks up name in the local map, failing with LocalNotFound on
// miss.
func (c *ExecutionContext) SetLocal(name string, v Value) error {
	idx, ok := c.localIndex[name]
	if !ok {
		return objerr.New(objerr.LocalNotFound, "local not found: %s", name)
	}
	c.SetLocalIndex(idx, v)
	return nil
}

func (c *ExecutionContext) GetLocal(name string) (Value, error) {
	idx, ok := c.localIndex[name]
	if !ok {
		return Null, objerr.New(objerr.LocalNotFound, "local not found: %s", name)
	}
	return c.GetLocalIndex(idx)
}

// GetArgumentIndex fails with OutOfRange past the end of the arguments
// vector.
func (c *ExecutionContext) GetArgumentIndex(index int) (Value, error) {
	if index < 0 || index >= len(c.arguments) {
		return Null, objerr.New(objerr.OutOfRange, "argument index out of range: %d", index)
	}
	return c.arguments[index], nil
}

// GetArgument resolves the reserved name "this" to the frame's current
// `this` reference (null for static methods), otherwise looks up name in
// the parameter map, failing with ArgumentNotFound on miss.
func (c *ExecutionContext) GetArgument(name string) (Value, error) {
	if name == "this" {
		return FromObject(c.this), nil
	}
	idx, ok := c.parameterIndex[name]
	if !ok {
		return Null, objerr.New(objerr.ArgumentNotFound, "argument not found: %s", name)
	}
	return c.GetArgumentIndex(idx)
}

// SetArgument mirrors GetArgument's lookup contract, growing the
// arguments vector if necessary.
func (c *ExecutionContext) SetArgument(name string, v Value) error {
	idx, ok := c.parameterIndex[name]
	if !ok {
		return objerr.New(objerr.ArgumentNotFound, "argument not found: %s", name)
	}
	if idx >= len(c.arguments) {
		grown := make([]Value, idx+1)
		copy(grown, c.arguments)
		c.arguments = grown
	}
	c.arguments[idx] = v
	return nil
}

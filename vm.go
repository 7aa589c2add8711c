// vm.go — the stack-based virtual machine that executes a compiled Module.
//
// Grounded on original_source/Bytecode/VirtualMachine.cpp's frame/eval-stack
// shape, but two corrections are load-bearing here (see DESIGN.md):
//
//   - callFunction never actually set pc to the callee's entry address in
//     the original (`// pc = getFunctionAddress(name);` is commented out),
//     so the compiled call path was never wired end to end. This VM does
//     the jump for real, using Module.Labels.
//   - Runtime errors never abort the program (spec.md §7): each opcode
//     handler that can fail produces a *RuntimeError, which the dispatch
//     loop reports to stderr and converts to a pushed `None`, continuing
//     execution exactly where it left off.
package g

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/g-lang/g/internal/glog"
)

type frame struct {
	vars     map[string]Value
	returnPC int
}

// VM is one execution of a compiled Module. It is a plain value, never
// shared across goroutines (spec.md §9 "Global mutable compiler state").
type VM struct {
	mod     *Module
	globals map[string]Value
	frames  []*frame
	stack   []Value
	pc      int
	halted  bool
	out     io.Writer
	in      *bufio.Reader
	log     *glog.Logger
}

// NewVM constructs a VM bound to out/in for print/scan/read, per spec.md
// §4.5's fixed `io` module.
func NewVM(mod *Module, out io.Writer, in io.Reader, log *glog.Logger) *VM {
	return &VM{
		mod:     mod,
		globals: map[string]Value{},
		out:     out,
		in:      bufio.NewReader(in),
		log:     log,
	}
}

func (m *VM) push(v Value) { m.stack = append(m.stack, v) }

func (m *VM) pop() Value {
	if len(m.stack) == 0 {
		return None
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *VM) curFrame() *frame {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

func (m *VM) setVar(name string, v Value) {
	if f := m.curFrame(); f != nil {
		f.vars[name] = v
		return
	}
	m.globals[name] = v
}

func (m *VM) getVar(name string) (Value, bool) {
	if f := m.curFrame(); f != nil {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	v, ok := m.globals[name]
	return v, ok
}

// Run executes the module to completion (HALT) or to a RET with no active
// frame, writing runtime error reports to stderr as they occur.
func (m *VM) Run(stderr io.Writer) Value {
	for m.pc < len(m.mod.Code) {
		result := m.step()
		if result != nil {
			PrintRuntimeError(stderr, result)
			m.push(None)
		}
		if m.halted {
			break
		}
	}
	if len(m.stack) == 0 {
		return None
	}
	return m.stack[len(m.stack)-1]
}

func (m *VM) step() *RuntimeError {
	instr := m.mod.Code[m.pc]
	m.pc++
	switch instr.Op {
	case OpLoadConst:
		m.push(m.mod.Constants[instr.IntOperand1])
	case OpLoadVar, OpLoadVal:
		v, ok := m.getVar(instr.StrOperand)
		if !ok {
			return &RuntimeError{Kind: ErrUndefinedName, Detail: instr.StrOperand}
		}
		m.push(v)
	case OpStoreVar, OpStoreVal:
		m.setVar(instr.StrOperand, m.pop())
	case OpLoadGlobalVar, OpLoadGlobalVal:
		v, ok := m.globals[instr.StrOperand]
		if !ok {
			return &RuntimeError{Kind: ErrUndefinedName, Detail: instr.StrOperand}
		}
		m.push(v)
	case OpStoreGlobalVar, OpStoreGlobalVal:
		m.globals[instr.StrOperand] = m.pop()

	case OpAllocArray:
		typeCode := m.pop()
		size := m.pop()
		if size.Kind != KindInt {
			return &RuntimeError{Kind: ErrTypeMismatch, Detail: "array size must be int"}
		}
		n := int(size.I)
		if n < 0 {
			return &RuntimeError{Kind: ErrBadIndex, Detail: "negative array size"}
		}
		def := TypeCodeToDefault(typeCode.I)
		els := make([]Value, n)
		for i := range els {
			els[i] = def
		}
		m.push(NewArray(els))
	case OpArrayGet:
		idx := m.pop()
		arr := m.pop()
		if arr.Kind != KindArray || idx.Kind != KindInt {
			return &RuntimeError{Kind: ErrTypeMismatch, Detail: "index requires array and int"}
		}
		if idx.I < 0 || int(idx.I) >= len(arr.Arr) {
			return &RuntimeError{Kind: ErrBadIndex, Detail: fmt.Sprintf("%d", idx.I)}
		}
		m.push(arr.Arr[idx.I])
	case OpArraySet:
		val := m.pop()
		idx := m.pop()
		arr := m.pop()
		if arr.Kind != KindArray || idx.Kind != KindInt {
			return &RuntimeError{Kind: ErrTypeMismatch, Detail: "index requires array and int"}
		}
		if idx.I < 0 || int(idx.I) >= len(arr.Arr) {
			return &RuntimeError{Kind: ErrBadIndex, Detail: fmt.Sprintf("%d", idx.I)}
		}
		updated := arr.Clone()
		updated.Arr[idx.I] = val
		m.push(updated)
	case OpArrayLen:
		arr := m.pop()
		if arr.Kind != KindArray {
			return &RuntimeError{Kind: ErrTypeMismatch, Detail: "len requires array"}
		}
		m.push(NewInt(int64(len(arr.Arr))))

	case OpMakeRange:
		step := m.pop()
		end := m.pop()
		start := m.pop()
		if !start.IsNumeric() || !end.IsNumeric() || !step.IsNumeric() {
			return &RuntimeError{Kind: ErrTypeMismatch, Detail: "range bounds must be numeric"}
		}
		m.push(NewRange(start.AsInt64(), end.AsInt64(), step.AsInt64()))
	case OpUnpackRange:
		rng := m.pop()
		if rng.Kind != KindRange {
			return &RuntimeError{Kind: ErrTypeMismatch, Detail: "for-in requires a range"}
		}
		m.push(NewInt(rng.Rng.Start))
		m.push(NewInt(rng.Rng.End))
		m.push(NewInt(rng.Rng.Step))

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		b := m.pop()
		a := m.pop()
		v, err := arithOp(instr.Op, a, b)
		if err != nil {
			return err
		}
		m.push(v)
	case OpLt, OpLe, OpGt, OpGe, OpEq, OpNe:
		b := m.pop()
		a := m.pop()
		v, err := compareOp(instr.Op, a, b)
		if err != nil {
			return err
		}
		m.push(v)
	case OpNot:
		m.push(NewBool(!m.pop().Truthy()))
	case OpSwap:
		b := m.pop()
		a := m.pop()
		m.push(b)
		m.push(a)

	case OpJmp:
		m.pc = instr.IntOperand1
	case OpJmpTrue:
		if m.pop().Truthy() {
			m.pc = instr.IntOperand1
		}
	case OpJmpFalse:
		if !m.pop().Truthy() {
			m.pc = instr.IntOperand1
		}

	case OpCall:
		return m.call(instr.StrOperand, instr.IntOperand1)
	case OpBuiltin:
		return m.callBuiltin(instr.StrOperand, instr.IntOperand1)
	case OpRet:
		retVal := m.pop()
		f := m.curFrame()
		if f == nil {
			m.push(retVal)
			m.halted = true
			return nil
		}
		m.pc = f.returnPC
		m.frames = m.frames[:len(m.frames)-1]
		m.push(retVal)

	case OpFormat:
		return m.format(instr.IntOperand1, instr.IntOperand2)
	case OpHalt:
		m.halted = true
	}
	return nil
}

// Out and In satisfy builtinHost (builtins.go) so callBuiltin can be shared
// verbatim between the VM and the tree-walking Interpreter.
func (m *VM) Out() io.Writer    { return m.out }
func (m *VM) In() *bufio.Reader { return m.in }

// arithOp and compareOp are free functions (not VM methods) so
// interpreter.go's evalBinary can call them directly via the same
// op-string-to-OpCode table the compiler uses (compiler.go's binaryOpcodes).
func arithOp(op OpCode, a, b Value) (Value, *RuntimeError) {
	if a.Kind == KindString && b.Kind == KindString && op == OpAdd {
		return NewString(a.S + b.S), nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return None, &RuntimeError{Kind: ErrTypeMismatch, Detail: "arithmetic requires numeric operands"}
	}
	bothInt := a.Kind == KindInt && b.Kind == KindInt
	switch op {
	case OpAdd:
		if bothInt {
			return NewInt(a.I + b.I), nil
		}
		return NewFloat(a.AsFloat64() + b.AsFloat64()), nil
	case OpSub:
		if bothInt {
			return NewInt(a.I - b.I), nil
		}
		return NewFloat(a.AsFloat64() - b.AsFloat64()), nil
	case OpMul:
		if bothInt {
			return NewInt(a.I * b.I), nil
		}
		return NewFloat(a.AsFloat64() * b.AsFloat64()), nil
	case OpDiv:
		if bothInt {
			if b.I == 0 {
				return None, &RuntimeError{Kind: ErrDivisionByZero}
			}
			return NewInt(a.I / b.I), nil
		}
		if b.AsFloat64() == 0 {
			return None, &RuntimeError{Kind: ErrDivisionByZero}
		}
		return NewFloat(a.AsFloat64() / b.AsFloat64()), nil
	case OpMod:
		if !bothInt {
			return NewFloat(math.Mod(a.AsFloat64(), b.AsFloat64())), nil
		}
		if b.I == 0 {
			return None, &RuntimeError{Kind: ErrModuloByZero}
		}
		return NewInt(a.I % b.I), nil
	}
	return None, &RuntimeError{Kind: ErrTypeMismatch, Detail: "unknown arithmetic opcode"}
}

func compareOp(op OpCode, a, b Value) (Value, *RuntimeError) {
	if op == OpEq {
		return NewBool(valuesEqual(a, b)), nil
	}
	if op == OpNe {
		return NewBool(!valuesEqual(a, b)), nil
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch op {
		case OpLt:
			return NewBool(a.S < b.S), nil
		case OpLe:
			return NewBool(a.S <= b.S), nil
		case OpGt:
			return NewBool(a.S > b.S), nil
		case OpGe:
			return NewBool(a.S >= b.S), nil
		}
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return None, &RuntimeError{Kind: ErrTypeMismatch, Detail: "comparison requires numeric or string operands"}
	}
	af, bf := a.AsFloat64(), b.AsFloat64()
	switch op {
	case OpLt:
		return NewBool(af < bf), nil
	case OpLe:
		return NewBool(af <= bf), nil
	case OpGt:
		return NewBool(af > bf), nil
	case OpGe:
		return NewBool(af >= bf), nil
	}
	return None, &RuntimeError{Kind: ErrTypeMismatch, Detail: "unknown comparison opcode"}
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		if a.IsNumeric() && b.IsNumeric() {
			return a.AsFloat64() == b.AsFloat64()
		}
		return false
	}
	switch a.Kind {
	case KindNone:
		return true
	case KindInt:
		return a.I == b.I
	case KindFloat:
		return a.F == b.F
	case KindBool:
		return a.B == b.B
	case KindString:
		return a.S == b.S
	case KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !valuesEqual(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// call implements CALL: bind argc popped values to synthetic p0..p{n-1} in
// a fresh frame (the compiled function prologue rebinds these to the
// declared parameter names; see compiler.go) and jump to the callee's
// recorded entry address.
func (m *VM) call(name string, argc int) *RuntimeError {
	entry, ok := m.mod.Labels[name]
	if !ok {
		return &RuntimeError{Kind: ErrNotCallable, Detail: name}
	}
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	f := &frame{vars: map[string]Value{}, returnPC: m.pc}
	for i, a := range args {
		f.vars[fmt.Sprintf("p%d", i)] = a
	}
	m.frames = append(m.frames, f)
	m.pc = entry
	m.log.Debug("call", "name", name, "argc", argc, "entry", entry)
	return nil
}

func (m *VM) callBuiltin(name string, argc int) *RuntimeError {
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	v, err := callBuiltin(m, name, args) // *VM satisfies builtinHost
	if err != nil {
		return err
	}
	m.push(v)
	return nil
}

func (m *VM) format(constIdx, n int) *RuntimeError {
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	raw := m.mod.Constants[constIdx].S
	result, err := renderFormat(raw, args)
	if err != nil {
		return err
	}
	m.push(NewString(result))
	return nil
}

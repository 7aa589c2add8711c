// interpreter.go — the tree-walking alternate executor. It gives the same
// results as compiler.go+vm.go (same Int/Float literal rule, same
// step-aware range direction, same value-copy-on-mutation array rule) by
// walking the AST directly instead of going through bytecode, for the
// `-interp` terminus (spec.md §1 "two termini").
//
// Grounded on original_source/Interpreter/Interpreter.cpp's visitor shape:
// one exec per Stmt, one eval per Expr, with return/break/continue
// propagated as explicit signals rather than exceptions, since a
// tree-walker has no fixed jump targets to patch the way the compiler does.
package g

import (
	"bufio"
	"fmt"
	"io"

	"github.com/g-lang/g/internal/glog"
)

type controlKind int

const (
	ctrlNone controlKind = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

type control struct {
	kind controlKind
	val  Value
}

// scope is one layer of local variables: callFunction starts a call with
// one, and every *Block pushes another. Top-level statements outside any
// block bind straight into globals.
type scope struct {
	vars map[string]Value
}

// Interpreter walks the AST directly. Like VM, it is a plain per-run value,
// never shared across goroutines.
type Interpreter struct {
	globals   map[string]Value
	scopes    []*scope
	functions map[string]*Function
	out       io.Writer
	in        *bufio.Reader
	log       *glog.Logger
}

// NewInterpreter constructs an Interpreter bound to out/in for print/scan/read.
func NewInterpreter(out io.Writer, in io.Reader, log *glog.Logger) *Interpreter {
	return &Interpreter{
		globals:   map[string]Value{},
		functions: map[string]*Function{},
		out:       out,
		in:        bufio.NewReader(in),
		log:       log,
	}
}

func (ip *Interpreter) Out() io.Writer    { return ip.out }
func (ip *Interpreter) In() *bufio.Reader { return ip.in }

func (ip *Interpreter) curScope() *scope {
	if len(ip.scopes) == 0 {
		return nil
	}
	return ip.scopes[len(ip.scopes)-1]
}

func (ip *Interpreter) pushScope() { ip.scopes = append(ip.scopes, &scope{vars: map[string]Value{}}) }
func (ip *Interpreter) popScope()  { ip.scopes = ip.scopes[:len(ip.scopes)-1] }

// declareVar binds name in the innermost active scope (or globals at
// module level), giving it a fresh slot distinct from any same-named
// binding further out on the scope chain (spec.md §8 scenario 6).
func (ip *Interpreter) declareVar(name string, v Value) {
	if s := ip.curScope(); s != nil {
		s.vars[name] = v
		return
	}
	ip.globals[name] = v
}

// assignVar mutates an existing binding, walking outward from the
// innermost scope to find it, rather than always writing to the
// innermost scope the way declareVar does.
func (ip *Interpreter) assignVar(name string, v Value) {
	for i := len(ip.scopes) - 1; i >= 0; i-- {
		if _, ok := ip.scopes[i].vars[name]; ok {
			ip.scopes[i].vars[name] = v
			return
		}
	}
	ip.globals[name] = v
}

func (ip *Interpreter) getVar(name string) (Value, bool) {
	for i := len(ip.scopes) - 1; i >= 0; i-- {
		if v, ok := ip.scopes[i].vars[name]; ok {
			return v, true
		}
	}
	v, ok := ip.globals[name]
	return v, ok
}

// Run registers every top-level function first (so forward references
// work, matching analyzer.go's two-pass registerTopLevel/checkStmt split),
// then executes every other top-level statement in order. Runtime errors
// are reported to stderr and execution continues (spec.md §7); only an
// explicit top-level return actually halts early.
func (ip *Interpreter) Run(prog *Program, stderr io.Writer) Value {
	for _, stmt := range prog.Statements {
		if fn, ok := stmt.(*Function); ok {
			ip.functions[fn.Name] = fn
		}
	}
	var last Value = None
	for _, stmt := range prog.Statements {
		if _, ok := stmt.(*Function); ok {
			continue
		}
		ctrl := ip.exec(stmt, stderr)
		last = None
		if ctrl.kind == ctrlReturn {
			last = ctrl.val
			break
		}
	}
	return last
}

func (ip *Interpreter) exec(stmt Stmt, stderr io.Writer) control {
	switch s := stmt.(type) {
	case *Import, *ModuleDecl, *Function:
		return control{}
	case *Declaration:
		return ip.execDeclaration(s, stderr)
	case *If:
		return ip.execIf(s, stderr)
	case *While:
		return ip.execWhile(s, stderr)
	case *ForIn:
		return ip.execForIn(s, stderr)
	case *CStyleFor:
		return ip.execCStyleFor(s, stderr)
	case *Return:
		var v Value = None
		if s.Value != nil {
			v = ip.eval(s.Value, stderr)
		}
		return control{kind: ctrlReturn, val: v}
	case *Break:
		return control{kind: ctrlBreak}
	case *Continue:
		return control{kind: ctrlContinue}
	case *ExpressionStatement:
		ip.eval(s.Expr, stderr)
		return control{}
	case *Block:
		ip.pushScope()
		defer ip.popScope()
		for _, st := range s.Statements {
			if ctrl := ip.exec(st, stderr); ctrl.kind != ctrlNone {
				return ctrl
			}
		}
		return control{}
	}
	return control{}
}

func (ip *Interpreter) execDeclaration(d *Declaration, stderr io.Writer) control {
	if at, ok := d.Type.(*ArrayType); ok {
		size := ip.eval(at.Size, stderr)
		n := 0
		if size.Kind == KindInt {
			n = int(size.I)
		}
		def := TypeCodeToDefault(TypeNameToCode(at.ElementName))
		els := make([]Value, n)
		for i := range els {
			els[i] = def
		}
		ip.declareVar(d.Name, NewArray(els))
		return control{}
	}
	var v Value = None
	if d.Initializer != nil {
		v = ip.eval(d.Initializer, stderr)
	}
	ip.declareVar(d.Name, v)
	return control{}
}

func (ip *Interpreter) execIf(s *If, stderr io.Writer) control {
	if ip.eval(s.Condition, stderr).Truthy() {
		return ip.exec(s.Then, stderr)
	}
	if s.Else != nil {
		return ip.exec(s.Else, stderr)
	}
	return control{}
}

func (ip *Interpreter) execWhile(s *While, stderr io.Writer) control {
	for ip.eval(s.Condition, stderr).Truthy() {
		ctrl := ip.exec(s.Body, stderr)
		if ctrl.kind == ctrlBreak {
			break
		}
		if ctrl.kind == ctrlReturn {
			return ctrl
		}
	}
	return control{}
}

// execForIn walks the range step-aware: ascending while step>0, descending
// while step<0. This is the tree-walking side of the same fix compiler.go's
// compileForIn applies to the bytecode path (the original always tested
// with `<`, so any descending range ran zero iterations).
func (ip *Interpreter) execForIn(s *ForIn, stderr io.Writer) control {
	rangeVal := ip.eval(s.Iterable, stderr)
	if rangeVal.Kind != KindRange {
		return control{}
	}
	start, end, step := rangeVal.Rng.Start, rangeVal.Rng.End, rangeVal.Rng.Step
	if step == 0 {
		return control{}
	}
	ip.pushScope()
	defer ip.popScope()
	ip.declareVar(s.LoopVar, NewInt(start))
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		ip.assignVar(s.LoopVar, NewInt(i))
		ctrl := ip.exec(s.Body, stderr)
		if ctrl.kind == ctrlBreak {
			break
		}
		if ctrl.kind == ctrlReturn {
			return ctrl
		}
	}
	return control{}
}

func (ip *Interpreter) execCStyleFor(s *CStyleFor, stderr io.Writer) control {
	ip.pushScope()
	defer ip.popScope()
	if s.Init != nil {
		ip.exec(s.Init, stderr)
	}
	for s.Cond == nil || ip.eval(s.Cond, stderr).Truthy() {
		ctrl := ip.exec(s.Body, stderr)
		if ctrl.kind == ctrlBreak {
			break
		}
		if ctrl.kind == ctrlReturn {
			return ctrl
		}
		if s.Step != nil {
			ip.exec(s.Step, stderr)
		}
	}
	return control{}
}

func (ip *Interpreter) eval(e Expr, stderr io.Writer) Value {
	switch v := e.(type) {
	case *NumberLiteral:
		if v.Value == float64(int64(v.Value)) {
			return NewInt(int64(v.Value))
		}
		return NewFloat(v.Value)
	case *StringLiteral:
		return NewString(v.Value)
	case *BooleanLiteral:
		return NewBool(v.Value)
	case *Identifier:
		if val, ok := ip.getVar(v.Name); ok {
			return val
		}
		ip.reportErr(stderr, &RuntimeError{Kind: ErrUndefinedName, Detail: v.Name})
		return None
	case *Grouped:
		return ip.eval(v.Inner, stderr)
	case *Unary:
		return ip.evalUnary(v, stderr)
	case *Binary:
		return ip.evalBinary(v, stderr)
	case *Call:
		return ip.evalCall(v, stderr)
	case *MemberAccess:
		return None
	case *Index:
		return ip.evalIndex(v, stderr)
	case *Range:
		return ip.evalRange(v, stderr)
	case *FormatString:
		return ip.evalFormat(v, stderr)
	}
	return None
}

func (ip *Interpreter) reportErr(stderr io.Writer, err *RuntimeError) {
	PrintRuntimeError(stderr, err)
}

func (ip *Interpreter) evalUnary(u *Unary, stderr io.Writer) Value {
	operand := ip.eval(u.Operand, stderr)
	switch u.Op {
	case "-":
		if operand.Kind == KindInt {
			return NewInt(-operand.I)
		}
		if operand.Kind == KindFloat {
			return NewFloat(-operand.F)
		}
		ip.reportErr(stderr, &RuntimeError{Kind: ErrTypeMismatch, Detail: "unary - requires numeric operand"})
		return None
	case "!":
		return NewBool(!operand.Truthy())
	default:
		return operand
	}
}

func (ip *Interpreter) evalBinary(b *Binary, stderr io.Writer) Value {
	switch b.Op {
	case "=":
		return ip.evalAssign(b, stderr)
	case "&&":
		if !ip.eval(b.Left, stderr).Truthy() {
			return NewBool(false)
		}
		return NewBool(ip.eval(b.Right, stderr).Truthy())
	case "||":
		if ip.eval(b.Left, stderr).Truthy() {
			return NewBool(true)
		}
		return NewBool(ip.eval(b.Right, stderr).Truthy())
	}
	left := ip.eval(b.Left, stderr)
	right := ip.eval(b.Right, stderr)
	op, ok := binaryOpcodes[b.Op]
	if !ok {
		ip.reportErr(stderr, &RuntimeError{Kind: ErrTypeMismatch, Detail: "unknown operator " + b.Op})
		return None
	}
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		v, err := arithOp(op, left, right)
		if err != nil {
			ip.reportErr(stderr, err)
			return None
		}
		return v
	case OpEq:
		return NewBool(valuesEqual(left, right))
	case OpNe:
		return NewBool(!valuesEqual(left, right))
	default:
		v, err := compareOp(op, left, right)
		if err != nil {
			ip.reportErr(stderr, err)
			return None
		}
		return v
	}
}

func (ip *Interpreter) evalAssign(b *Binary, stderr io.Writer) Value {
	val := ip.eval(b.Right, stderr)
	switch left := b.Left.(type) {
	case *Identifier:
		ip.assignVar(left.Name, val)
		return val
	case *Index:
		arr := ip.eval(left.Array, stderr)
		idx := ip.eval(left.Idx, stderr)
		if arr.Kind != KindArray || idx.Kind != KindInt {
			ip.reportErr(stderr, &RuntimeError{Kind: ErrTypeMismatch, Detail: "index assignment requires array and int"})
			return None
		}
		if idx.I < 0 || int(idx.I) >= len(arr.Arr) {
			ip.reportErr(stderr, &RuntimeError{Kind: ErrBadIndex, Detail: fmt.Sprintf("%d", idx.I)})
			return None
		}
		updated := arr.Clone()
		updated.Arr[idx.I] = val
		if ident, ok := left.Array.(*Identifier); ok {
			ip.assignVar(ident.Name, updated)
		}
		return val
	default:
		return val
	}
}

func (ip *Interpreter) evalIndex(ix *Index, stderr io.Writer) Value {
	arr := ip.eval(ix.Array, stderr)
	idx := ip.eval(ix.Idx, stderr)
	if arr.Kind != KindArray || idx.Kind != KindInt {
		ip.reportErr(stderr, &RuntimeError{Kind: ErrTypeMismatch, Detail: "index requires array and int"})
		return None
	}
	if idx.I < 0 || int(idx.I) >= len(arr.Arr) {
		ip.reportErr(stderr, &RuntimeError{Kind: ErrBadIndex, Detail: fmt.Sprintf("%d", idx.I)})
		return None
	}
	return arr.Arr[idx.I]
}

func (ip *Interpreter) evalRange(r *Range, stderr io.Writer) Value {
	vals := make([]int64, len(r.Args))
	for i, a := range r.Args {
		v := ip.eval(a, stderr)
		if v.Kind == KindInt {
			vals[i] = v.I
		} else if v.Kind == KindFloat {
			vals[i] = int64(v.F)
		}
	}
	step := int64(1)
	if len(vals) == 3 {
		step = vals[2]
	}
	return NewRange(vals[0], vals[1], step)
}

func (ip *Interpreter) evalFormat(fs *FormatString, stderr io.Writer) Value {
	template := formatTemplate(fs.Raw, fs.Placeholders)
	args := make([]Value, len(fs.Placeholders))
	for i, ph := range fs.Placeholders {
		args[i] = ip.eval(ph.Expr, stderr)
	}
	result, err := renderFormat(template, args)
	if err != nil {
		ip.reportErr(stderr, err)
		return NewString("")
	}
	return NewString(result)
}

func (ip *Interpreter) evalCall(c *Call, stderr io.Writer) Value {
	name := ""
	switch callee := c.Callee.(type) {
	case *Identifier:
		name = callee.Name
	case *MemberAccess:
		if obj, ok := callee.Object.(*Identifier); ok {
			name = obj.Name + "." + callee.Member
		}
	}
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = ip.eval(a, stderr)
	}
	if bn := builtinName(name); bn != "" {
		v, err := callBuiltin(ip, bn, args) // *Interpreter satisfies builtinHost
		if err != nil {
			ip.reportErr(stderr, err)
			return None
		}
		return v
	}
	bareName := name
	if idx := lastDot(name); idx >= 0 {
		bareName = name[idx+1:]
	}
	fn, ok := ip.functions[bareName]
	if !ok {
		ip.reportErr(stderr, &RuntimeError{Kind: ErrNotCallable, Detail: bareName})
		return None
	}
	return ip.callFunction(fn, args, stderr)
}

// callFunction binds args to the function's declared parameter names
// directly (a tree-walker needs no synthetic p0..p{n-1} staging; that
// dance in compiler.go/vm.go exists only because the compiled calling
// convention carries values across a frame boundary, not a Go call stack).
// The caller's scopes are set aside for the call, so, as with a VM frame,
// the body sees only its own locals and the globals.
func (ip *Interpreter) callFunction(fn *Function, args []Value, stderr io.Writer) Value {
	callerScopes := ip.scopes
	ip.scopes = nil
	ip.pushScope()
	defer func() { ip.scopes = callerScopes }()
	for i, param := range fn.Params {
		var v Value = None
		if i < len(args) {
			v = args[i]
		}
		ip.declareVar(param.Name, v)
	}
	for _, st := range fn.Body.Statements {
		ctrl := ip.exec(st, stderr)
		if ctrl.kind == ctrlReturn {
			return ctrl.val
		}
		if ctrl.kind != ctrlNone {
			break
		}
	}
	return None
}

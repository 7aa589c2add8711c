// compiler.go — lowers the AST to a Module (instructions + constant pool).
//
// Grounded on original_source/Bytecode/Compiler.cpp's visitor shape (one
// method per AST node, a running "current position" used for jump targets,
// enter/exitLoop bookkeeping) but with five corrections relative to a
// literal port, each required to make the compiled path actually runnable
// end to end (see DESIGN.md):
//
//  1. Function bodies are skipped with a JMP at their definition site. The
//     original compiles every function body inline with no such jump, so
//     falling off the end of one top-level statement runs straight into the
//     next function's body.
//  2. CALL's "p0, p1, ..." parameter binding (see vm.go) is reconciled with
//     bodies that reference their declared parameter names: the compiled
//     function prologue re-binds each pN to its real name.
//  3. break/continue targets are resolved by patching a pending-jump list
//     once the real loop-exit/continue address is known, rather than
//     capturing an address before the body (and its length) exist.
//  4. for-in stepping is step-aware (ascending test for step>0, descending
//     for step<0); see DESIGN.md Open Question on range direction.
//  5. Each block gets its own compile-time scope of name -> runtime-name
//     bindings; a declaration that shadows an enclosing one is given a
//     fresh runtime name instead of reusing the enclosing slot, so the
//     VM's otherwise flat per-frame variable map still gives block-level
//     shadowing (see DESIGN.md Open Question on shadowing).
package g

import "fmt"

// Module is the compiled output: instructions, a deduplicated constant
// pool, and a function-name -> entry-address table (spec.md §3).
type Module struct {
	Code      []Instruction
	Constants []Value
	Labels    map[string]int
}

func (m *Module) pos() int { return len(m.Code) }

func (m *Module) add(i Instruction) int {
	m.Code = append(m.Code, i)
	return len(m.Code) - 1
}

func (m *Module) patchJump(idx, target int) {
	m.Code[idx].IntOperand1 = target
}

// Disassemble renders the module as readable text, one instruction per
// line, prefixed with its address -- the Go counterpart of
// original_source/Bytecode/BytecodeModule.cpp's instruction printer,
// exposed behind `g -dump-bytecode` (SPEC_FULL.md §4).
func (m *Module) Disassemble() string {
	out := ""
	for i, instr := range m.Code {
		out += fmt.Sprintf("%4d  %s\n", i, instr.String())
	}
	return out
}

type loopCtx struct {
	continuePatches []int
	breakPatches    []int
}

// Compiler holds all per-compilation mutable state: the output module,
// per-scalar-kind constant dedup maps, and the loop-target stack. It is a
// value created fresh by Compile, never process-global (spec.md §9).
type Compiler struct {
	mod          *Module
	intConsts    map[int64]int
	floatConsts  map[float64]int
	boolConsts   map[bool]int
	stringConsts map[string]int
	noneIdx      int
	loops        []*loopCtx
	funcDepth    int
	scopes       []map[string]string
	shadowSeq    int
}

// pushScope/popScope/declareVar/resolveVar give every block its own layer of
// name -> runtime-variable-name bindings (grounded on symbol.go's
// scope-stack-of-maps design, the compile-time counterpart of the same
// shadowing rule). A name declared inside a nested block that already
// exists in an enclosing one gets a fresh runtime name instead of reusing
// the enclosing binding's slot, so the inner declaration cannot mutate the
// outer variable (spec.md §8 scenario 6).
func (c *Compiler) pushScope() { c.scopes = append(c.scopes, map[string]string{}) }
func (c *Compiler) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Compiler) resolveVar(name string) string {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if rn, ok := c.scopes[i][name]; ok {
			return rn
		}
	}
	return name
}

func (c *Compiler) declareVar(name string) string {
	top := len(c.scopes) - 1
	for i := top - 1; i >= 0; i-- {
		if _, ok := c.scopes[i][name]; ok {
			c.shadowSeq++
			unique := fmt.Sprintf("%s$%d", name, c.shadowSeq)
			c.scopes[top][name] = unique
			return unique
		}
	}
	c.scopes[top][name] = name
	return name
}

// loadVarOp/storeVarOp pick between the module-scope and function-local
// variable opcodes based on compile-time nesting. There are no closures in
// this language (spec.md §9 "Closure depth"): a function body's parameters
// and declarations live in its own frame, and it reaches module-level
// variables only through the global map (LOAD_VAR falls back to it, see
// vm.go's getVar; compileAssignment writes them with STORE_GLOBAL_VAR).
// Module-scope code uses the global opcodes directly. This is also what gives
// LOAD_GLOBAL_VAR/STORE_GLOBAL_VAR (present in OpCode.hpp but never emitted
// by the original compiler) an actual role — see DESIGN.md.
func (c *Compiler) loadVarOp() OpCode {
	if c.funcDepth > 0 {
		return OpLoadVar
	}
	return OpLoadGlobalVar
}

func (c *Compiler) storeVarOp(kw DeclKeyword) OpCode {
	if c.funcDepth > 0 {
		if kw == DeclVar {
			return OpStoreVar
		}
		return OpStoreVal
	}
	if kw == DeclVar {
		return OpStoreGlobalVar
	}
	return OpStoreGlobalVal
}

// Compile lowers prog to a Module, appending a trailing HALT.
func Compile(prog *Program) *Module {
	c := &Compiler{
		mod:          &Module{Labels: map[string]int{}},
		intConsts:    map[int64]int{},
		floatConsts:  map[float64]int{},
		boolConsts:   map[bool]int{},
		stringConsts: map[string]int{},
		noneIdx:      -1,
		scopes:       []map[string]string{{}},
	}
	c.compileStmtList(prog.Statements)
	c.emitOp(OpHalt)
	return c.mod
}

func (c *Compiler) emit(i Instruction) int { return c.mod.add(i) }
func (c *Compiler) emitOp(op OpCode) int   { return c.emit(Instruction{Op: op}) }
func (c *Compiler) emitInt(op OpCode, n int) int {
	return c.emit(Instruction{Op: op, IntOperand1: n, HasInt1: true})
}
func (c *Compiler) emitStr(op OpCode, s string) int {
	return c.emit(Instruction{Op: op, StrOperand: s, HasStr: true})
}
func (c *Compiler) emitIntStr(op OpCode, n int, s string) int {
	return c.emit(Instruction{Op: op, IntOperand1: n, HasInt1: true, StrOperand: s, HasStr: true})
}
func (c *Compiler) emitIntInt(op OpCode, a, b int) int {
	return c.emit(Instruction{Op: op, IntOperand1: a, HasInt1: true, IntOperand2: b, HasInt2: true})
}
func (c *Compiler) emitJump(op OpCode) int {
	pos := c.mod.pos()
	c.emitInt(op, 0)
	return pos
}
func (c *Compiler) patchJump(idx int) { c.mod.patchJump(idx, c.mod.pos()) }

func (c *Compiler) addIntConst(v int64) int {
	if idx, ok := c.intConsts[v]; ok {
		return idx
	}
	idx := len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, NewInt(v))
	c.intConsts[v] = idx
	return idx
}
func (c *Compiler) addFloatConst(v float64) int {
	if idx, ok := c.floatConsts[v]; ok {
		return idx
	}
	idx := len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, NewFloat(v))
	c.floatConsts[v] = idx
	return idx
}
func (c *Compiler) addBoolConst(v bool) int {
	if idx, ok := c.boolConsts[v]; ok {
		return idx
	}
	idx := len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, NewBool(v))
	c.boolConsts[v] = idx
	return idx
}
func (c *Compiler) addStringConst(v string) int {
	if idx, ok := c.stringConsts[v]; ok {
		return idx
	}
	idx := len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, NewString(v))
	c.stringConsts[v] = idx
	return idx
}
func (c *Compiler) addNoneConst() int {
	if c.noneIdx >= 0 {
		return c.noneIdx
	}
	c.noneIdx = len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, None)
	return c.noneIdx
}

func (c *Compiler) pushLoop()    { c.loops = append(c.loops, &loopCtx{}) }
func (c *Compiler) popLoop()     { c.loops = c.loops[:len(c.loops)-1] }
func (c *Compiler) curLoop() *loopCtx {
	if len(c.loops) == 0 {
		return nil
	}
	return c.loops[len(c.loops)-1]
}
func (c *Compiler) patchContinues(target int) {
	lp := c.curLoop()
	if lp == nil {
		return
	}
	for _, idx := range lp.continuePatches {
		c.mod.patchJump(idx, target)
	}
	lp.continuePatches = nil
}
func (c *Compiler) patchBreaks(target int) {
	lp := c.curLoop()
	if lp == nil {
		return
	}
	for _, idx := range lp.breakPatches {
		c.mod.patchJump(idx, target)
	}
}

func (c *Compiler) compileStmtList(stmts []Stmt) {
	for _, s := range stmts {
		c.compileStmt(s)
	}
}

func (c *Compiler) compileStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Import, *ModuleDecl:
		// Neither the compiler nor the VM needs module bookkeeping: calls
		// are resolved by bare name, and only the two fixed modules exist.
	case *Function:
		c.compileFunction(s)
	case *Declaration:
		c.compileDeclaration(s)
	case *If:
		c.compileIf(s)
	case *While:
		c.compileWhile(s)
	case *ForIn:
		c.compileForIn(s)
	case *CStyleFor:
		c.compileCStyleFor(s)
	case *Return:
		c.compileReturn(s)
	case *Break:
		idx := c.emitJump(OpJmp)
		if lp := c.curLoop(); lp != nil {
			lp.breakPatches = append(lp.breakPatches, idx)
		}
	case *Continue:
		idx := c.emitJump(OpJmp)
		if lp := c.curLoop(); lp != nil {
			lp.continuePatches = append(lp.continuePatches, idx)
		}
	case *ExpressionStatement:
		c.compileExpr(s.Expr)
	case *Block:
		c.pushScope()
		c.compileStmtList(s.Statements)
		c.popScope()
	}
}

func (c *Compiler) compileFunction(fn *Function) {
	skipJump := c.emitJump(OpJmp)
	entry := c.mod.pos()
	c.mod.Labels[fn.Name] = entry
	c.funcDepth++
	savedScopes := c.scopes
	c.scopes = []map[string]string{{}}
	for i, param := range fn.Params {
		c.emitStr(OpLoadVar, fmt.Sprintf("p%d", i))
		c.emitStr(OpStoreVar, c.declareVar(param.Name))
	}
	c.compileStmtList(fn.Body.Statements)
	if len(c.mod.Code) == 0 || c.mod.Code[len(c.mod.Code)-1].Op != OpRet {
		c.emitInt(OpLoadConst, c.addNoneConst())
		c.emitOp(OpRet)
	}
	c.scopes = savedScopes
	c.funcDepth--
	c.patchJump(skipJump)
}

func (c *Compiler) compileDeclaration(d *Declaration) {
	if at, ok := d.Type.(*ArrayType); ok {
		c.compileExpr(at.Size)
		c.emitInt(OpLoadConst, c.addIntConst(TypeNameToCode(at.ElementName)))
		c.emitOp(OpAllocArray)
		c.emitStr(c.storeVarOp(d.Keyword), c.declareVar(d.Name))
		return
	}
	if d.Initializer != nil {
		c.compileExpr(d.Initializer)
	} else {
		c.emitInt(OpLoadConst, c.addNoneConst())
	}
	c.emitStr(c.storeVarOp(d.Keyword), c.declareVar(d.Name))
}

func (c *Compiler) compileIf(s *If) {
	c.compileExpr(s.Condition)
	elseJump := c.emitJump(OpJmpFalse)
	c.compileStmt(s.Then)
	if s.Else != nil {
		endJump := c.emitJump(OpJmp)
		c.patchJump(elseJump)
		c.compileStmt(s.Else)
		c.patchJump(endJump)
	} else {
		c.patchJump(elseJump)
	}
}

func (c *Compiler) compileWhile(s *While) {
	loopStart := c.mod.pos()
	c.compileExpr(s.Condition)
	exitJump := c.emitJump(OpJmpFalse)
	c.pushLoop()
	c.pushScope()
	c.compileStmtList(s.Body.Statements)
	c.popScope()
	c.patchContinues(loopStart)
	c.emitInt(OpJmp, loopStart)
	c.patchJump(exitJump)
	c.patchBreaks(c.mod.pos())
	c.popLoop()
}

// compileForIn lowers `for x in range(a, b, step)`. The condition test is
// step-aware: the original_source compiler always emits an unconditional
// LT, which produces zero iterations for any descending range -- see
// spec.md §8's explicit `range(5, 0, -1)` boundary case. `_asc` is computed
// once per loop entry from the sign of the step.
func (c *Compiler) compileForIn(s *ForIn) {
	load := c.loadVarOp()
	store := c.storeVarOp(DeclVar)

	c.pushScope()
	loopVar := c.declareVar(s.LoopVar)

	// s.Iterable is either a literal `*Range` or an `*Identifier` bound to
	// one (spec.md's `for i in r` form) -- compileExpr always leaves a
	// single composite Range value on the stack either way, so UNPACK_RANGE
	// is the one place that needs to know its (start, end, step) layout.
	// The synthetic locals carry the loop nesting depth, so an inner for-in
	// does not overwrite its enclosing loop's end and step.
	sfx := fmt.Sprintf("$%d", len(c.loops))
	stepVar, endVar, ascVar := "_step"+sfx, "_end"+sfx, "_asc"+sfx

	c.compileExpr(s.Iterable)
	c.emitOp(OpUnpackRange) // pushes start, end, step (step on top)
	c.emitStr(store, stepVar)
	c.emitStr(store, endVar)
	c.emitStr(store, loopVar)

	c.emitStr(load, stepVar)
	c.emitInt(OpLoadConst, c.addIntConst(0))
	c.emitOp(OpGt)
	c.emitStr(store, ascVar)

	loopStart := c.mod.pos()
	c.emitStr(load, ascVar)
	descJump := c.emitJump(OpJmpFalse)
	c.emitStr(load, loopVar)
	c.emitStr(load, endVar)
	c.emitOp(OpLt)
	toCondEnd := c.emitJump(OpJmp)
	c.patchJump(descJump)
	c.emitStr(load, loopVar)
	c.emitStr(load, endVar)
	c.emitOp(OpGt)
	c.patchJump(toCondEnd)

	exitJump := c.emitJump(OpJmpFalse)
	c.pushLoop()
	c.compileStmtList(s.Body.Statements)
	stepAddr := c.mod.pos()
	c.patchContinues(stepAddr)
	c.emitStr(load, loopVar)
	c.emitStr(load, stepVar)
	c.emitOp(OpAdd)
	c.emitStr(store, loopVar)
	c.emitInt(OpJmp, loopStart)
	c.patchJump(exitJump)
	c.patchBreaks(c.mod.pos())
	c.popLoop()
	c.popScope()
}

func (c *Compiler) compileCStyleFor(s *CStyleFor) {
	c.pushScope()
	if s.Init != nil {
		c.compileStmt(s.Init)
	}
	loopStart := c.mod.pos()
	hasCond := s.Cond != nil
	var exitJump int
	if hasCond {
		c.compileExpr(s.Cond)
		exitJump = c.emitJump(OpJmpFalse)
	}
	c.pushLoop()
	c.compileStmtList(s.Body.Statements)
	stepAddr := c.mod.pos()
	c.patchContinues(stepAddr)
	if s.Step != nil {
		c.compileStmt(s.Step)
	}
	c.emitInt(OpJmp, loopStart)
	if hasCond {
		c.patchJump(exitJump)
	}
	c.patchBreaks(c.mod.pos())
	c.popLoop()
	c.popScope()
}

func (c *Compiler) compileReturn(s *Return) {
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.emitInt(OpLoadConst, c.addNoneConst())
	}
	c.emitOp(OpRet)
}

func (c *Compiler) compileAssignment(b *Binary) {
	// Inside a function body, a name that no function-scope declaration
	// bound is a module-level variable, so the write goes to the global map.
	storeOp := func(name string) OpCode {
		if c.funcDepth > 0 {
			for _, sc := range c.scopes {
				if _, ok := sc[name]; ok {
					return OpStoreVar
				}
			}
		}
		return OpStoreGlobalVar
	}
	switch left := b.Left.(type) {
	case *Index:
		arrName := ""
		var arrStore OpCode
		if ident, ok := left.Array.(*Identifier); ok {
			arrName = c.resolveVar(ident.Name)
			arrStore = storeOp(ident.Name)
		}
		c.compileExpr(left.Array)
		c.compileExpr(left.Idx)
		c.compileExpr(b.Right)
		c.emitOp(OpArraySet)
		if arrName != "" {
			c.emitStr(arrStore, arrName)
		}
	case *Identifier:
		c.compileExpr(b.Right)
		c.emitStr(storeOp(left.Name), c.resolveVar(left.Name))
	default:
		c.compileExpr(b.Right)
	}
}

var binaryOpcodes = map[string]OpCode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe, "==": OpEq, "!=": OpNe,
}

func (c *Compiler) compileExpr(e Expr) {
	switch v := e.(type) {
	case *NumberLiteral:
		if v.Value == float64(int64(v.Value)) {
			c.emitInt(OpLoadConst, c.addIntConst(int64(v.Value)))
		} else {
			c.emitInt(OpLoadConst, c.addFloatConst(v.Value))
		}
	case *StringLiteral:
		c.emitInt(OpLoadConst, c.addStringConst(v.Value))
	case *BooleanLiteral:
		c.emitInt(OpLoadConst, c.addBoolConst(v.Value))
	case *Identifier:
		c.emitStr(c.loadVarOp(), c.resolveVar(v.Name))
	case *Grouped:
		c.compileExpr(v.Inner)
	case *Unary:
		c.compileUnary(v)
	case *Binary:
		c.compileBinary(v)
	case *Call:
		c.compileCall(v)
	case *MemberAccess:
		// Bare module-member references (not calls) have no runtime value
		// in this language; see original_source's "MemberAccess is handled
		// by FunctionCall" no-op.
		c.emitInt(OpLoadConst, c.addNoneConst())
	case *Index:
		c.compileExpr(v.Array)
		c.compileExpr(v.Idx)
		c.emitOp(OpArrayGet)
	case *Range:
		// Always produces a single composite Range value (KindRange), the
		// same runtime shape evalRange builds on the interpreter side, so
		// `range(...)` is usable as a first-class value anywhere a primary
		// expression is (var r = range(...), io.print(range(...)), not just
		// directly in a for-in header.
		for _, arg := range v.Args {
			c.compileExpr(arg)
		}
		if len(v.Args) == 2 {
			c.emitInt(OpLoadConst, c.addIntConst(1))
		}
		c.emitOp(OpMakeRange)
	case *FormatString:
		// FORMAT only carries (const index, arg count) as operands, so the
		// `{expr}` spans are pre-collapsed into a single marker byte here;
		// the VM just interleaves args at each marker (see renderFormat in
		// builtins.go) instead of having to re-locate each span at runtime.
		idx := c.addStringConst(formatTemplate(v.Raw, v.Placeholders))
		c.emitInt(OpLoadConst, idx)
		for _, ph := range v.Placeholders {
			c.compileExpr(ph.Expr)
		}
		c.emitIntInt(OpFormat, idx, len(v.Placeholders))
	}
}

func (c *Compiler) compileUnary(u *Unary) {
	switch u.Op {
	case "-":
		c.compileExpr(u.Operand)
		c.emitInt(OpLoadConst, c.addIntConst(0))
		c.emitOp(OpSwap)
		c.emitOp(OpSub)
	case "!":
		c.compileExpr(u.Operand)
		c.emitOp(OpNot)
	default: // unary '+' is a no-op
		c.compileExpr(u.Operand)
	}
}

func (c *Compiler) compileBinary(b *Binary) {
	switch b.Op {
	case "=":
		c.compileAssignment(b)
	case "&&":
		c.compileExpr(b.Left)
		jfalse := c.emitJump(OpJmpFalse)
		c.compileExpr(b.Right)
		jend := c.emitJump(OpJmp)
		c.patchJump(jfalse)
		c.emitInt(OpLoadConst, c.addBoolConst(false))
		c.patchJump(jend)
	case "||":
		c.compileExpr(b.Left)
		jtrue := c.emitJump(OpJmpTrue)
		c.compileExpr(b.Right)
		jend := c.emitJump(OpJmp)
		c.patchJump(jtrue)
		c.emitInt(OpLoadConst, c.addBoolConst(true))
		c.patchJump(jend)
	default:
		c.compileExpr(b.Left)
		c.compileExpr(b.Right)
		if op, ok := binaryOpcodes[b.Op]; ok {
			c.emitOp(op)
		}
	}
}

// builtinName maps a resolved callee name to the bare builtin name the VM's
// builtin table is keyed by, or "" if name is not a builtin.
func builtinName(name string) string {
	switch name {
	case "print", "io.print":
		return "print"
	case "len", "__builtins__.len":
		return "len"
	case "io.scan":
		return "scan"
	case "io.read":
		return "read"
	default:
		return ""
	}
}

func (c *Compiler) compileCall(call *Call) {
	name := ""
	switch callee := call.Callee.(type) {
	case *Identifier:
		name = callee.Name
	case *MemberAccess:
		if obj, ok := callee.Object.(*Identifier); ok {
			name = obj.Name + "." + callee.Member
		}
	}
	argCount := len(call.Args)
	for _, arg := range call.Args {
		c.compileExpr(arg)
	}
	if bn := builtinName(name); bn != "" {
		c.emitIntStr(OpBuiltin, argCount, bn)
		return
	}
	bareName := name
	if idx := lastDot(name); idx >= 0 {
		bareName = name[idx+1:]
	}
	c.emitIntStr(OpCall, argCount, bareName)
}

const formatMarker = byte(0)

// formatTemplate replaces each `{expr}` span in raw with a single marker
// byte, so the runtime form needs no offset bookkeeping: it just splits on
// the marker and interleaves rendered arguments.
func formatTemplate(raw string, phs []Placeholder) string {
	var b []byte
	last := 0
	for _, ph := range phs {
		b = append(b, raw[last:ph.Offset]...)
		end := ph.Offset + 1
		for end < len(raw) && raw[end] != '}' {
			end++
		}
		if end < len(raw) {
			end++
		}
		b = append(b, formatMarker)
		last = end
	}
	b = append(b, raw[last:]...)
	return string(b)
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

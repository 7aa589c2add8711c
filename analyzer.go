// analyzer.go — two-pass semantic analyzer: name resolution, type checking,
// and control-flow validation over the parsed AST.
//
// Pass 1 registers every top-level function's qualified name and return
// type so forward references (a function calling one declared later in the
// file) resolve; pass 2 walks every statement and expression, including
// function bodies, checking types and threading the context spec.md §4.3
// requires (current function/return type, loop depth, current module).
// Error wording is grounded on original_source/Environment/SemanticAnalyzer.cpp.
package g

import "fmt"

// Analyzer runs the two passes described above over one Program.
type Analyzer struct {
	symtab        *SymbolTable
	errors        []*SemanticError
	currentModule string
	currentFunc   string
	currentRet    DataType
	hasRetType    bool
	sawReturn     bool
	loopDepth     int
}

// NewAnalyzer returns an Analyzer with the two fixed builtin modules
// already registered, per spec.md §4.3.
func NewAnalyzer() *Analyzer {
	a := &Analyzer{symtab: NewSymbolTable(), currentModule: "main"}
	a.registerBuiltins()
	return a
}

func (a *Analyzer) registerBuiltins() {
	a.symtab.DeclareGlobal(&Symbol{Name: "__builtins__", Kind: SymModule})
	a.symtab.DeclareGlobal(&Symbol{Name: "io", Kind: SymModule})
	builtinFns := []struct {
		module, name string
		ret          DataType
	}{
		{"__builtins__", "range", TypeUnknown},
		{"__builtins__", "print", TypeNone},
		{"__builtins__", "len", TypeInt},
		{"io", "print", TypeNone},
		{"io", "scan", TypeStr},
		{"io", "read", TypeStr},
	}
	for _, f := range builtinFns {
		a.symtab.DeclareGlobal(&Symbol{
			Name: f.module + "." + f.name, Kind: SymFunction,
			DataType: f.ret, ModuleName: f.module,
		})
	}
}

func (a *Analyzer) errorAt(line, col int, format string, args ...interface{}) {
	a.errors = append(a.errors, &SemanticError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)})
}

// Analyze runs both passes and returns the accumulated errors (empty slice
// means the program passed analysis and may proceed to compilation or
// interpretation, per spec.md §4.3 "Output").
func (a *Analyzer) Analyze(prog *Program) []*SemanticError {
	a.registerTopLevel(prog.Statements)
	for _, stmt := range prog.Statements {
		a.checkStmt(stmt)
	}
	return a.errors
}

// registerTopLevel is pass 1: it only records names, never checks bodies.
func (a *Analyzer) registerTopLevel(stmts []Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ModuleDecl:
			a.currentModule = s.ModuleName
			a.symtab.DeclareGlobal(&Symbol{Name: s.ModuleName, Kind: SymModule})
		case *Function:
			retType := TypeNone
			if s.ReturnType != nil {
				retType = typeOf(s.ReturnType)
			}
			qualified := a.currentModule + "." + s.Name
			if !a.symtab.DeclareGlobal(&Symbol{Name: qualified, Kind: SymFunction, DataType: retType, ModuleName: a.currentModule}) {
				a.errorAt(0, 0, "failed to declare function '%s'", qualified)
			}
		}
	}
}

func typeOf(t Type) DataType {
	switch v := t.(type) {
	case *NamedType:
		return dataTypeFromName(v.Name)
	case *ArrayType:
		return dataTypeFromName(v.ElementName)
	default:
		return TypeUnknown
	}
}

func (a *Analyzer) checkStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Import:
		if s.ModuleName != "io" && s.ModuleName != "__builtins__" {
			a.errorAt(0, 0, "unknown module: '%s'", s.ModuleName)
		}
	case *ModuleDecl:
		a.currentModule = s.ModuleName
	case *Function:
		a.checkFunction(s)
	case *Declaration:
		a.checkDeclaration(s)
	case *If:
		a.checkIf(s)
	case *While:
		a.checkWhile(s)
	case *ForIn:
		a.checkForIn(s)
	case *CStyleFor:
		a.checkCStyleFor(s)
	case *Return:
		a.checkReturn(s)
	case *Break:
		if a.loopDepth == 0 {
			a.errorAt(0, 0, "break statement outside loop")
		}
	case *Continue:
		if a.loopDepth == 0 {
			a.errorAt(0, 0, "continue statement outside loop")
		}
	case *ExpressionStatement:
		a.checkExpr(s.Expr)
	case *Block:
		a.symtab.EnterScope()
		for _, st := range s.Statements {
			a.checkStmt(st)
		}
		a.symtab.ExitScope()
	}
}

func (a *Analyzer) checkFunction(fn *Function) {
	savedFunc, savedRet, savedHas, savedReturn := a.currentFunc, a.currentRet, a.hasRetType, a.sawReturn
	a.currentFunc = fn.Name
	a.sawReturn = false
	if fn.ReturnType != nil {
		a.currentRet = typeOf(fn.ReturnType)
		a.hasRetType = true
	} else {
		a.currentRet = TypeNone
		a.hasRetType = false
	}

	a.symtab.EnterScope()
	for _, param := range fn.Params {
		dt := TypeUnknown
		if param.Type != nil {
			dt = typeOf(param.Type)
		}
		a.symtab.Declare(&Symbol{Name: param.Name, Kind: SymVariable, DataType: dt})
	}
	for _, st := range fn.Body.Statements {
		a.checkStmt(st)
	}
	a.symtab.ExitScope()

	if a.hasRetType && a.currentRet != TypeNone && !a.sawReturn {
		a.errorAt(0, 0, "function '%s' must return a value of type %s", fn.Name, a.currentRet)
	}

	a.currentFunc, a.currentRet, a.hasRetType, a.sawReturn = savedFunc, savedRet, savedHas, savedReturn
}

func (a *Analyzer) checkDeclaration(d *Declaration) {
	var declType DataType
	isArray := false
	var arraySize Expr
	if d.Type != nil {
		declType = typeOf(d.Type)
		if at, ok := d.Type.(*ArrayType); ok {
			isArray = true
			arraySize = at.Size
			if arraySize != nil {
				if st := a.checkExpr(arraySize); st != TypeInt && st != TypeUnknown {
					a.errorAt(0, 0, "array size must be integer")
				}
			}
		}
	}
	if d.Initializer != nil {
		initType := a.checkExpr(d.Initializer)
		if d.Type == nil {
			declType = initType
			if id, ok := d.Initializer.(*Identifier); ok {
				if src, found := a.symtab.Lookup(id.Name); found && src.IsArray {
					isArray = true
					arraySize = src.ArraySize
				}
			}
		} else if !IsTypeCompatible(declType, initType) {
			a.errorAt(0, 0, "cannot assign %s to %s", initType, declType)
		}
	}
	if !a.symtab.Declare(&Symbol{Name: d.Name, Kind: SymVariable, DataType: declType, IsArray: isArray, ArraySize: arraySize}) {
		a.errorAt(0, 0, "failed to declare variable '%s'", d.Name)
	}
}

func (a *Analyzer) checkIf(s *If) {
	condType := a.checkExpr(s.Condition)
	if condType != TypeBool && !IsNumericType(condType) && condType != TypeUnknown {
		a.errorAt(0, 0, "if condition must be boolean or numeric type")
	}
	a.checkStmt(s.Then)
	if s.Else != nil {
		a.checkStmt(s.Else)
	}
}

func (a *Analyzer) checkWhile(s *While) {
	condType := a.checkExpr(s.Condition)
	if condType != TypeBool && !IsNumericType(condType) && condType != TypeUnknown {
		a.errorAt(0, 0, "while condition must be boolean or numeric type")
	}
	a.loopDepth++
	a.checkStmt(s.Body)
	a.loopDepth--
}

func (a *Analyzer) checkForIn(s *ForIn) {
	if _, ok := s.Iterable.(*Range); !ok {
		if ident, ok := s.Iterable.(*Identifier); ok {
			if sym, found := a.symtab.Lookup(ident.Name); !found || sym.Kind != SymVariable {
				a.errorAt(0, 0, "for loop iterable must be range expression")
			}
		} else {
			a.errorAt(0, 0, "for loop iterable must be range expression")
		}
	} else {
		a.checkExpr(s.Iterable)
	}
	a.symtab.EnterScope()
	a.symtab.Declare(&Symbol{Name: s.LoopVar, Kind: SymVariable, DataType: TypeInt})
	a.loopDepth++
	for _, st := range s.Body.Statements {
		a.checkStmt(st)
	}
	a.loopDepth--
	a.symtab.ExitScope()
}

func (a *Analyzer) checkCStyleFor(s *CStyleFor) {
	a.symtab.EnterScope()
	if s.Init != nil {
		a.checkStmt(s.Init)
	}
	if s.Cond != nil {
		a.checkExpr(s.Cond)
	}
	a.loopDepth++
	for _, st := range s.Body.Statements {
		a.checkStmt(st)
	}
	if s.Step != nil {
		a.checkStmt(s.Step)
	}
	a.loopDepth--
	a.symtab.ExitScope()
}

func (a *Analyzer) checkReturn(s *Return) {
	if a.currentFunc == "" {
		a.errorAt(0, 0, "return statement outside function")
		return
	}
	a.sawReturn = true
	if s.Value == nil {
		if a.hasRetType && a.currentRet != TypeNone {
			a.errorAt(0, 0, "function '%s' expects return type %s", a.currentFunc, a.currentRet)
		}
		return
	}
	valType := a.checkExpr(s.Value)
	if a.currentRet != TypeNone && valType != TypeUnknown && !IsTypeCompatible(a.currentRet, valType) {
		a.errorAt(0, 0, "function '%s' expects return type %s", a.currentFunc, a.currentRet)
	}
}

// checkExpr type-checks e and returns its static DataType. An undeclared
// name, an ill-typed arithmetic or unary operand, or a bad member access
// yields TypeUnknown, which the checks above accept silently so one error
// does not cascade into more.
func (a *Analyzer) checkExpr(e Expr) DataType {
	switch v := e.(type) {
	case *NumberLiteral:
		if v.Value == float64(int64(v.Value)) {
			return TypeInt
		}
		return TypeFloat
	case *StringLiteral:
		return TypeStr
	case *BooleanLiteral:
		return TypeBool
	case *Identifier:
		sym, found := a.symtab.Lookup(v.Name)
		if !found {
			a.errorAt(0, 0, "undeclared identifier: '%s'", v.Name)
			return TypeUnknown
		}
		return sym.DataType
	case *Grouped:
		return a.checkExpr(v.Inner)
	case *Unary:
		return a.checkUnary(v)
	case *Binary:
		return a.checkBinary(v)
	case *Call:
		return a.checkCall(v)
	case *MemberAccess:
		return a.checkMemberAccess(v)
	case *Index:
		return a.checkIndex(v)
	case *Range:
		for _, arg := range v.Args {
			if t := a.checkExpr(arg); !IsNumericType(t) && t != TypeUnknown {
				a.errorAt(0, 0, "range arguments must be numeric")
			}
		}
		return TypeUnknown
	case *FormatString:
		for _, ph := range v.Placeholders {
			if ph.Expr != nil {
				a.checkExpr(ph.Expr)
			}
		}
		return TypeStr
	default:
		return TypeUnknown
	}
}

func (a *Analyzer) checkUnary(u *Unary) DataType {
	operandType := a.checkExpr(u.Operand)
	switch u.Op {
	case "-", "+":
		if !IsNumericType(operandType) && operandType != TypeUnknown {
			a.errorAt(0, 0, "unary operator '%s' requires numeric operand", u.Op)
			return TypeUnknown
		}
		return operandType
	case "!":
		if operandType != TypeBool && operandType != TypeUnknown {
			a.errorAt(0, 0, "logical not '!' requires boolean operand")
			return TypeUnknown
		}
		return TypeBool
	default:
		a.errorAt(0, 0, "unknown unary operator: %s", u.Op)
		return TypeUnknown
	}
}

func (a *Analyzer) checkBinary(b *Binary) DataType {
	if b.Op == "=" {
		return a.checkAssignment(b)
	}
	leftType := a.checkExpr(b.Left)
	rightType := a.checkExpr(b.Right)

	switch b.Op {
	case "+", "-", "*", "/", "%":
		if b.Op == "+" && (leftType == TypeStr || rightType == TypeStr) {
			return TypeStr
		}
		if leftType == TypeUnknown || rightType == TypeUnknown {
			return TypeUnknown
		}
		if !IsNumericType(leftType) || !IsNumericType(rightType) {
			a.errorAt(0, 0, "operator '%s' requires numeric operands", b.Op)
			return TypeUnknown
		}
		if b.Op == "%" && (leftType != TypeInt || rightType != TypeInt) {
			a.errorAt(0, 0, "operator '%%' requires integer operands")
			return TypeUnknown
		}
		if leftType == TypeFloat || rightType == TypeFloat {
			return TypeFloat
		}
		return TypeInt
	case "<", "<=", ">", ">=", "==", "!=":
		if leftType != TypeUnknown && rightType != TypeUnknown &&
			!IsTypeCompatible(leftType, rightType) && !IsTypeCompatible(rightType, leftType) {
			a.errorAt(0, 0, "cannot compare %s and %s", leftType, rightType)
		}
		return TypeBool
	case "&&", "||":
		if (leftType != TypeBool && leftType != TypeUnknown) || (rightType != TypeBool && rightType != TypeUnknown) {
			a.errorAt(0, 0, "logical operators require boolean operands")
		}
		return TypeBool
	default:
		a.errorAt(0, 0, "unknown operator: %s", b.Op)
		return TypeUnknown
	}
}

func (a *Analyzer) checkAssignment(b *Binary) DataType {
	if !isLvalue(b.Left) {
		a.errorAt(0, 0, "left side of assignment must be a variable")
		a.checkExpr(b.Right)
		return TypeUnknown
	}
	leftType := a.checkExpr(b.Left)
	rightType := a.checkExpr(b.Right)
	if leftType != TypeUnknown && rightType != TypeUnknown && !IsTypeCompatible(leftType, rightType) {
		a.errorAt(0, 0, "cannot assign %s to %s", rightType, leftType)
	}
	return leftType
}

// resolveFunction implements the lookup order spec.md §4.3 mandates:
// qualified by current module, then by __builtins__, then as a plain
// variable.
func (a *Analyzer) resolveFunction(name string) (*Symbol, bool) {
	if sym, ok := a.symtab.Lookup(a.currentModule + "." + name); ok {
		return sym, true
	}
	if sym, ok := a.symtab.Lookup("__builtins__." + name); ok {
		return sym, true
	}
	if sym, ok := a.symtab.Lookup(name); ok {
		return sym, true
	}
	return nil, false
}

func (a *Analyzer) checkCall(c *Call) DataType {
	switch callee := c.Callee.(type) {
	case *Identifier:
		sym, found := a.resolveFunction(callee.Name)
		if !found {
			a.errorAt(0, 0, "undeclared function: '%s'", callee.Name)
			for _, arg := range c.Args {
				a.checkExpr(arg)
			}
			return TypeUnknown
		}
		for _, arg := range c.Args {
			a.checkExpr(arg)
		}
		return sym.DataType
	case *MemberAccess:
		obj, ok := callee.Object.(*Identifier)
		if !ok {
			a.errorAt(0, 0, "member access left side must be an identifier")
			return TypeUnknown
		}
		fullName := obj.Name + "." + callee.Member
		sym, found := a.symtab.Lookup(fullName)
		if !found {
			a.errorAt(0, 0, "module '%s' has no member '%s'", obj.Name, callee.Member)
			for _, arg := range c.Args {
				a.checkExpr(arg)
			}
			return TypeUnknown
		}
		for _, arg := range c.Args {
			a.checkExpr(arg)
		}
		return sym.DataType
	default:
		a.checkExpr(c.Callee)
		for _, arg := range c.Args {
			a.checkExpr(arg)
		}
		return TypeUnknown
	}
}

func (a *Analyzer) checkMemberAccess(m *MemberAccess) DataType {
	obj, ok := m.Object.(*Identifier)
	if !ok {
		a.errorAt(0, 0, "member access left side must be an identifier")
		return TypeUnknown
	}
	if sym, found := a.symtab.Lookup(obj.Name); found && sym.Kind == SymModule {
		fullName := obj.Name + "." + m.Member
		if fsym, ok := a.symtab.Lookup(fullName); ok {
			return fsym.DataType
		}
		a.errorAt(0, 0, "module '%s' has no member '%s'", obj.Name, m.Member)
		return TypeUnknown
	}
	a.errorAt(0, 0, "member access left side must be an identifier")
	return TypeUnknown
}

func (a *Analyzer) checkIndex(ix *Index) DataType {
	idxType := a.checkExpr(ix.Idx)
	if idxType != TypeInt && idxType != TypeUnknown {
		a.errorAt(0, 0, "array index must be integer")
	}
	if ident, ok := ix.Array.(*Identifier); ok {
		if sym, found := a.symtab.Lookup(ident.Name); found {
			if !sym.IsArray {
				a.errorAt(0, 0, "undeclared identifier: '%s'", ident.Name)
			}
			return sym.DataType
		}
		a.errorAt(0, 0, "undeclared identifier: '%s'", ident.Name)
		return TypeUnknown
	}
	return a.checkExpr(ix.Array)
}

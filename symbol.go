// symbol.go — scoped symbol table shared by the analyzer and, at runtime,
// mirrored by the interpreter's scope stack.
//
// Grounded on original_source/Environment/Environment.hpp's scopes-as-a-
// vector-of-maps design; this implementation is the per-run, non-global
// equivalent (SPEC_FULL.md §9 "Global mutable compiler state" applies the
// same way to the environment: it is a value owned by one Analyzer run).
package g

// SymbolKind distinguishes what a Symbol names.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymModule
)

// DataType is the static type lattice the analyzer reasons over. Unlike
// RuntimeValue (value.go), DataType has no payload — it is purely a type tag.
type DataType int

const (
	TypeInt DataType = iota
	TypeFloat
	TypeStr
	TypeBool
	TypeNone
	TypeUnknown
)

func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeStr:
		return "str"
	case TypeBool:
		return "bool"
	case TypeNone:
		return "none"
	default:
		return "unknown"
	}
}

func dataTypeFromName(name string) DataType {
	switch name {
	case "int":
		return TypeInt
	case "float":
		return TypeFloat
	case "str":
		return TypeStr
	case "bool":
		return TypeBool
	default:
		return TypeUnknown
	}
}

// Symbol is one entry in a scope.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	DataType   DataType
	ScopeLevel int
	ModuleName string
	IsArray    bool
	ArraySize  Expr // the size expression, evaluated lazily if non-constant
}

// SymbolTable is a nonempty stack of scope maps; index 0 is global.
type SymbolTable struct {
	scopes []map[string]*Symbol
}

// NewSymbolTable returns a table with just the global scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: []map[string]*Symbol{{}}}
}

func (st *SymbolTable) EnterScope() {
	st.scopes = append(st.scopes, map[string]*Symbol{})
}

func (st *SymbolTable) ExitScope() {
	if len(st.scopes) > 1 {
		st.scopes = st.scopes[:len(st.scopes)-1]
	}
}

func (st *SymbolTable) CurrentLevel() int { return len(st.scopes) - 1 }

// Declare adds sym to the current scope. It returns false if a symbol of
// the same name already exists in the current scope (spec.md §4.3: "A
// declaration is rejected if a symbol of the same name exists in the
// current scope; shadowing in an inner scope is allowed").
func (st *SymbolTable) Declare(sym *Symbol) bool {
	cur := st.scopes[len(st.scopes)-1]
	if _, exists := cur[sym.Name]; exists {
		return false
	}
	sym.ScopeLevel = st.CurrentLevel()
	cur[sym.Name] = sym
	return true
}

// DeclareGlobal adds sym directly to the global scope regardless of the
// current scope depth — used for qualified function names, which spec.md
// §4.3 says are "registered in the global scope under module.name".
func (st *SymbolTable) DeclareGlobal(sym *Symbol) bool {
	global := st.scopes[0]
	if _, exists := global[sym.Name]; exists {
		return false
	}
	sym.ScopeLevel = 0
	global[sym.Name] = sym
	return true
}

// Lookup walks the scope stack top-down and returns the first match.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if sym, ok := st.scopes[i][name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func (st *SymbolTable) IsDeclared(name string) bool {
	_, ok := st.Lookup(name)
	return ok
}

func (st *SymbolTable) IsDeclaredInCurrentScope(name string) bool {
	_, ok := st.scopes[len(st.scopes)-1][name]
	return ok
}

// IsTypeCompatible mirrors Environment::isTypeCompatible: identical types
// are compatible, and Int widens to Float, per spec.md §4.3.
func IsTypeCompatible(target, source DataType) bool {
	if target == source {
		return true
	}
	if target == TypeFloat && source == TypeInt {
		return true
	}
	return target == TypeUnknown || source == TypeUnknown
}

// IsNumericType reports whether t is Int or Float.
func IsNumericType(t DataType) bool { return t == TypeInt || t == TypeFloat }

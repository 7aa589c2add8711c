// opcode.go — the fixed instruction set shared by the compiler and VM.
//
// Grounded on original_source/Bytecode/OpCode.hpp's enum and Instruction
// class (two int operands plus one string operand, with a toString used for
// disassembly). Three opcodes are added relative to the original: MOD, since
// `%` is a required operator (analyzer.go, interpreter.go) but has no
// compiled-path opcode in the original — see DESIGN.md Open Question O3 —
// and MAKE_RANGE/UNPACK_RANGE, so a `range(...)` call compiles to the same
// single composite Range value the tree-walking interpreter already
// produces instead of 2-3 loose scalars (DESIGN.md Open Question O9).
package g

import "fmt"

// OpCode is one instruction mnemonic.
type OpCode int

const (
	OpLoadConst OpCode = iota
	OpLoadVar
	OpLoadVal
	OpStoreVar
	OpStoreVal
	OpLoadGlobalVar
	OpLoadGlobalVal
	OpStoreGlobalVar
	OpStoreGlobalVal

	OpAllocArray
	OpArrayGet
	OpArraySet
	OpArrayLen

	OpMakeRange
	OpUnpackRange

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe

	OpNot
	OpSwap

	OpJmp
	OpJmpTrue
	OpJmpFalse

	OpCall
	OpBuiltin
	OpRet

	OpFormat
	OpHalt
)

var opCodeNames = map[OpCode]string{
	OpLoadConst: "LOAD_CONST", OpLoadVar: "LOAD_VAR", OpLoadVal: "LOAD_VAL",
	OpStoreVar: "STORE_VAR", OpStoreVal: "STORE_VAL",
	OpLoadGlobalVar: "LOAD_GLOBAL_VAR", OpLoadGlobalVal: "LOAD_GLOBAL_VAL",
	OpStoreGlobalVar: "STORE_GLOBAL_VAR", OpStoreGlobalVal: "STORE_GLOBAL_VAL",
	OpAllocArray: "ALLOC_ARRAY", OpArrayGet: "ARRAY_GET", OpArraySet: "ARRAY_SET", OpArrayLen: "ARRAY_LEN",
	OpMakeRange: "MAKE_RANGE", OpUnpackRange: "UNPACK_RANGE",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD",
	OpLt: "LT", OpLe: "LE", OpGt: "GT", OpGe: "GE", OpEq: "EQ", OpNe: "NE",
	OpNot: "NOT", OpSwap: "SWAP",
	OpJmp: "JMP", OpJmpTrue: "JMP_TRUE", OpJmpFalse: "JMP_FALSE",
	OpCall: "CALL", OpBuiltin: "BUILTIN", OpRet: "RET",
	OpFormat: "FORMAT", OpHalt: "HALT",
}

func (op OpCode) String() string {
	if name, ok := opCodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// Instruction is one bytecode instruction: an opcode plus up to two int
// operands and one string operand, exactly as
// original_source/Bytecode/OpCode.hpp's Instruction class carries them.
// IntOperand2 is used only by FORMAT (const_idx, arg_count); CALL/BUILTIN
// carry arg_count in IntOperand1 and the callee name in StrOperand.
type Instruction struct {
	Op          OpCode
	IntOperand1 int
	IntOperand2 int
	StrOperand  string
	HasInt1     bool
	HasInt2     bool
	HasStr      bool
}

func (i Instruction) String() string {
	s := i.Op.String()
	if i.HasInt1 {
		s += fmt.Sprintf(" %d", i.IntOperand1)
	}
	if i.HasInt2 {
		s += fmt.Sprintf(",%d", i.IntOperand2)
	}
	if i.HasStr {
		s += fmt.Sprintf(" %q", i.StrOperand)
	}
	return s
}

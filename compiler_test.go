package g

import (
	"strings"
	"testing"
)

func compileSrc(t *testing.T, src string) *Module {
	t.Helper()
	prog, perrs := ParseProgram(src)
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	if errs := NewAnalyzer().Analyze(prog); len(errs) > 0 {
		t.Fatalf("semantic errors: %v", errs)
	}
	return Compile(prog)
}

func Test_Compile_ConstantPoolDeduplicatesScalars(t *testing.T) {
	mod := compileSrc(t, "var a = 7\nvar b = 7\nvar c = 7\n")
	count := 0
	for _, c := range mod.Constants {
		if c.Kind == KindInt && c.I == 7 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("got %d constant-pool entries for 7, want 1", count)
	}
}

func Test_Compile_FunctionBodyIsSkippedAtModuleLevel(t *testing.T) {
	mod := compileSrc(t, "func f(): int {\n  return 1\n}\nvar x = 2\n")
	// The first instruction of the module must not be inside f's body:
	// it has to be a JMP that skips over it, or f's RET, run with no active
	// frame, would halt the VM before STORE_GLOBAL_VAR x ever executes.
	if mod.Code[0].Op != OpJmp {
		t.Fatalf("expected first instruction to be a JMP over the function body, got %s", mod.Code[0].Op)
	}
	entry, ok := mod.Labels["f"]
	if !ok {
		t.Fatalf("expected a label for 'f'")
	}
	if entry == 0 {
		t.Fatalf("function entry should not be at instruction 0 (that's the skip jump)")
	}
}

func Test_Compile_BreakJumpsPastLoopBody(t *testing.T) {
	mod := compileSrc(t, "var i = 0\nwhile i < 10 {\n  break\n  i = i + 1\n}\n")
	exitIdx := -1
	for i, instr := range mod.Code {
		if instr.Op == OpJmpFalse {
			exitIdx = i
			break
		}
	}
	if exitIdx == -1 || exitIdx+1 >= len(mod.Code) {
		t.Fatalf("expected to find the loop's exit test")
	}
	breakIdx := exitIdx + 1
	if mod.Code[breakIdx].Op != OpJmp {
		t.Fatalf("expected break to compile to a JMP right after the loop's exit test, got %s", mod.Code[breakIdx].Op)
	}
	target := mod.Code[breakIdx].IntOperand1
	if target <= breakIdx {
		t.Fatalf("break target %d must be after the break instruction at %d (jump forward, out of the loop)", target, breakIdx)
	}
	// The statement after break ("i = i + 1") must be unreachable from the
	// break's own jump, but it still occupies code between break and target
	// — confirming target is genuinely past the body, not the body's start.
	if target <= exitIdx+2 {
		t.Fatalf("break target %d should be past the rest of the loop body (exit test at %d)", target, exitIdx)
	}
}

func Test_Compile_DescendingForInUsesGreaterThan(t *testing.T) {
	mod := compileSrc(t, "for i in range(5, 0, -1) {\n}\n")
	foundGt := false
	for _, instr := range mod.Code {
		if instr.Op == OpGt {
			foundGt = true
		}
	}
	if !foundGt {
		t.Fatalf("expected the compiled descending range loop to use a GT comparison")
	}
}

func Test_Compile_ModuleLevelVarsUseGlobalOpcodes(t *testing.T) {
	mod := compileSrc(t, "var x = 1\n")
	found := false
	for _, instr := range mod.Code {
		if instr.Op == OpStoreGlobalVar {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected top-level declaration to use STORE_GLOBAL_VAR")
	}
}

func Test_Compile_FunctionLocalsUsePlainOpcodes(t *testing.T) {
	mod := compileSrc(t, "func f() {\n  var x = 1\n}\n")
	for i := mod.Labels["f"]; i < len(mod.Code); i++ {
		if mod.Code[i].Op == OpStoreGlobalVar {
			t.Fatalf("function-local declaration must not use STORE_GLOBAL_VAR")
		}
		if mod.Code[i].Op == OpRet {
			break
		}
	}
}

func Test_Compile_Disassemble_ContainsOpcodeNames(t *testing.T) {
	mod := compileSrc(t, "var x = 1 + 2\n")
	out := mod.Disassemble()
	if !strings.Contains(out, "ADD") {
		t.Fatalf("expected disassembly to contain ADD, got:\n%s", out)
	}
}

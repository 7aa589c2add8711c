package g

import "testing"

func analyze(t *testing.T, src string) []*SemanticError {
	t.Helper()
	prog, perrs := ParseProgram(src)
	if len(perrs) > 0 {
		t.Fatalf("unexpected parse errors: %v", perrs)
	}
	return NewAnalyzer().Analyze(prog)
}

func Test_Analyze_UndefinedNameIsError(t *testing.T) {
	errs := analyze(t, "var x = y + 1\n")
	if len(errs) == 0 {
		t.Fatalf("expected an error for undefined name")
	}
}

func Test_Analyze_ForwardFunctionReferenceOK(t *testing.T) {
	errs := analyze(t, "func a(): int {\n  return b()\n}\nfunc b(): int {\n  return 1\n}\n")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func Test_Analyze_BreakOutsideLoopIsError(t *testing.T) {
	errs := analyze(t, "break\n")
	if len(errs) == 0 {
		t.Fatalf("expected an error for break outside a loop")
	}
}

func Test_Analyze_TypeMismatchInBinaryIsError(t *testing.T) {
	errs := analyze(t, "var x = true + 1\n")
	if len(errs) == 0 {
		t.Fatalf("expected a type error")
	}
}

func Test_Analyze_FixedModulesResolve(t *testing.T) {
	errs := analyze(t, `io.print("hi")` + "\n")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func Test_Analyze_ValidProgramHasNoErrors(t *testing.T) {
	errs := analyze(t, "func add(a: int, b: int): int {\n  return a + b\n}\nvar r = add(1, 2)\n")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

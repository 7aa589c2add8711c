package g

import "testing"

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, errs := ParseProgram(src)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, errs)
	}
	return prog
}

func Test_ParseProgram_FunctionDeclaration(t *testing.T) {
	prog := mustParse(t, "func add(a: int, b: int): int {\n  return a + b\n}\n")
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Statements))
	}
	fn, ok := prog.Statements[0].(*Function)
	if !ok {
		t.Fatalf("got %T, want *Function", prog.Statements[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("got %+v", fn)
	}
}

func Test_ParseProgram_ForInVsCStyleForDisambiguation(t *testing.T) {
	prog := mustParse(t, "for i in range(0, 10) {\n}\n")
	if _, ok := prog.Statements[0].(*ForIn); !ok {
		t.Fatalf("got %T, want *ForIn", prog.Statements[0])
	}

	prog2 := mustParse(t, "for (var i = 0; i < 10; i = i + 1) {\n}\n")
	if _, ok := prog2.Statements[0].(*CStyleFor); !ok {
		t.Fatalf("got %T, want *CStyleFor", prog2.Statements[0])
	}
}

func Test_ParseProgram_DescendingRangeStepParses(t *testing.T) {
	prog := mustParse(t, "for i in range(5, 0, -1) {\n}\n")
	fi, ok := prog.Statements[0].(*ForIn)
	if !ok {
		t.Fatalf("got %T", prog.Statements[0])
	}
	rng, ok := fi.Iterable.(*Range)
	if !ok || len(rng.Args) != 3 {
		t.Fatalf("got %+v", fi.Iterable)
	}
}

func Test_ParseProgram_FormatStringPlaceholders(t *testing.T) {
	prog := mustParse(t, `var x = @"hi {name}, you are {age + 1}"` + "\n")
	decl, ok := prog.Statements[0].(*Declaration)
	if !ok {
		t.Fatalf("got %T", prog.Statements[0])
	}
	fs, ok := decl.Initializer.(*FormatString)
	if !ok {
		t.Fatalf("got %T, want *FormatString", decl.Initializer)
	}
	if len(fs.Placeholders) != 2 {
		t.Fatalf("got %d placeholders, want 2", len(fs.Placeholders))
	}
}

func Test_ParseProgram_UnclosedParenRecordsError(t *testing.T) {
	_, errs := ParseProgram("f(1\n")
	if len(errs) == 0 {
		t.Fatalf("expected a parse error")
	}
}

func Test_ParseProgram_ArrayTypeDeclaration(t *testing.T) {
	prog := mustParse(t, "var xs: int[5]\n")
	decl, ok := prog.Statements[0].(*Declaration)
	if !ok {
		t.Fatalf("got %T", prog.Statements[0])
	}
	if _, ok := decl.Type.(*ArrayType); !ok {
		t.Fatalf("got %T, want *ArrayType", decl.Type)
	}
}

package g

import (
	"bytes"
	"strings"
	"testing"

	"github.com/g-lang/g/internal/glog"
)

func runInterp(t *testing.T, src string) (stdout, stderr string) {
	t.Helper()
	prog, perrs := ParseProgram(src)
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	if errs := NewAnalyzer().Analyze(prog); len(errs) > 0 {
		t.Fatalf("semantic errors: %v", errs)
	}
	var out, errBuf bytes.Buffer
	ip := NewInterpreter(&out, strings.NewReader(""), glog.Discard())
	ip.Run(prog, &errBuf)
	return out.String(), errBuf.String()
}

func Test_Interpreter_RecursiveFunction(t *testing.T) {
	src := `func fact(n: int): int {
  if n <= 1 {
    return 1
  }
  return n * fact(n - 1)
}
io.print(fact(5))
`
	out, _ := runInterp(t, src)
	if strings.TrimSpace(out) != "120" {
		t.Fatalf("got %q", out)
	}
}

func Test_Interpreter_DescendingRangeIterates(t *testing.T) {
	src := "for i in range(3, 0, -1) {\n  io.print(i)\n}\n"
	out, _ := runInterp(t, src)
	got := strings.Fields(out)
	want := []string{"3", "2", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_Interpreter_BreakExitsLoop(t *testing.T) {
	src := "var i = 0\nwhile i < 10 {\n  if i == 3 {\n    break\n  }\n  io.print(i)\n  i = i + 1\n}\n"
	out, _ := runInterp(t, src)
	got := strings.Fields(out)
	want := []string{"0", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_Interpreter_DivisionByZeroReportsAndContinues(t *testing.T) {
	out, errOut := runInterp(t, "var x = 1 / 0\nio.print(\"still running\")\n")
	if !strings.Contains(errOut, "Runtime Error:") {
		t.Fatalf("expected a runtime error report, got %q", errOut)
	}
	if strings.TrimSpace(out) != "still running" {
		t.Fatalf("expected execution to continue, got %q", out)
	}
}

func Test_Interpreter_ArrayIndexAssignmentDoesNotAliasOriginal(t *testing.T) {
	src := `var a: int[3]
a[0] = 1
var b = a
b[0] = 2
io.print(a[0])
io.print(b[0])
`
	out, _ := runInterp(t, src)
	got := strings.Fields(out)
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("expected array mutation to copy rather than alias, got %v", got)
	}
}

// Test_VMAndInterpreter_AgreeOnOutput exercises spec.md §8's universal
// invariant directly: the same program run through both termini must
// produce identical stdout.
func Test_VMAndInterpreter_AgreeOnOutput(t *testing.T) {
	src := `func sum(n: int): int {
  var total = 0
  for i in range(0, n) {
    total = total + i
  }
  return total
}
io.print(sum(10))
io.print(7 % 3)
for i in range(4, 0, -2) {
  io.print(i)
}
`
	vmOut, _ := runVM(t, src)
	ipOut, _ := runInterp(t, src)
	if vmOut != ipOut {
		t.Fatalf("VM and interpreter disagree:\nVM:  %q\nINTP: %q", vmOut, ipOut)
	}
}

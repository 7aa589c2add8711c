package g

import (
	"strings"
	"testing"
)

// e2e_test.go reproduces spec.md §8's six end-to-end scenarios, each run
// through both the compiled VM and the tree-walking interpreter (O7/O8 in
// DESIGN.md record the two decisions these scenarios forced: g has no
// implicit entry point, so a declared `main` is called explicitly, and
// block-level shadowing is real in both termini).

func runBoth(t *testing.T, src string) (vmOut, ipOut string) {
	t.Helper()
	vmOut, _ = runVM(t, src)
	ipOut, _ = runInterp(t, src)
	return vmOut, ipOut
}

func Test_E2E_Hello(t *testing.T) {
	src := "import io\n" +
		"func main(): int {\n  io.print(\"Hello\")\n  return 0\n}\n" +
		"main()\n"
	vmOut, ipOut := runBoth(t, src)
	if strings.TrimSpace(vmOut) != "Hello" {
		t.Fatalf("VM: got %q", vmOut)
	}
	if strings.TrimSpace(ipOut) != "Hello" {
		t.Fatalf("interpreter: got %q", ipOut)
	}
}

func Test_E2E_ForRangeSum(t *testing.T) {
	src := "import io\n" +
		"func main(): int {\n" +
		"  var s: int = 0\n" +
		"  for i in range(1, 11, 1) {\n    s = s + i\n  }\n" +
		"  io.print(s)\n  return 0\n" +
		"}\n" +
		"main()\n"
	vmOut, ipOut := runBoth(t, src)
	if strings.TrimSpace(vmOut) != "55" {
		t.Fatalf("VM: got %q", vmOut)
	}
	if strings.TrimSpace(ipOut) != "55" {
		t.Fatalf("interpreter: got %q", ipOut)
	}
}

func Test_E2E_FormatString(t *testing.T) {
	src := "import io\n" +
		"func main(): int {\n" +
		"  var n: str = \"world\"\n" +
		"  io.print(@\"Hello {n}!\")\n" +
		"  return 0\n" +
		"}\n" +
		"main()\n"
	vmOut, ipOut := runBoth(t, src)
	if strings.TrimSpace(vmOut) != "Hello world!" {
		t.Fatalf("VM: got %q", vmOut)
	}
	if strings.TrimSpace(ipOut) != "Hello world!" {
		t.Fatalf("interpreter: got %q", ipOut)
	}
}

func Test_E2E_ArrayMutate(t *testing.T) {
	src := "func main(): int {\n" +
		"  var a: int[3]\n" +
		"  a[1] = 42\n" +
		"  io.print(a[1])\n" +
		"  return 0\n" +
		"}\n" +
		"main()\n"
	vmOut, ipOut := runBoth(t, src)
	if strings.TrimSpace(vmOut) != "42" {
		t.Fatalf("VM: got %q", vmOut)
	}
	if strings.TrimSpace(ipOut) != "42" {
		t.Fatalf("interpreter: got %q", ipOut)
	}
}

func Test_E2E_DivisionByZero(t *testing.T) {
	src := "io.print(1/0)\n"
	vmOut, vmErr := runVM(t, src)
	ipOut, ipErr := runInterp(t, src)
	if !strings.Contains(vmErr, "Runtime Error: Division by zero") {
		t.Fatalf("VM stderr: got %q", vmErr)
	}
	if !strings.Contains(vmOut, "none") {
		t.Fatalf("VM stdout: got %q", vmOut)
	}
	if !strings.Contains(ipErr, "Runtime Error: Division by zero") {
		t.Fatalf("interpreter stderr: got %q", ipErr)
	}
	if !strings.Contains(ipOut, "none") {
		t.Fatalf("interpreter stdout: got %q", ipOut)
	}
}

func Test_E2E_Shadowing(t *testing.T) {
	src := "import io\n" +
		"var x = 1\n" +
		"if true {\n  var x = 2\n  io.print(x)\n}\n" +
		"io.print(x)\n"
	vmOut, ipOut := runBoth(t, src)
	vmLines := strings.Fields(vmOut)
	ipLines := strings.Fields(ipOut)
	want := []string{"2", "1"}
	if len(vmLines) != 2 || vmLines[0] != want[0] || vmLines[1] != want[1] {
		t.Fatalf("VM: got %v, want %v (inner x must shadow, not mutate, outer x)", vmLines, want)
	}
	if len(ipLines) != 2 || ipLines[0] != want[0] || ipLines[1] != want[1] {
		t.Fatalf("interpreter: got %v, want %v (inner x must shadow, not mutate, outer x)", ipLines, want)
	}
}

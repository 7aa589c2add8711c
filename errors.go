// errors.go — the three diagnostic tiers and their caret-snippet rendering.
//
// Syntax and semantic errors halt the pipeline before the next stage runs.
// A ParseError carries the 1-based Line/Col of the token it was raised at;
// AST nodes record no source position, so every SemanticError has Line and
// Col 0 (renderSnippet clamps that to line 1, column 1). Runtime errors are never returned as Go errors
// from the VM/interpreter loop — they are printed immediately (see vm.go,
// interpreter.go) with the `Runtime Error:` prefix and execution continues.
// WrapErrorWithSource renders a LexError/ParseError/SemanticError (or a
// SemanticErrors list) as a Python-style snippet with a caret under the
// offending column; a RuntimeError is returned unchanged.
package g

import (
	"fmt"
	"strings"
)

// LexError exists for parity with the other two static-error tiers and for
// WrapErrorWithName's type switch, but lexer.go's scanner never actually
// constructs one: by design it never aborts, emitting a TokUnknown token
// for any unknown byte or unterminated literal instead and leaving the
// parser to turn that into a *ParseError if it turns out to matter.
type LexError struct {
	Line, Col int
	Msg       string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ParseError is one recorded parser diagnostic. The parser accumulates these
// and keeps going; see Parser.Errors.
type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// SemanticError is one recorded analyzer diagnostic.
type SemanticError struct {
	Line, Col int
	Msg       string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// SemanticErrors is the list an Analyzer run returns when it fails; a
// non-empty list halts the pipeline before the compiler/VM/interpreter runs.
type SemanticErrors []*SemanticError

func (es SemanticErrors) Error() string {
	var b strings.Builder
	for i, e := range es {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

// RuntimeErrorKind names the fixed set of runtime failure kinds spec.md §7
// enumerates.
type RuntimeErrorKind string

const (
	ErrDivisionByZero  RuntimeErrorKind = "Division by zero"
	ErrModuloByZero    RuntimeErrorKind = "Modulo by zero"
	ErrBadIndex        RuntimeErrorKind = "Index out of bounds"
	ErrTypeMismatch    RuntimeErrorKind = "Type mismatch"
	ErrUndefinedName   RuntimeErrorKind = "Undefined name"
	ErrNotCallable     RuntimeErrorKind = "Not callable"
	ErrBadControlFlow  RuntimeErrorKind = "Invalid control flow"
	ErrFormatArgCount  RuntimeErrorKind = "Format argument count mismatch"
)

// RuntimeError is what the VM and interpreter print to stderr; it is never
// propagated as a Go error past the instruction loop (see vm.go's step and
// Run, interpreter.go's eval and reportErr).
type RuntimeError struct {
	Line, Col int
	Kind      RuntimeErrorKind
	Detail    string
}

func (e *RuntimeError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// PrintRuntimeError writes the mandated `Runtime Error: <kind>` line to w.
func PrintRuntimeError(w interface{ Write([]byte) (int, error) }, e *RuntimeError) {
	fmt.Fprintf(w, "Runtime Error: %s\n", e.Error())
}

// WrapErrorWithSource renders err with a caret snippet of src, if err is one
// of the three diagnostic types above. Any other error is returned as-is.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

func WrapErrorWithName(err error, srcName, src string) error {
	switch e := err.(type) {
	case *LexError:
		return fmt.Errorf("%s", renderSnippet(src, "LEXICAL ERROR", srcName, e.Line, e.Col, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", renderSnippet(src, "PARSE ERROR", srcName, e.Line, e.Col, e.Msg))
	case *SemanticError:
		return fmt.Errorf("%s", renderSnippet(src, "SEMANTIC ERROR", srcName, e.Line, e.Col, e.Msg))
	case SemanticErrors:
		var b strings.Builder
		for i, se := range e {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(renderSnippet(src, "SEMANTIC ERROR", srcName, se.Line, se.Col, se.Msg))
		}
		return fmt.Errorf("%s", b.String())
	default:
		return err
	}
}

// renderSnippet builds a Python-style snippet with a header and a caret,
// showing one line of context on either side when available. line/col are
// 1-based and clamped to the source bounds.
func renderSnippet(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	pad := col - 1
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", pad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}

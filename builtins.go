// builtins.go — the two fixed modules (`io`, and the unqualified globals
// `print`/`len`) a g program can call, per spec.md §4.5.
//
// Grounded on the teacher's builtin_core.go dispatch shape (one function
// per builtin, looked up by name), trimmed to the small fixed surface this
// language actually exposes — no filesystem, network, crypto, or FFI
// builtins survive the port; see DESIGN.md for why each teacher
// builtin_*.go file was dropped rather than adapted.
package g

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// builtinHost is the narrow surface callBuiltin needs: somewhere to print
// to and somewhere to read from. Both VM and Interpreter implement it so
// this dispatch table is written once and shared verbatim.
type builtinHost interface {
	Out() io.Writer
	In() *bufio.Reader
}

// callBuiltin dispatches a BUILTIN instruction/call.
func callBuiltin(h builtinHost, name string, args []Value) (Value, *RuntimeError) {
	switch name {
	case "print":
		return builtinPrint(h.Out(), args)
	case "len":
		return builtinLen(args)
	case "scan":
		return builtinScan(h.In())
	case "read":
		return builtinRead(h.In())
	default:
		return None, &RuntimeError{Kind: ErrNotCallable, Detail: name}
	}
}

func builtinPrint(out io.Writer, args []Value) (Value, *RuntimeError) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.ToString()
	}
	fmt.Fprintln(out, strings.Join(parts, " "))
	return None, nil
}

func builtinLen(args []Value) (Value, *RuntimeError) {
	if len(args) != 1 {
		return None, &RuntimeError{Kind: ErrFormatArgCount, Detail: "len expects 1 argument"}
	}
	switch args[0].Kind {
	case KindArray:
		return NewInt(int64(len(args[0].Arr))), nil
	case KindString:
		return NewInt(int64(len(args[0].S))), nil
	default:
		return None, &RuntimeError{Kind: ErrTypeMismatch, Detail: "len requires an array or string"}
	}
}

func builtinScan(in *bufio.Reader) (Value, *RuntimeError) {
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return NewString(""), nil
	}
	return NewString(strings.TrimRight(line, "\r\n")), nil
}

func builtinRead(in *bufio.Reader) (Value, *RuntimeError) {
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return NewString(sb.String()), nil
}

// renderFormat splits a compiler-produced template (see formatTemplate in
// compiler.go) on the marker byte and interleaves args' ToString() forms.
func renderFormat(template string, args []Value) (string, *RuntimeError) {
	parts := strings.Split(template, string(formatMarker))
	if len(parts) != len(args)+1 {
		return "", &RuntimeError{Kind: ErrFormatArgCount, Detail: fmt.Sprintf("expected %d placeholders, template has %d", len(args), len(parts)-1)}
	}
	var sb strings.Builder
	for i, part := range parts {
		sb.WriteString(part)
		if i < len(args) {
			sb.WriteString(args[i].ToString())
		}
	}
	return sb.String(), nil
}

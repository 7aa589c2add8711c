// cmd/g — the g toolchain's single entry point.
//
// Usage: g [-log-level LEVEL] [-dump-ast] [-dump-bytecode] [-interp] [source-file]
//
// With no source file and stdin a terminal, starts a REPL (liner-backed,
// grounded on the teacher's cmd/msg/main.go); with no source file and
// stdin not a terminal, prints usage and exits 0 per spec.md §6. With a
// source file, runs the scanner/parser/analyzer pipeline and, on success,
// either the bytecode VM (default) or the tree-walking interpreter
// (-interp), per spec.md §1/§6.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/g-lang/g"
	"github.com/g-lang/g/internal/glog"
)

const (
	appName     = "g"
	historyFile = ".g_history"
	promptMain  = ">>> "
)

func usage() {
	fmt.Printf(`Usage: %s [-log-level LEVEL] [-dump-ast] [-dump-bytecode] [-interp] [source-file]

  -log-level LEVEL   debug|info|warn|error (default: error)
  -dump-ast          print the parsed AST instead of running it
  -dump-bytecode     print compiled bytecode instead of running it
  -interp            run via the tree-walking interpreter instead of the VM

With no source-file and a terminal on stdin, starts a REPL.
`, appName)
}

func main() {
	logLevel := flag.String("log-level", "error", "debug|info|warn|error")
	dumpAST := flag.Bool("dump-ast", false, "print the parsed AST and exit")
	dumpBytecode := flag.Bool("dump-bytecode", false, "print compiled bytecode and exit")
	interp := flag.Bool("interp", false, "run via the tree-walking interpreter")
	flag.Usage = usage
	flag.Parse()

	logger, err := glog.New(os.Stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) == 0 {
		if fi, ferr := os.Stdin.Stat(); ferr == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			os.Exit(runREPL(logger))
		}
		usage()
		os.Exit(0)
	}

	os.Exit(runFile(args[0], *dumpAST, *dumpBytecode, *interp, logger))
}

func runFile(path string, dumpAST, dumpBytecode, useInterp bool, logger *glog.Logger) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	srcText := string(src)
	name := filepath.Base(path)

	prog, parseErrs := g.ParseProgram(srcText)
	if len(parseErrs) > 0 {
		for _, pe := range parseErrs {
			fmt.Fprintln(os.Stderr, g.WrapErrorWithName(pe, name, srcText))
		}
		return 1
	}

	if dumpAST {
		fmt.Print(prog.String())
		return 0
	}

	analyzer := g.NewAnalyzer()
	if semErrs := analyzer.Analyze(prog); len(semErrs) > 0 {
		fmt.Fprintln(os.Stderr, g.WrapErrorWithName(g.SemanticErrors(semErrs), name, srcText))
		return 1
	}

	if useInterp {
		ip := g.NewInterpreter(os.Stdout, os.Stdin, logger)
		ip.Run(prog, os.Stderr)
		return 0
	}

	mod := g.Compile(prog)
	if dumpBytecode {
		fmt.Print(mod.Disassemble())
		return 0
	}

	vm := g.NewVM(mod, os.Stdout, os.Stdin, logger)
	vm.Run(os.Stderr)
	return 0
}

func runREPL(logger *glog.Logger) int {
	fmt.Println("g REPL. Ctrl+D exits.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, ferr := os.Create(histPath); ferr == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, ferr := os.Open(histPath); ferr == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	ip := g.NewInterpreter(os.Stdout, os.Stdin, logger)
	prog := &g.Program{}

	for {
		line, err := ln.Prompt(promptMain)
		if err != nil {
			fmt.Println()
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		stmtProg, parseErrs := g.ParseProgram(line)
		if len(parseErrs) > 0 {
			for _, pe := range parseErrs {
				fmt.Fprintln(os.Stderr, g.WrapErrorWithSource(pe, line))
			}
			continue
		}
		prog.Statements = append(prog.Statements, stmtProg.Statements...)

		analyzer := g.NewAnalyzer()
		if semErrs := analyzer.Analyze(prog); len(semErrs) > 0 {
			fmt.Fprintln(os.Stderr, g.WrapErrorWithSource(g.SemanticErrors(semErrs), line))
			prog.Statements = prog.Statements[:len(prog.Statements)-len(stmtProg.Statements)]
			continue
		}

		v := ip.Run(stmtProg, os.Stderr)
		if v.Kind != g.KindNone {
			fmt.Println(v.ToString())
		}
	}
	return 0
}

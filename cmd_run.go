package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"nilan/compiler"
	"nilan/lexer"
	"nilan/parser"
	"nilan/vm"
)

// runCmd implements the `run` command: compile a source file and
// execute it to completion.
type runCmd struct {
	debug bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute nilan code from a source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile and run nilan source.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.debug, "debug", false, "trace every opcode dispatched by the VM")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitFailure
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	program, err := compileSource(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	machine := vm.New(os.Stdout, os.Stdin, vm.WithDebug(r.debug))
	if err := machine.Run(program); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(vm.PanicError); ok {
			return subcommands.ExitFailure
		}
		return subcommands.ExitFailure
	}
	if code := machine.ExitCode(); code != 0 {
		return subcommands.ExitStatus(code)
	}
	return subcommands.ExitSuccess
}

// compileSource runs source through the lexer, parser, and compiler,
// returning the first error encountered at any stage — lexing and
// parsing stop at the first error rather than trying to collect more.
func compileSource(source string) (*compiler.Program, error) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		return nil, err
	}
	p := parser.New(tokens)
	statements, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return compiler.Compile(statements)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"nilan/bytecode"
	"nilan/compiler"
	"nilan/object"
)

// emitCmd implements the `emit` command: compile a source file and
// print its disassembled bytecode, main chunk first then every
// user-declared entity's chunk, without running it.
type emitCmd struct{}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "Emit the disassembled bytecode for a source file" }
func (*emitCmd) Usage() string {
	return `emit <file>:
  Compile nilan source and print its disassembled bytecode.
`
}
func (r *emitCmd) SetFlags(f *flag.FlagSet) {}

func (r *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	fmt.Fprintln(os.Stdout, "== main ==")
	fmt.Fprint(os.Stdout, bytecode.Disassemble(program.MainChunk))

	for i := compiler.NativeCount; i < len(program.Entities); i++ {
		e := program.Entities[i]
		switch e.Kind {
		case object.KindFn:
			fmt.Fprintf(os.Stdout, "== proc %s ==\n", e.Name)
			fmt.Fprint(os.Stdout, bytecode.Disassemble(e.Chunk))
		case object.KindClass:
			fmt.Fprintf(os.Stdout, "== klass %s ==\n", e.ClassName)
			if e.Init != nil {
				fmt.Fprintf(os.Stdout, "-- init --\n")
				fmt.Fprint(os.Stdout, bytecode.Disassemble(e.Init.Chunk))
			}
			for name, m := range e.Methods {
				fmt.Fprintf(os.Stdout, "-- %s --\n", name)
				fmt.Fprint(os.Stdout, bytecode.Disassemble(m.Chunk))
			}
		}
	}

	return subcommands.ExitSuccess
}

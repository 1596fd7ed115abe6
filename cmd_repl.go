package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"nilan/vm"
)

// replCmd implements the `repl` command: a line-oriented read-compile-
// run loop built on readline for history and line editing. Each line
// is compiled on its own and run on one shared VM; names declared on
// an earlier line are not visible to the compiler of a later one.
type replCmd struct {
	debug bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive nilan session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive nilan session.
`
}
func (r *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.debug, "debug", false, "trace every opcode dispatched by the VM")
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      ">>> ",
		HistoryFile: "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	fmt.Fprintln(os.Stdout, "Welcome to nilan!")
	machine := vm.New(os.Stdout, os.Stdin, vm.WithDebug(r.debug))

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 %s\n", err)
			return subcommands.ExitFailure
		}
		if line == "exit" {
			return subcommands.ExitSuccess
		}
		if line == "" {
			continue
		}

		program, err := compileSource(line)
		if err != nil {
			fmt.Fprintln(os.Stdout, err)
			continue
		}
		if err := machine.Run(program); err != nil {
			fmt.Fprintln(os.Stdout, err)
		}
	}
}

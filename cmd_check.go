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
)

// checkCmd implements the `check` command: run the lexer, parser, and
// compiler stages over a source file without executing the result —
// useful for surfacing a CompileError on its own, e.g. in an editor
// integration or CI step.
type checkCmd struct {
	printAST bool
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "Check a source file for lex/parse/compile errors" }
func (*checkCmd) Usage() string {
	return `check <file>:
  Lex, parse, and compile nilan source without running it.
`
}
func (r *checkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.printAST, "ast", false, "print the parsed AST as JSON before compiling")
}

func (r *checkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	lex := lexer.New(string(data))
	tokens, err := lex.Scan()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	p := parser.New(tokens)
	statements, err := p.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if r.printAST {
		if _, err := parser.PrintASTJSON(statements); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}

	if _, err := compiler.Compile(statements); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(os.Stdout, "ok")
	return subcommands.ExitSuccess
}

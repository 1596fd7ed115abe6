package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	cmdr := subcommands.NewCommander(flag.CommandLine, "nilan")
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")
	cmdr.Register(&runCmd{}, "")
	cmdr.Register(&replCmd{}, "")
	cmdr.Register(&emitCmd{}, "")
	cmdr.Register(&checkCmd{}, "")
	flag.Parse()
	os.Exit(int(cmdr.Execute(context.Background())))
}

// cmd/aquarium is the command-line interface to Aquarium, a cycle-level
// simulator for a 32-bit load/store ISA.
package main

import (
	"context"
	"os"

	"github.com/aquarium-sim/aquarium/internal/cli"
	"github.com/aquarium-sim/aquarium/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Assembler(),
	cmd.Executor(),
	cmd.Monitor(),
}

func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}

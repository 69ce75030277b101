package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aquarium-sim/aquarium/internal/asm"
	"github.com/aquarium-sim/aquarium/internal/cli"
	"github.com/aquarium-sim/aquarium/internal/console"
	"github.com/aquarium-sim/aquarium/internal/log"
	"github.com/aquarium-sim/aquarium/internal/sim"
)

// Monitor is the command that opens an interactive, breakpoint-driven
// session against a loaded program.
//
//	aquarium monitor file.asm
func Monitor() cli.Command {
	return new(monitor)
}

type monitor struct{}

func (monitor) Description() string {
	return "interactively step a program"
}

func (monitor) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `monitor file.asm

Open an interactive step/run/breakpoint session.`)

	return err
}

func (monitor) FlagSet() *cli.FlagSet {
	return flag.NewFlagSet("monitor", flag.ExitOnError)
}

func (monitor) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		logger.Error("monitor: no source file given")
		return 1
	}

	f, err := os.Open(args[0])
	if err != nil {
		logger.Error("open failed", "file", args[0], "err", err)
		return 1
	}

	defer f.Close()

	chunks, err := asm.Assemble(f)
	if err != nil {
		logger.Error("assemble failed", "err", err)
		return 1
	}

	machine := sim.New(sim.WithLogger(logger))
	machine.Configure(sim.DefaultConfig())

	if err := machine.LoadImage(chunks); err != nil {
		logger.Error("load failed", "err", err)
		return 1
	}

	if len(chunks) > 0 {
		machine.SetEntry(chunks[0].Base)
	}

	c, err := console.New(os.Stdin, machine)
	if err != nil {
		logger.Error("console unavailable", "err", err)
		return 1
	}

	defer c.Restore()

	if err := c.Run(ctx); err != nil {
		logger.Error("monitor session ended", "err", err)
		return 1
	}

	return 0
}

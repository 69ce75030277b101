package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/aquarium-sim/aquarium/internal/asm"
	"github.com/aquarium-sim/aquarium/internal/cli"
	"github.com/aquarium-sim/aquarium/internal/log"
	"github.com/aquarium-sim/aquarium/internal/sim"
)

// Executor is the command that loads a program and runs it to completion or
// timeout.
//
//	aquarium run [-timeout 10s] [-cache=false] [-pipeline=false] [-break ADDR] file.asm
func Executor() cli.Command {
	return &executor{timeout: 10 * time.Second, cache: true, pipeline: true}
}

type executor struct {
	cache      bool
	pipeline   bool
	breakpoint string
	timeout    time.Duration
}

func (executor) Description() string {
	return "assemble and run a program"
}

func (executor) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run [-timeout DURATION] [-cache=false] [-pipeline=false] [-break ADDR] file.asm

Assemble and run a program until it exits or the timeout elapses.`)

	return err
}

func (ex *executor) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.DurationVar(&ex.timeout, "timeout", ex.timeout, "run timeout")
	fs.BoolVar(&ex.cache, "cache", true, "enable the cache (shared by instruction fetch and data access)")
	fs.BoolVar(&ex.pipeline, "pipeline", true, "enable the pipeline (vs. serial stepping)")
	fs.StringVar(&ex.breakpoint, "break", "", "stop when pc reaches this address (hex or decimal)")

	return fs
}

func (ex *executor) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		logger.Error("run: no source file given")
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
	machine.Configure(sim.Config{
		CacheEnabled:    ex.cache,
		PipelineEnabled: ex.pipeline,
	})

	if err := machine.LoadImage(chunks); err != nil {
		logger.Error("load failed", "err", err)
		return 1
	}

	if len(chunks) > 0 {
		machine.SetEntry(chunks[0].Base)
	}

	if ex.breakpoint != "" {
		addr, err := strconv.ParseUint(ex.breakpoint, 0, 32)
		if err != nil {
			logger.Error("bad breakpoint address", "addr", ex.breakpoint, "err", err)
			return 1
		}

		machine.SetBreakpoint(uint32(addr))
	}

	ctx, cancel := context.WithTimeout(ctx, ex.timeout)
	defer cancel()

	logger.Info("starting machine")

	err = machine.RunUntilBreakpointOrExit(ctx)

	snap := machine.Snapshot()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("run timeout", "cycles", snap.Stats.CyclesTotal)
		return 2
	case err != nil:
		logger.Error("run failed", "err", err)
		return 2
	default:
		fmt.Fprintf(stdout, "retired=%d cycles=%d hit_rate=%.3f\n",
			snap.Stats.InstructionsRetired, snap.Stats.CyclesTotal, snap.Stats.CacheHitRate())

		return 0
	}
}

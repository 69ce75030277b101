// Package console implements an interactive, raw-mode terminal monitor for
// driving a sim.Machine: step, run, breakpoints, and state inspection.
// Adapted from the teacher's tty.Console, which adapted LC-3 keyboard/display
// I/O for Unix terminals; here the terminal instead drives a command loop
// rather than emulating a serial line.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/aquarium-sim/aquarium/internal/sim"
)

// ErrNoTTY is returned if standard input is not a terminal.
var ErrNoTTY = errors.New("console: not a TTY")

// Console is an interactive monitor REPL bound to a Machine.
type Console struct {
	fd    int
	state *term.State
	term  *term.Terminal

	machine *sim.Machine
}

// New creates a Console reading commands from sin and writing output and
// the prompt to sin (a terminal's input fd is also its output fd). If sin is
// not a terminal, ErrNoTTY is returned. Callers must call Restore to return
// the terminal to its original state.
func New(sin *os.File, machine *sim.Machine) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	c := &Console{
		fd:      fd,
		state:   saved,
		term:    term.NewTerminal(sin, "aquarium> "),
		machine: machine,
	}

	return c, nil
}

// Restore returns the terminal to its state prior to New.
func (c *Console) Restore() {
	_ = term.Restore(c.fd, c.state)
}

// Run reads and executes commands until the reader is exhausted, the "quit"
// command is entered, or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := c.term.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}

		c.dispatch(ctx, fields[0], fields[1:])
	}
}

func (c *Console) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "step", "s":
		c.machine.Step()
		c.printRegs()
	case "run", "r":
		if err := c.machine.RunUntilBreakpointOrExit(ctx); err != nil {
			fmt.Fprintf(c.term, "run: %s\n", err)
		}

		c.printRegs()
	case "break", "b":
		c.setBreakpoint(args)
	case "clear":
		c.clearBreakpoint(args)
	case "regs":
		c.printRegs()
	case "mem":
		c.printMemory(args)
	case "stats":
		c.printStats()
	case "help":
		fmt.Fprintln(c.term, "commands: step, run, break ADDR, clear ADDR, regs, mem ADDR LEN, stats, quit")
	default:
		fmt.Fprintf(c.term, "unknown command %q (try \"help\")\n", cmd)
	}
}

func (c *Console) setBreakpoint(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.term, "usage: break ADDR")
		return
	}

	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		fmt.Fprintf(c.term, "bad address %q: %s\n", args[0], err)
		return
	}

	c.machine.SetBreakpoint(uint32(addr))
}

func (c *Console) clearBreakpoint(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.term, "usage: clear ADDR")
		return
	}

	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		fmt.Fprintf(c.term, "bad address %q: %s\n", args[0], err)
		return
	}

	c.machine.ClearBreakpoint(uint32(addr))
}

func (c *Console) printRegs() {
	snap := c.machine.Snapshot()

	fmt.Fprintf(c.term, "pc=%#08x", snap.Registers.PC)

	for i, r := range snap.Registers.Regs {
		if i%4 == 0 {
			fmt.Fprintln(c.term)
		}

		fmt.Fprintf(c.term, " r%-2d=%#08x", i, r)
	}

	fmt.Fprintln(c.term)
}

func (c *Console) printMemory(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.term, "usage: mem ADDR LEN")
		return
	}

	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		fmt.Fprintf(c.term, "bad address %q: %s\n", args[0], err)
		return
	}

	length, err := strconv.Atoi(args[1])
	if err != nil || length <= 0 {
		fmt.Fprintf(c.term, "bad length %q\n", args[1])
		return
	}

	data, err := c.machine.Phys.Read(uint32(addr), length)
	if err != nil {
		fmt.Fprintf(c.term, "mem: %s\n", err)
		return
	}

	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}

		fmt.Fprintf(c.term, "%#08x  % x\n", uint32(addr)+uint32(i), data[i:end])
	}
}

func (c *Console) printStats() {
	snap := c.machine.Snapshot()
	s := snap.Stats

	fmt.Fprintf(c.term, "cycles=%d retired=%d hit_rate=%.3f mem%%=%.1f cpu%%=%.1f exit=%v\n",
		s.CyclesTotal, s.InstructionsRetired, s.CacheHitRate(), s.MemoryPercent(), s.CPUPercent(), snap.ExitReq)
}

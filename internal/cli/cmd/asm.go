package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aquarium-sim/aquarium/internal/asm"
	"github.com/aquarium-sim/aquarium/internal/cli"
	"github.com/aquarium-sim/aquarium/internal/encoding"
	"github.com/aquarium-sim/aquarium/internal/log"
)

// Assembler is the command that translates Aquarium assembly source into
// loadable object code.
//
//	aquarium asm -o a.out file.asm
func Assembler() cli.Command {
	return new(assembler)
}

type assembler struct {
	debug  bool
	output string
}

func (assembler) Description() string {
	return "assemble source code into object code"
}

func (assembler) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `asm [-o file.out] file.asm

Assemble source into a loadable object image.`)

	return err
}

func (a *assembler) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	fs.BoolVar(&a.debug, "debug", false, "enable debug logging")
	fs.StringVar(&a.output, "o", "a.out", "output `filename`")

	return fs
}

func (a *assembler) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if a.debug {
		log.LogLevel.Set(log.Debug)
	}

	if len(args) == 0 {
		logger.Error("asm: no source file given")
		return 1
	}

	p := asm.NewParser()

	for _, fn := range args {
		f, err := os.Open(fn)
		if err != nil {
			logger.Error("open failed", "file", fn, "err", err)
			return 1
		}

		p.Parse(f)
		_ = f.Close()
	}

	chunks, err := p.Assemble()
	if err != nil {
		for _, diag := range p.Diagnostics() {
			logger.Error("syntax error", "err", diag)
		}

		return 1
	}

	out, err := os.Create(a.output)
	if err != nil {
		logger.Error("open failed", "out", a.output, "err", err)
		return 1
	}

	defer out.Close()

	hex := encoding.NewHexEncoding(chunks)

	text, err := hex.MarshalText()
	if err != nil {
		logger.Error("encode failed", "err", err)
		return 1
	}

	buf := bufio.NewWriter(out)

	if _, err := buf.Write(text); err != nil {
		logger.Error("write failed", "out", a.output, "err", err)
		return 1
	}

	if err := buf.Flush(); err != nil {
		logger.Error("write failed", "out", a.output, "err", err)
		return 1
	}

	logger.Debug("assembled", "out", a.output, "chunks", len(chunks), "symbols", len(p.Symbols()))

	return 0
}

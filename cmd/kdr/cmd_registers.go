package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/codahale/kdr/pkg/kdr/sim"
	"github.com/rs/zerolog"
)

type registersCmd struct {
	Profile string      `type:"existingfile" help:"The path to a YAML provisioning profile."`
	Fault   []sim.Fault `help:"A simulator fault to inject, such as kdr0-stuck."`
}

func (cmd *registersCmd) Run(_ *kong.Context) error {
	p, err := loadProfile(cmd.Profile)
	if err != nil {
		return err
	}

	dev := p.device(cmd.Fault)

	// Run the boot sequence quietly. A failure still leaves registers worth printing.
	bootErr := boot(p, dev, zerolog.Nop())

	if err := writeRegisters(os.Stdout, dev.Registers()); err != nil {
		return err
	}

	return bootErr
}

func writeRegisters(w io.Writer, regs []sim.RegisterValue) error {
	for _, r := range regs {
		if _, err := fmt.Fprintf(w, "%-20s 0x%08X  0x%08X\n", r.Reg, uint32(r.Reg), r.Value); err != nil {
			return err
		}
	}

	return nil
}

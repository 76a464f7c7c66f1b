package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/codahale/kdr/pkg/kdr"
	"github.com/codahale/kdr/pkg/kdr/sim"
	"github.com/rs/zerolog"
)

type bootCmd struct {
	Profile string      `type:"existingfile" help:"The path to a YAML provisioning profile."`
	Fault   []sim.Fault `help:"A simulator fault to inject, such as kdr0-stuck."`
	Console bool        `help:"Write human-readable logs even when stderr is not a terminal."`
}

func (cmd *bootCmd) Run(_ *kong.Context) error {
	// Load the profile.
	p, err := loadProfile(cmd.Profile)
	if err != nil {
		return err
	}

	// Power on the device.
	dev := p.device(cmd.Fault)

	log := newLogger(os.Stderr, cmd.Console).With().Str("boot_id", dev.BootID().String()).Logger()

	return boot(p, dev, log)
}

// boot runs the boot sequence once against dev, reporting to log.
func boot(p *profile, dev *sim.Device, log zerolog.Logger) error {
	cfg, err := p.config()
	if err != nil {
		return err
	}

	log.Warn().
		Msg("root key supplied in plaintext (test-only); production keys must come from a protected, authenticated source")

	release := dev.Claim()
	defer release()

	return kdr.Sequence(cfg, dev, dev, reporter{log: log}, nil)
}

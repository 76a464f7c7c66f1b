package main

import (
	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

type cli struct {
	Boot      bootCmd      `cmd:"" help:"Run one simulated power cycle: provision, derive, and report."`
	Derive    deriveCmd    `cmd:"" help:"Compute a derived key from a plaintext key, for test vectors."`
	Registers registersCmd `cmd:"" help:"Run the boot sequence and print the resulting registers."`
}

func main() {
	var cli cli

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx := kong.Parse(&cli,
		kong.Name("kdr"),
		kong.Description("Provision a simulated secure element with a root key and derive keys from it."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

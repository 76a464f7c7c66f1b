package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/codahale/kdr/pkg/kdr"
	"github.com/codahale/kdr/pkg/kdr/sim"
)

var errInvalidDerive = errors.New("invalid derivation")

type deriveCmd struct {
	Key     string `required:"" help:"The 16-byte root key, in hex. Never pass a real key."`
	Label   string `required:"" help:"The derivation label."`
	Context string `required:"" help:"The derivation context, in hex."`
	Size    int    `default:"16" help:"The size of the derived key, in bytes."`
}

func (cmd *deriveCmd) Run(_ *kong.Context) error {
	out, err := cmd.derive()
	if err != nil {
		return err
	}

	_, err = io.WriteString(os.Stdout, hex.EncodeToString(out)+"\n")

	return err
}

func (cmd *deriveCmd) derive() ([]byte, error) {
	// Decode the key and context.
	key, err := hex.DecodeString(cmd.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key: %s", errInvalidDerive, err)
	}

	if len(key) != 4*kdr.RootKeyWords {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", errInvalidDerive, len(key), 4*kdr.RootKeyWords)
	}

	context, err := hex.DecodeString(cmd.Context)
	if err != nil {
		return nil, fmt.Errorf("%w: context: %s", errInvalidDerive, err)
	}

	// Check the size before allocating the output.
	if cmd.Size <= 0 || cmd.Size > sim.MaxOutput {
		return nil, fmt.Errorf("%w: size is %d, must be 1..%d", errInvalidDerive, cmd.Size, sim.MaxOutput)
	}

	// Derive the key.
	out := make([]byte, cmd.Size)
	if err := sim.Vector(key, []byte(cmd.Label), context, out); err != nil {
		return nil, err
	}

	return out, nil
}

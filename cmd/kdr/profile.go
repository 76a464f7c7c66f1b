package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/codahale/kdr/pkg/kdr"
	"github.com/codahale/kdr/pkg/kdr/sim"
	"gopkg.in/yaml.v3"
)

var errInvalidProfile = errors.New("invalid profile")

// profile describes one simulated boot. Every field is optional.
type profile struct {
	RootKey   []uint32    `yaml:"root_key"`
	Label     string      `yaml:"label"`
	Context   string      `yaml:"context"`
	DeviceID  []uint32    `yaml:"device_id"`
	KeySize   int         `yaml:"key_size"`
	LockKPRTL bool        `yaml:"lock_kprtl"`
	Faults    []sim.Fault `yaml:"faults"`
}

// loadProfile reads the profile at path. An empty path returns the default profile.
func loadProfile(path string) (*profile, error) {
	p := &profile{Label: kdr.DefaultLabel}

	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", errInvalidProfile, err)
	}

	if n := len(p.RootKey); n != 0 && n != kdr.RootKeyWords {
		return nil, fmt.Errorf("%w: root_key has %d words, want %d", errInvalidProfile, n, kdr.RootKeyWords)
	}

	if n := len(p.DeviceID); n != 0 && n != len(kdr.DeviceID{}) {
		return nil, fmt.Errorf("%w: device_id has %d words, want 2", errInvalidProfile, n)
	}

	return p, nil
}

// config returns the boot sequence configuration.
func (p *profile) config() (kdr.Config, error) {
	cfg := kdr.Config{
		RootKey:   kdr.TestRootKey(),
		Label:     []byte(p.Label),
		KeySize:   p.KeySize,
		LockKPRTL: p.LockKPRTL,
	}

	if len(p.RootKey) == kdr.RootKeyWords {
		copy(cfg.RootKey[:], p.RootKey)
	}

	if p.Context != "" {
		context, err := hex.DecodeString(p.Context)
		if err != nil {
			return kdr.Config{}, fmt.Errorf("%w: context: %s", errInvalidProfile, err)
		}

		cfg.Context = context
	}

	return cfg, nil
}

// device returns a freshly reset simulated device with the profile's faults and the extra faults
// injected.
func (p *profile) device(faults []sim.Fault) *sim.Device {
	all := append(append([]sim.Fault(nil), p.Faults...), faults...)

	opts := []sim.Option{sim.WithFaults(all...)}
	if len(p.DeviceID) == len(kdr.DeviceID{}) {
		opts = append(opts, sim.WithDeviceID(kdr.DeviceID{p.DeviceID[0], p.DeviceID[1]}))
	}

	return sim.New(opts...)
}
